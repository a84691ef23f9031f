package kt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, ok, err := client.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, value=%v\n", key, ok, value)
			}
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value] [expire]",
		Short: "Sets the value for a key, optionally expiring after n seconds",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			var xt int64
			if len(args) == 3 {
				parsed, err := strconv.ParseInt(args[2], 10, 64)
				if err != nil {
					return fmt.Errorf("expire must be a number: %w", err)
				}
				xt = parsed
			}
			if err := client.Set(key, value, xt); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Removes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if removed, err := client.Remove(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, removed=%v\n", key, removed)
			}
			return nil
		},
	}
	getBulkCmd = &cobra.Command{
		Use:   "get-bulk [key]...",
		Short: "Reads the values for several keys in one round trip",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := client.GetBulk(args)
			if err != nil {
				return err
			}
			for key, value := range values {
				fmt.Printf("%s=%v\n", key, value)
			}
			fmt.Printf("%d of %d keys found\n", len(values), len(args))
			return nil
		},
	}
	removeBulkCmd = &cobra.Command{
		Use:   "remove-bulk [key]...",
		Short: "Removes several keys in one round trip",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := client.RemoveBulk(args)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d of %d keys\n", removed, len(args))
			return nil
		},
	}
	scriptCmd = &cobra.Command{
		Use:   "script [name] [key=value]...",
		Short: "Invokes a server-side script with key=value parameters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make(map[string][]byte)
			for _, arg := range args[1:] {
				key, value, found := strings.Cut(arg, "=")
				if !found || key == "" {
					return fmt.Errorf("parameter %q is not key=value", arg)
				}
				params[key] = []byte(value)
			}
			result, err := client.PlayScript(args[0], params)
			if err != nil {
				return err
			}
			for key, value := range result {
				fmt.Printf("%s=%s\n", key, value)
			}
			return nil
		},
	}
)
