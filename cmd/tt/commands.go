package tt

import (
	"fmt"

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
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Stores the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Put(args[0], args[1]); err != nil {
				return err
			} else {
				fmt.Println("put successfully")
			}
			return nil
		},
	}
	outCmd = &cobra.Command{
		Use:   "out [key]",
		Short: "Removes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := client.Out(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, removed=%v\n", args[0], removed)
			return nil
		},
	}
	mgetCmd = &cobra.Command{
		Use:   "mget [key]...",
		Short: "Reads the values for several keys in one round trip",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := client.MGet(args)
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
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists every key using cursor iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			it := client.Iterator()
			count := 0
			for {
				key, ok, err := it.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				fmt.Println(key)
				count++
			}
			fmt.Printf("%d keys\n", count)
			return nil
		},
	}
	statCmd = &cobra.Command{
		Use:   "stat",
		Short: "Prints the server's status report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.Status()
			if err != nil {
				return err
			}
			for key, value := range status {
				fmt.Printf("%-22s: %s\n", key, value)
			}
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints record count and database size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := client.RNum()
			if err != nil {
				return err
			}
			size, err := client.Size()
			if err != nil {
				return err
			}
			fmt.Printf("records=%d, bytes=%d\n", n, size)
			return nil
		},
	}
	vanishCmd = &cobra.Command{
		Use:   "vanish",
		Short: "Removes every record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Vanish(); err != nil {
				return err
			}
			fmt.Println("vanished")
			return nil
		},
	}
	miscCmd = &cobra.Command{
		Use:   "misc [name] [arg]...",
		Short: "Sends a raw command over the miscellaneous channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawArgs := make([][]byte, 0, len(args)-1)
			for _, arg := range args[1:] {
				rawArgs = append(rawArgs, []byte(arg))
			}
			results, ok, err := client.Misc(args[0], rawArgs, true)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(miss)")
				return nil
			}
			for _, result := range results {
				fmt.Printf("%s\n", result)
			}
			return nil
		},
	}
)
