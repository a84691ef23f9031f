package kt

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tycoon-kv/tycoon/cmd/util"
	"github.com/tycoon-kv/tycoon/rpc/kt"
)

var (
	client *kt.Client

	// Commands represents the multi-database command group
	Commands = &cobra.Command{
		Use:               "kt",
		Short:             "Talk to a multi-database (Tycoon) server",
		PersistentPreRunE: setupClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags to the command group
	util.SetupClientFlags(Commands)
	Commands.PersistentFlags().Int("db", 0, util.WrapString("Database index used when a call omits one"))

	// Add subcommands
	Commands.AddCommand(getCmd)
	Commands.AddCommand(setCmd)
	Commands.AddCommand(removeCmd)
	Commands.AddCommand(getBulkCmd)
	Commands.AddCommand(removeBulkCmd)
	Commands.AddCommand(scriptCmd)
	Commands.AddCommand(perfTestCmd)
}

// setupClient initializes the protocol client shared by the subcommands
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	config.DefaultDB = uint16(viper.GetInt("db"))

	var err error
	client, err = kt.NewClient(*config)
	return err
}
