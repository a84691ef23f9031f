package tt

import (
	"github.com/spf13/cobra"
	"github.com/tycoon-kv/tycoon/cmd/util"
	"github.com/tycoon-kv/tycoon/rpc/tt"
)

var (
	client *tt.Client

	// Commands represents the single-database command group
	Commands = &cobra.Command{
		Use:               "tt",
		Short:             "Talk to a single-database (Tyrant) server",
		PersistentPreRunE: setupClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags to the command group
	util.SetupClientFlags(Commands)

	// Add subcommands
	Commands.AddCommand(getCmd)
	Commands.AddCommand(putCmd)
	Commands.AddCommand(outCmd)
	Commands.AddCommand(mgetCmd)
	Commands.AddCommand(keysCmd)
	Commands.AddCommand(statCmd)
	Commands.AddCommand(sizeCmd)
	Commands.AddCommand(vanishCmd)
	Commands.AddCommand(miscCmd)
}

// setupClient initializes the protocol client shared by the subcommands
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	var err error
	client, err = tt.NewClient(*config)
	return err
}
