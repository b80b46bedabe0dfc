package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/docindex/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after applying defaults, the project file
(` + config.FileName + `), the --config file and command line flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := config.Format(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to format config", err)
			}
			return rootOpts.formatter(cmd).Success(rootOpts.Config, text+"\n")
		},
	}
}
