// Package root contains the root command for the application
package root

import (
	"fmt"

	"fjacquet/cep-verify/internal/config"
	"fjacquet/cep-verify/internal/container"
	"fjacquet/cep-verify/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input  string
	Output string
}

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// SharedFlags holds the persistent flags of every subcommand
	SharedFlags = CommonFlags{}

	appContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "cep-verify",
		Short: "A CLI tool to verify SPEI transfer batches against Banxico CEP confirmations.",
		Long: `cep-verify is a CLI tool that submits a batch of SPEI transfers to the Banxico
CEP portal, downloads the electronic payment confirmations and reports, for each
tracking key, whether the portal's confirmation matches the batch.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv(Log)

			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}

			c, err := container.NewContainer(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			appContainer = c
			Log = c.GetLogger()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appContainer == nil {
				return nil
			}
			return appContainer.Close()
		},
	}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input batch CSV file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file")
}

// GetContainer returns the container built for the running command.
func GetContainer() (*container.Container, error) {
	if appContainer == nil {
		return nil, fmt.Errorf("container not initialized")
	}
	return appContainer, nil
}

// GetLogger returns the configured command logger.
func GetLogger() logging.Logger {
	return Log
}
