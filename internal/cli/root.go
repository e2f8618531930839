// Package cli provides the healthctl command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/config"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/logger"
)

// Version is set at build time.
var Version = "0.1.0"

type env struct {
	loadConfig func() (*config.Config, error)
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

// Execute runs healthctl with the process arguments.
func Execute() error {
	return NewRootCmd(config.LoadConfig).Execute()
}

// NewRootCmd builds the command tree. load supplies the configuration once
// a subcommand runs.
func NewRootCmd(load func() (*config.Config, error)) *cobra.Command {
	e := &env{loadConfig: load}

	root := &cobra.Command{
		Use:   "healthctl",
		Short: "Operator tool for the Aldebaran Health backend",
		Long: `healthctl issues and inspects session tokens and drives the
conversation pipeline against the configured stores and AI backend.

Configuration is read from the same environment variables (and .env file)
as the server.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e.cfg = cfg
			lvl := "warn"
			if e.verbose {
				lvl = "debug"
			}
			e.log = logger.NewWithSink(logger.ParseLevel(lvl), zapcore.AddSync(cmd.ErrOrStderr()))
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newTokenCmd(e), newChatCmd(e))
	return root
}
