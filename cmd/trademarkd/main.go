// Command trademarkd serves the trademark monitor HTTP API and offers a few
// operator subcommands over the same stores.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-trademark-backend/internal/config"
	"github.com/tbourn/go-trademark-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Configuration is loaded once in
// PersistentPreRunE and shared through the returned app.
func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile, logLevel string

	root := &cobra.Command{
		Use:           "trademarkd",
		Short:         "Trademark case monitor",
		Long:          "trademarkd tracks trademark registration cases, their official dispatches and the deadlines users set on them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = sysutil.SetupLogger(cmd.ErrOrStderr(), sysutil.FirstNonEmpty(logLevel, cfg.LogLevel), cfg.LogPretty, cfg.OTEL.ServiceName)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides LOG_LEVEL")

	root.AddCommand(serveCmd(a))
	root.AddCommand(searchCmd(a))
	root.AddCommand(attentionCmd(a))
	root.AddCommand(articlesCmd(a))
	return root
}
