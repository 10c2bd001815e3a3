// Package commands is a diagnostic harness for checking a live portal account: it logs in,
// loads the account and prints what the client made of the pages.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"edupage-client/lib/configutil"
	"edupage-client/lib/fault"
	"edupage-client/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg Config
	otl telemetry.Telemetry
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "edupage.json5", "The config file to read.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug reports and every request.")
}

var rootCmd = &cobra.Command{
	Use:           "edupage-check",
	Short:         "edupage-check logs into an EduPage account and prints what the client sees.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		cfg, err = configutil.ReadConfig[Config](configPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", configPath, err)
		}
		otl, err = telemetry.Setup(cmd.Context(), "edupage-check", cfg.Telemetry)
		if err != nil {
			slog.Warn("telemetry disabled", "err", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := otl.Shutdown(context.WithoutCancel(cmd.Context()))
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	},
}

// describe adds the extraction details of portal errors, a page that changed shape is the
// usual reason to run this command.
func describe(err error) string {
	ferr, ok := fault.As(err)
	if !ok || ferr.Kind != fault.KindPageStructure {
		return err.Error()
	}
	out := err.Error()
	if ferr.Pattern != "" {
		out += fmt.Sprintf("\npattern: %s", ferr.Pattern)
	}
	if ferr.Snippet != "" {
		out += fmt.Sprintf("\nsnippet: %s", ferr.Snippet)
	}
	return out
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}
