// SPDX-License-Identifier: GPL-3.0-or-later

// Command afsock inspects and exercises local and cluster sockets.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func main() {
	if err := newApp().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "afsock: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cobra.Command {
	defaultFormat := "json"
	if isatty.IsTerminal(os.Stderr.Fd()) {
		defaultFormat = "text"
	}

	rootCmd := &cobra.Command{
		Use:   "afsock",
		Short: "Inspect and exercise Unix, TIPC, VSOCK and AF_SYSTEM sockets",
		Example: `  Show which families and features the kernel supports:
  $ afsock probe

  Convert an address to its native form:
  $ afsock parse tipc 100.5

  Send stdin to an abstract Unix socket and print the reply:
  $ echo hello | afsock send unix @echo

  Watch TIPC service 100 instances 0 to 10:
  $ afsock watch --service 100:0:10`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "", "Set the logging level [debug, info]; logging is off when empty")
	rootCmd.PersistentFlags().String("log-format", defaultFormat, "Set the logging format [text, json]")

	rootCmd.AddCommand(
		newProbeCommand(),
		newParseCommand(),
		newSendCommand(),
		newWatchCommand(),
	)
	return rootCmd
}

// newLogger builds the structured logger selected by the global flags.
//
// The return type is *slog.Logger so callers can attach span IDs.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var lvl slog.Level
	switch level {
	case "":
		return slog.New(slog.DiscardHandler), nil
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	default:
		return nil, fmt.Errorf("unsupported log-level: %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log-format: %q", format)
	}
}
