// Compass: goal-graph MCP server
//
// Compass keeps a per-user graph of objectives and the deliverables that
// move them, and lets an AI assistant read and edit it through MCP tools.
// Graphs can be sealed under a user passphrase before they are stored.
//
// Usage:
//
//	compass serve                 # MCP over stdio for the local user
//	compass serve-http            # MCP over SSE plus a REST view, API-key auth
//	compass user add --name NAME  # create an account and print its API key
//	compass passphrase set|clear  # manage the local passphrase in the OS keyring
//	compass version
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HendryAvila/compass/internal/config"
	"github.com/HendryAvila/compass/internal/logging"
	"github.com/HendryAvila/compass/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries what every subcommand resolves before it runs.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.Bind(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log.With(zap.String("command", cmd.Name()))
	return nil
}

func (a *app) openStore() (*store.SQLite, error) {
	st, err := store.Open(a.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a.log.Debug("store opened", zap.String("data_dir", a.cfg.DataDir))
	return st, nil
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:           "compass",
		Short:         "Goal-graph MCP server: objectives, deliverables and how they connect",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.String(config.KeyConfig, "", "path to a YAML config file")
	pf.String(config.KeyDataDir, config.DefaultDataDir(), "directory holding "+store.DBFile)
	pf.String(config.KeyLogLevel, config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, config.DefaultLogFormat, "log format: json or console")

	cmd.AddCommand(
		newServeCommand(a),
		newServeHTTPCommand(a),
		newUserCommand(a),
		newPassphraseCommand(a),
		newVersionCommand(),
	)
	return cmd
}
