package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/config"
	"github.com/HendryAvila/compass/internal/dispatch"
	"github.com/HendryAvila/compass/internal/metrics"
	mcpserver "github.com/HendryAvila/compass/internal/server"
	"github.com/HendryAvila/compass/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio for the local user",
		Long: "Serve MCP over stdin/stdout for the local account. The passphrase, if any,\n" +
			"comes from --passphrase, COMPASS_PASSPHRASE or the OS keyring; the first one\n" +
			"seen turns encryption on for the local graph.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var secrets auth.SecretStore
			if a.cfg.UseKeyring {
				secrets = auth.NewKeyring()
			}
			resolver := auth.NewLocalResolver(st, a.cfg.Passphrase, secrets, a.log)
			d := dispatch.New(st, a.log, nil)

			line := transport.NewLine(mcpserver.New(d), resolver, auth.Credentials{}, a.log)
			return line.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().String(config.KeyPassphrase, "", "passphrase for the local graph (prefer COMPASS_PASSPHRASE)")
	cmd.Flags().Bool(config.KeyUseKeyring, true, "read the passphrase from the OS keyring when none is given")
	return cmd
}

func newServeHTTPCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-http",
		Short: "Serve MCP over SSE, plus a REST view, for API-key users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			m := metrics.New("compass")
			d := dispatch.New(st, a.log, m)
			h := transport.NewHTTP(mcpserver.New(d), d, auth.NewAPIKeyResolver(st), transport.HTTPOptions{
				Sessions: transport.SessionOptions{
					BaseURL:      a.cfg.BaseURL,
					PingInterval: a.cfg.PingInterval,
					MaxBodyBytes: a.cfg.MaxBodyBytes,
				},
				AllowedOrigins: a.cfg.CORSOrigins,
			}, a.log, m)

			srv := &http.Server{
				Addr:              a.cfg.Listen,
				Handler:           h.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return listenAndServe(cmd.Context(), srv, h, a.log)
		},
	}
	f := cmd.Flags()
	f.String(config.KeyListen, config.DefaultListen, "address to listen on")
	f.String(config.KeyBaseURL, "", "public URL prefix announced in the endpoint event")
	f.Duration(config.KeyPingInterval, config.DefaultPingInterval, "keep-alive interval for event streams")
	f.Int64(config.KeyMaxBodyBytes, config.DefaultMaxBodyBytes, "largest accepted request body")
	f.StringSlice(config.KeyCORSOrigins, nil, "origins allowed to call the REST view (default any)")
	return cmd
}

// listenAndServe runs srv until ctx is cancelled, then ends open streams
// and drains in-flight requests.
func listenAndServe(ctx context.Context, srv *http.Server, h *transport.HTTP, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve-http: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	h.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve-http: shutdown: %w", err)
	}
	return nil
}
