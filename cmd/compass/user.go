package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/compass/internal/config"
	"github.com/HendryAvila/compass/internal/vault"
)

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API-key accounts for serve-http",
	}
	cmd.AddCommand(newUserAddCommand(a))
	return cmd
}

func newUserAddCommand(a *app) *cobra.Command {
	var (
		name    string
		encrypt bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account and print its API key",
		Long: "Create an account and print its API key. The key is shown once; only its\n" +
			"hash is stored. With --encrypt the account's graph is sealed under the\n" +
			"given passphrase, which clients must then send with every connection.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("user add: --name is required")
			}
			passphrase := a.cfg.Passphrase
			if encrypt && strings.TrimSpace(passphrase) == "" {
				return errors.New("user add: --encrypt needs --passphrase or COMPASS_PASSPHRASE")
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			u, apiKey, err := st.CreateUser(ctx, name)
			if err != nil {
				return err
			}
			if encrypt {
				token, err := vault.HashPassphrase(passphrase)
				if err != nil {
					return fmt.Errorf("user add: %w", err)
				}
				if err := st.SetPassphraseToken(ctx, u.ID, token); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:       %s (%s)\n", u.ID, u.Name)
			fmt.Fprintf(out, "api key:    %s\n", apiKey)
			fmt.Fprintf(out, "encryption: %s\n", onOff(encrypt))
			fmt.Fprintln(out, "Store the API key now; it cannot be shown again.")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for the account")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "seal this account's graph under a passphrase")
	cmd.Flags().String(config.KeyPassphrase, "", "passphrase for --encrypt (prefer COMPASS_PASSPHRASE)")
	return cmd
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
