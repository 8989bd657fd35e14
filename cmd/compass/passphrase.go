package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/config"
)

func newPassphraseCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passphrase",
		Short: "Manage the local passphrase in the OS keyring",
	}
	cmd.AddCommand(newPassphraseSetCommand(a), newPassphraseClearCommand(a))
	return cmd
}

func newPassphraseSetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Check the local passphrase and save it to the keyring",
		Long: "Check the passphrase against the local account and save it to the OS\n" +
			"keyring so `compass serve` can start without it. If the local account has\n" +
			"no passphrase yet, this one is enrolled and encryption is turned on.\n" +
			"Without --passphrase the passphrase is read from the first line of stdin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			passphrase := a.cfg.Passphrase
			if passphrase == "" {
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				passphrase = p
			}
			if strings.TrimSpace(passphrase) == "" {
				return errors.New("passphrase set: empty passphrase")
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			resolver := auth.NewLocalResolver(st, "", auth.NewKeyring(), a.log)
			if err := resolver.SavePassphrase(cmd.Context(), passphrase); err != nil {
				return fmt.Errorf("passphrase set: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Passphrase saved to the keyring.")
			return nil
		},
	}
	cmd.Flags().String(config.KeyPassphrase, "", "passphrase to save (default: read from stdin)")
	return cmd
}

func newPassphraseClearCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the local passphrase from the keyring",
		Long: "Remove the saved passphrase. Encryption stays on for the local graph;\n" +
			"`compass serve` will need the passphrase from --passphrase or\n" +
			"COMPASS_PASSPHRASE until it is saved again.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := auth.NewKeyring().ClearPassphrase(); err != nil {
				return fmt.Errorf("passphrase clear: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Passphrase removed from the keyring.")
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
