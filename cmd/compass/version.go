package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/HendryAvila/compass/internal/server"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the compass version",
		// No config needed to print a version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mcpserver.Name, mcpserver.Version)
			return err
		},
	}
}
