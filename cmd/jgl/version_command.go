package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoodnightSam/JGL-Assistant/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the jgl version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "jgl %s\n", version.Version)
			return nil
		},
	}
}
