package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/GoodnightSam/JGL-Assistant/internal/quota"
)

type quotaPayload struct {
	Used    int            `json:"used"`
	Limit   int            `json:"limit"`
	Domains map[string]int `json:"domains,omitempty"`
}

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var showDomains bool

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show today's image search usage and domain failure counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openQuota()
			if err != nil {
				return err
			}
			defer store.Close()

			used, limit, err := store.Usage(cmd.Context())
			if err != nil {
				return err
			}
			payload := quotaPayload{Used: used, Limit: limit}
			if showDomains {
				failures, err := store.Failures(cmd.Context())
				if err != nil {
					return err
				}
				payload.Domains = failures
			}

			if jsonOutput {
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Search quota: %d / %d used today\n", used, limit)
			if !showDomains {
				return nil
			}
			if len(payload.Domains) == 0 {
				fmt.Fprintln(out, "No recorded domain failures")
				return nil
			}
			domains := make([]string, 0, len(payload.Domains))
			for domain := range payload.Domains {
				domains = append(domains, domain)
			}
			sort.Strings(domains)
			rows := make([][]string, 0, len(domains))
			for _, domain := range domains {
				failures := payload.Domains[domain]
				rows = append(rows, []string{
					domain,
					fmt.Sprintf("%d", failures),
					fmt.Sprintf("%d", quota.ScoreFor(domain, failures)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Domain", "Failures", "Score"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	cmd.Flags().BoolVar(&showDomains, "domains", false, "Include per-domain failure counts")
	return cmd
}
