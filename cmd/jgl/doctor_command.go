package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoodnightSam/JGL-Assistant/internal/assets"
	"github.com/GoodnightSam/JGL-Assistant/internal/stage"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage, and service readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var checks []stage.Health

			if store, err := ctx.openWorkspace(); err != nil {
				checks = append(checks, stage.Unhealthy("workspace", err.Error()))
			} else {
				checks = append(checks, stage.Health{Name: "workspace", Ready: true, Detail: store.Root()})
			}

			if err := assets.CheckFreeSpace(cfg.ActorsDir()); err != nil {
				checks = append(checks, stage.Unhealthy("free space", err.Error()))
			} else {
				checks = append(checks, stage.Healthy("free space"))
			}

			if quotaStore, err := ctx.openQuota(); err != nil {
				checks = append(checks, stage.Unhealthy("quota database", err.Error()))
			} else {
				used, limit, usageErr := quotaStore.Usage(cmd.Context())
				quotaStore.Close()
				if usageErr != nil {
					checks = append(checks, stage.Unhealthy("quota database", usageErr.Error()))
				} else {
					checks = append(checks, stage.Health{
						Name:   "quota database",
						Ready:  true,
						Detail: fmt.Sprintf("%d / %d used today", used, limit),
					})
				}
			}

			if err := cfg.RequireLLMCredentials(); err != nil {
				checks = append(checks, stage.Unhealthy("llm credentials", err.Error()))
			} else if ping {
				client, clientErr := ctx.newLLMClient()
				if clientErr != nil {
					checks = append(checks, stage.Unhealthy("llm service", clientErr.Error()))
				} else if err := client.HealthCheck(cmd.Context(), cfg.Script.Model); err != nil {
					checks = append(checks, stage.Unhealthy("llm service", err.Error()))
				} else {
					checks = append(checks, stage.Health{Name: "llm service", Ready: true, Detail: cfg.Script.Model})
				}
			} else {
				checks = append(checks, stage.Healthy("llm credentials"))
			}

			if err := cfg.RequireSearchCredentials(); err != nil {
				checks = append(checks, stage.Unhealthy("search credentials", err.Error()))
			} else {
				checks = append(checks, stage.Healthy("search credentials"))
			}

			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				checks = append(checks, stage.Health{Name: "notifications", Ready: true, Detail: "disabled"})
			} else {
				checks = append(checks, stage.Healthy("notifications"))
			}

			rows := make([][]string, 0, len(checks))
			failed := 0
			for _, check := range checks {
				status := "ok"
				if !check.Ready {
					status = "fail"
					failed++
				}
				rows = append(rows, []string{check.Name, status, check.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))

			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(checks))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "Also call the text-generation service health endpoint")
	return cmd
}
