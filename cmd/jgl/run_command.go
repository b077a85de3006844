package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/GoodnightSam/JGL-Assistant/internal/assets"
	"github.com/GoodnightSam/JGL-Assistant/internal/ledger"
	"github.com/GoodnightSam/JGL-Assistant/internal/notifications"
	"github.com/GoodnightSam/JGL-Assistant/internal/pipeline"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var untilFlag string
	var onExistingFlag string
	var onStaleFlag string
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "run <subject>",
		Short: "Run the production pipeline for one subject",
		Long: "Run the production pipeline for one subject: script, phonetic variant,\n" +
			"storyboard with music brief, and per-shot image candidate pools.\n" +
			"Existing artifacts are never regenerated without an explicit decision.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			until, err := pipeline.ParseUntil(untilFlag)
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireLLMCredentials(); err != nil {
				return err
			}
			needSearch := until == pipeline.UntilAssets || until == pipeline.UntilFull
			if needSearch {
				if err := cfg.RequireSearchCredentials(); err != nil {
					return err
				}
			}

			opts := pipeline.Options{Until: until}
			if onExistingFlag != "" {
				decision, err := pipeline.ParseDecision(onExistingFlag)
				if err != nil {
					return err
				}
				opts.OnExisting = fixedDecision(decision)
			}
			if onStaleFlag != "" {
				decision, err := pipeline.ParseDecision(onStaleFlag)
				if err != nil {
					return err
				}
				opts.OnStale = fixedDecision(decision)
			}
			if !assumeYes {
				if isatty.IsTerminal(os.Stdin.Fd()) {
					reader := bufio.NewReader(cmd.InOrStdin())
					if opts.OnExisting == nil {
						opts.OnExisting = promptDecision(cmd, reader,
							"%s already exists for %s.")
					}
					if opts.OnStale == nil {
						opts.OnStale = promptDecision(cmd, reader,
							"%s for %s is stale: the script changed underneath it.")
					}
				} else if opts.OnExisting == nil {
					// Without a terminal nobody can answer the prompt, so
					// an existing script needs an explicit decision flag.
					opts.OnExisting = requireDecisionFlag()
				}
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ctx.openWorkspace()
			if err != nil {
				return err
			}
			client, err := ctx.newLLMClient()
			if err != nil {
				return err
			}
			quotaStore, err := ctx.openQuota()
			if err != nil {
				return err
			}
			defer quotaStore.Close()

			var searcher assets.Searcher
			if needSearch {
				cse, err := assets.NewCSESearcher(cmd.Context(), cfg.Search)
				if err != nil {
					return err
				}
				searcher = cse
			}

			ctrl := pipeline.NewController(store, client, searcher, quotaStore, quotaStore, cfg, logger)
			notify := notifications.NewService(cfg)
			out := cmd.OutOrStdout()

			report, err := ctrl.Run(cmd.Context(), args[0], opts)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					notifyWarn(cmd, notify.NotifyRunFailed(cmd.Context(), args[0], err))
				}
				return err
			}
			if report.Aborted {
				fmt.Fprintf(out, "Run aborted at %s; existing artifacts preserved.\n", report.AbortedAt)
				return nil
			}

			handle, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			costs, err := ledger.Open(store, handle, logger)
			if err != nil {
				return err
			}
			printRunReport(cmd, handle, report, costs.Total())

			switch {
			case report.QuotaExhausted:
				notifyWarn(cmd, notify.NotifyQuotaExhausted(cmd.Context(), handle.DisplayName))
			case assetShortfall(report.AssetSummary):
				notifyWarn(cmd, notify.NotifyAssetsPartial(cmd.Context(), handle.DisplayName,
					report.AssetSummary.ShotsPartial, report.AssetSummary.ShotsFailed))
			default:
				notifyWarn(cmd, notify.NotifyRunCompleted(cmd.Context(), handle.DisplayName,
					string(report.Snapshot.State), costs.Total()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&untilFlag, "until", string(pipeline.UntilFull),
		"Last step to run: script, storyboard, assets, or full")
	cmd.Flags().StringVar(&onExistingFlag, "on-existing", "",
		"Decision for an existing script: reuse, regenerate, or abort")
	cmd.Flags().StringVar(&onStaleFlag, "on-stale", "",
		"Decision for a stale downstream artifact: reuse, regenerate, or abort")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false,
		"Never prompt; reuse existing artifacts and abort on stale ones")
	return cmd
}

func requireDecisionFlag() pipeline.DecisionFunc {
	return func(_ context.Context, h *workspace.Handle, artifact string, _ pipeline.Snapshot) (pipeline.Decision, error) {
		return "", fmt.Errorf("%s already exists for %s; pass --on-existing or --yes", artifact, h.DisplayName)
	}
}

func fixedDecision(decision pipeline.Decision) pipeline.DecisionFunc {
	return func(context.Context, *workspace.Handle, string, pipeline.Snapshot) (pipeline.Decision, error) {
		return decision, nil
	}
}

// promptDecision asks the operator what to do with one artifact. The
// format string receives the artifact label and the display name.
func promptDecision(cmd *cobra.Command, reader *bufio.Reader, format string) pipeline.DecisionFunc {
	return func(_ context.Context, h *workspace.Handle, artifact string, _ pipeline.Snapshot) (pipeline.Decision, error) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, format+"\n", artifactLabel(artifact), h.DisplayName)
		for {
			fmt.Fprint(out, "Reuse, regenerate, or abort? [r/g/a]: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", fmt.Errorf("read decision: %w", err)
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "r", "reuse":
				return pipeline.DecisionReuse, nil
			case "g", "regenerate":
				return pipeline.DecisionRegenerate, nil
			case "a", "abort":
				return pipeline.DecisionAbort, nil
			}
			fmt.Fprintln(out, "Please answer r, g, or a.")
		}
	}
}

func artifactLabel(artifact string) string {
	switch artifact {
	case "script":
		return "A script"
	case "phonetic_script":
		return "The phonetic script"
	case "storyboard":
		return "The storyboard"
	default:
		return "The " + artifact
	}
}

func assetShortfall(summary *assets.Summary) bool {
	return summary != nil && (summary.ShotsPartial > 0 || summary.ShotsFailed > 0)
}

func notifyWarn(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: notification failed: %v\n", err)
	}
}

func printRunReport(cmd *cobra.Command, h *workspace.Handle, report *pipeline.Report, totalCost float64) {
	out := cmd.OutOrStdout()
	snap := report.Snapshot

	rows := [][]string{
		{"Subject", h.DisplayName},
		{"State", string(snap.State)},
		{"Shots", fmt.Sprintf("%d", snap.ShotCount)},
	}
	if snap.ShotCount > 0 {
		rows = append(rows,
			[]string{"Shots at minimum", fmt.Sprintf("%d / %d", snap.Assets.ShotsAtMinimum, snap.Assets.ShotsTotal)},
			[]string{"Active candidates", fmt.Sprintf("%d", snap.Assets.ActiveCandidates)},
		)
	}
	rows = append(rows, []string{"Total spend", fmt.Sprintf("$%.4f", totalCost)})
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))

	if summary := report.AssetSummary; summary != nil {
		fmt.Fprintf(out, "Image acquisition: %d ok, %d partial, %d failed, %d skipped; %d images kept, %d search calls\n",
			summary.ShotsOK, summary.ShotsPartial, summary.ShotsFailed, summary.ShotsSkipped,
			summary.ImagesKept, summary.SearchCalls)
	}
	if report.QuotaExhausted {
		fmt.Fprintln(out, "Daily search quota exhausted; re-run tomorrow to finish remaining shots.")
	}
}
