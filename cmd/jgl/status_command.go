package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoodnightSam/JGL-Assistant/internal/pipeline"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

type statusPayload struct {
	Subject          string          `json:"subject"`
	Key              string          `json:"key"`
	State            string          `json:"state"`
	PhoneticStale    bool            `json:"phonetic_stale"`
	StoryboardStale  bool            `json:"storyboard_stale"`
	ShotCount        int             `json:"shot_count"`
	ShotsWithPools   int             `json:"shots_with_pools"`
	ShotsAtMinimum   int             `json:"shots_at_minimum"`
	ActiveCandidates int             `json:"active_candidates"`
	Artifacts        map[string]bool `json:"artifacts"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <subject>",
		Short: "Show derived pipeline state for one subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openWorkspace()
			if err != nil {
				return err
			}
			handle, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			snap, err := pipeline.Evaluate(store, handle, cfg.Assets.MinImagesPerShot)
			if err != nil {
				return err
			}

			artifacts := make(map[string]bool, len(workspace.Kinds()))
			for _, kind := range workspace.Kinds() {
				exists, err := store.Exists(handle, kind)
				if err != nil {
					return err
				}
				artifacts[string(kind)] = exists
			}

			if jsonOutput {
				return writeJSON(cmd, statusPayload{
					Subject:          handle.DisplayName,
					Key:              handle.Key,
					State:            string(snap.State),
					PhoneticStale:    snap.PhoneticStale,
					StoryboardStale:  snap.StoryboardStale,
					ShotCount:        snap.ShotCount,
					ShotsWithPools:   snap.Assets.ShotsWithPools,
					ShotsAtMinimum:   snap.Assets.ShotsAtMinimum,
					ActiveCandidates: snap.Assets.ActiveCandidates,
					Artifacts:        artifacts,
				})
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Subject", handle.DisplayName},
				{"State", string(snap.State)},
				{"Phonetic stale", yesNo(snap.PhoneticStale)},
				{"Storyboard stale", yesNo(snap.StoryboardStale)},
				{"Shots", fmt.Sprintf("%d", snap.ShotCount)},
			}
			if snap.ShotCount > 0 {
				rows = append(rows,
					[]string{"Shots with pools", fmt.Sprintf("%d", snap.Assets.ShotsWithPools)},
					[]string{"Shots at minimum", fmt.Sprintf("%d / %d", snap.Assets.ShotsAtMinimum, snap.Assets.ShotsTotal)},
					[]string{"Active candidates", fmt.Sprintf("%d", snap.Assets.ActiveCandidates)},
				)
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))

			artifactRows := make([][]string, 0, len(workspace.Kinds()))
			for _, kind := range workspace.Kinds() {
				artifactRows = append(artifactRows, []string{string(kind), yesNo(artifacts[string(kind)])})
			}
			fmt.Fprintln(out, renderTable([]string{"Artifact", "Present"}, artifactRows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of tables")
	return cmd
}
