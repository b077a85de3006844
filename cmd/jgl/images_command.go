package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/GoodnightSam/JGL-Assistant/internal/assets"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

func newImagesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var shotFlag int

	imagesCmd := &cobra.Command{
		Use:   "images <subject>",
		Short: "Inspect and curate per-shot image candidate pools",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return listImagePools(cmd, ctx, args[0], jsonOutput, shotFlag)
		},
	}

	imagesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	imagesCmd.Flags().IntVar(&shotFlag, "shot", 0, "Show one shot's candidates")

	imagesCmd.AddCommand(newImagesArchiveCommand(ctx))
	imagesCmd.AddCommand(newImagesFlagCommand(ctx))

	return imagesCmd
}

func listImagePools(cmd *cobra.Command, ctx *commandContext, subject string, jsonOutput bool, shotIndex int) error {
	store, err := ctx.openWorkspace()
	if err != nil {
		return err
	}
	handle, err := store.Resolve(subject)
	if err != nil {
		return err
	}
	doc, err := workspace.ReadJSON[assets.Document](store, handle, workspace.KindImageMetadata)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No image metadata yet for %s\n", handle.DisplayName)
			return nil
		}
		return err
	}

	if shotIndex > 0 {
		pool := doc.Pool(shotIndex)
		if pool == nil {
			return services.Wrap(services.ErrNotFound, "cli", "images",
				fmt.Sprintf("shot %d has no candidate pool", shotIndex), nil)
		}
		if jsonOutput {
			return writeJSON(cmd, pool)
		}
		rows := make([][]string, 0, len(pool.Candidates))
		for _, c := range pool.Candidates {
			rows = append(rows, []string{
				c.FileName,
				string(c.Status),
				fmt.Sprintf("%dx%d", c.Width, c.Height),
				c.SourceDomain,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"File", "Status", "Size", "Domain"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
		return nil
	}

	if jsonOutput {
		return writeJSON(cmd, doc)
	}
	rows := make([][]string, 0, len(doc.Shots))
	for i := range doc.Shots {
		pool := &doc.Shots[i]
		rows = append(rows, []string{
			fmt.Sprintf("%d", pool.ShotIndex),
			string(pool.Outcome),
			fmt.Sprintf("%d", pool.ActiveCount()),
			fmt.Sprintf("%d", len(pool.Candidates)),
			fmt.Sprintf("%d", pool.SearchCalls),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Shot", "Outcome", "Active", "Total", "Searches"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight}))
	return nil
}

func newImagesArchiveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <subject> <shot> <file>",
		Short: "Move a rejected candidate to the archive directory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			shotIndex, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("shot index %q is not a number", args[1])
			}
			store, err := ctx.openWorkspace()
			if err != nil {
				return err
			}
			handle, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := assets.Archive(store, handle, shotIndex, args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %s from shot %d\n", args[2], shotIndex)
			return nil
		},
	}
	return cmd
}

func newImagesFlagCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "flag <subject> <shot> <file>",
		Short: "Flag a candidate for post-processing (upscale or aspect fix)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status assets.Status
			switch reason {
			case "upscale":
				status = assets.StatusFlaggedUpscale
			case "aspect":
				status = assets.StatusFlaggedAspect
			default:
				return fmt.Errorf("unknown flag reason %q (want upscale or aspect)", reason)
			}
			shotIndex, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("shot index %q is not a number", args[1])
			}
			store, err := ctx.openWorkspace()
			if err != nil {
				return err
			}
			handle, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := assets.Flag(store, handle, shotIndex, args[2], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flagged %s in shot %d for %s\n", args[2], shotIndex, reason)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "for", "upscale", "Post-processing reason: upscale or aspect")
	return cmd
}
