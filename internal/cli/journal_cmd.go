// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jeranaias/portal-tui/internal/storage"
	"github.com/jeranaias/portal-tui/internal/util"
)

type journalOptions struct {
	limit     int
	pruneDays int
}

func newJournalCmd(root *rootOptions) *cobra.Command {
	opts := &journalOptions{}
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent session lifecycle events",
		Long: `Show the session events the client recorded: starts, warnings,
keepalives, extensions, expiries and stops. Per-second countdown ticks are
not journaled.

Examples:
  portal journal
  portal journal --limit 200 --json
  portal journal --prune-days 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd, root, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 50, "number of events to show")
	cmd.Flags().IntVar(&opts.pruneDays, "prune-days", 0, "delete events older than this many days first")
	return cmd
}

func runJournal(cmd *cobra.Command, root *rootOptions, opts *journalOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return errors.New("the session journal is disabled in the config")
	}

	journal, err := storage.OpenJournal(cfg.Journal.Path)
	if err != nil {
		return NewCommandError("journal", "open", err)
	}
	defer journal.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.pruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -opts.pruneDays)
		n, err := journal.Prune(ctx, cutoff)
		if err != nil {
			return NewCommandError("journal", "prune", err)
		}
		if !root.jsonOutput {
			fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("pruned "+util.Int64ToString(n)+" events"))
		}
	}

	entries, err := journal.Recent(ctx, opts.limit)
	if err != nil {
		return NewCommandError("journal", "read", err)
	}
	if root.jsonOutput {
		return NewJSONResponse("journal", entries).Write(out)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No session events recorded."))
		return nil
	}
	fmt.Fprintln(out, TitleStyle.Render("Session journal"))
	for _, e := range entries {
		fmt.Fprintln(out, formatEntry(e))
	}
	return nil
}

// formatEntry renders one journal row.
func formatEntry(e storage.Entry) string {
	kind := runewidth.FillRight(string(e.Kind), 20)
	line := DimStyle.Render(e.At.Local().Format("2006-01-02 15:04:05")) + "  " +
		ValueStyle.Render(kind) + " " +
		runewidth.FillLeft(util.IntToString(e.RemainingSeconds)+"s", 7) + " / " +
		util.IntToString(e.TimeoutMinutes) + "m"
	if e.Detail != "" {
		line += "  " + DimStyle.Render(runewidth.Truncate(e.Detail, 40, "…"))
	}
	return line
}
