package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/libsync/internal/formatter"
	"github.com/urfave/cli/v3"
)

// History prints recent batches, the tracks of one batch, or unresolved tracks across batches.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	history, err := r.batchHistory(config)
	if err != nil {
		return err
	}
	limit := int(cmd.Int("limit"))

	if ref := cmd.Args().First(); ref != "" {
		batch, outcomes, err := history.Lookup(ref)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"batch": batch, "outcomes": outcomes}, true)
		}
		r.writePlainHeader(fmt.Sprintf("Batch #%d: %s (%s)", batch.Sequence(), batch.PlaylistName, batch.Status))
		if batch.Error != "" {
			r.writePlain("Error: %s\n", batch.Error)
		}
		r.writePlain("%s", formatter.OutcomeList(outcomes))
		return nil
	}

	if cmd.Bool("unresolved") {
		outcomes, err := history.Unresolved(limit)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(outcomes, true)
		}
		if len(outcomes) == 0 {
			r.writePlain("No unresolved tracks\n")
			return nil
		}
		r.writePlain("%s", formatter.OutcomeList(outcomes))
		return nil
	}

	batches, err := history.Recent(limit)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(batches, true)
	}
	if len(batches) == 0 {
		r.writePlain("No batches recorded yet\n")
		return nil
	}
	r.writePlain("%s", formatter.HistoryTable(batches, r.now()))
	return nil
}
