// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"os"

	"github.com/Fantom-foundation/substatedb/database"
	"github.com/Fantom-foundation/substatedb/database/sdb"
	"github.com/Fantom-foundation/substatedb/state"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var updateFileFlag = cli.StringSliceFlag{
	Name:     "file",
	Usage:    "files containing encoded state updates, applied in the given order",
	Required: true,
}

var applyCommand = cli.Command{
	Action: applyUpdates,
	Name:   "apply",
	Usage:  "commits the state updates of one or more files as the next version",
	Flags: []cli.Flag{
		&updateFileFlag,
	},
}

func applyUpdates(ctx *cli.Context) error {
	files := []*state.StateUpdates{}
	for _, path := range ctx.StringSlice(updateFileFlag.Name) {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		updates, err := state.UpdatesFromBytes(data)
		if err != nil {
			return fmt.Errorf("invalid update file %s: %w", path, err)
		}
		files = append(files, updates)
	}
	return withDatabase(ctx, func(db database.Database) error {
		overlay := sdb.NewOverlay(db)
		for _, updates := range files {
			overlay.Stage(updates)
		}
		updates := overlay.Updates()
		getLogger(ctx).Info("committing updates", zap.Int("files", len(files)), zap.Int("changes", updates.Len()))
		if err := db.Commit(updates); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Version %d: %v\n", db.GetCurrentVersion(), db.GetCurrentRootHash())
		return nil
	})
}
