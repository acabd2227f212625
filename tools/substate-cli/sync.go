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

	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/common/interrupt"
	"github.com/Fantom-foundation/substatedb/database"
	"github.com/Fantom-foundation/substatedb/database/sdb"
	"github.com/Fantom-foundation/substatedb/state"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var dbTargetDirFlag = cli.StringFlag{
	Name:     "trg-dir",
	Usage:    "the target of the synchronization",
	Required: true,
}

var syncCommand = cli.Command{
	Action: sync,
	Name:   "sync",
	Usage:  "copies the current substates of a database into an empty database",
	Flags: []cli.Flag{
		&dbTargetDirFlag,
		&cpuProfilingFlag,
	},
}

func sync(ctx *cli.Context) error {
	stop, err := startCPUProfile(ctx)
	if err != nil {
		return err
	}
	defer stop()

	params, err := getParameters(ctx)
	if err != nil {
		return err
	}
	targetParams := params
	targetParams.Directory = ctx.String(dbTargetDirFlag.Name)

	log := getLogger(ctx)
	runCtx, cancel := interrupt.Register(ctx.Context, log)
	defer cancel()

	return withDatabaseOf(ctx, params, func(source database.Database) error {
		snapshot, err := source.GetSnapshot()
		if err != nil {
			return err
		}
		defer snapshot.Release()

		updates := state.NewStateUpdates()
		err = sdb.VisitSubstates(snapshot, func(address common.SubstateAddress, value []byte) error {
			if interrupt.IsCancelled(runCtx) {
				return interrupt.ErrCanceled
			}
			updates.Upsert(address, value)
			return nil
		})
		if err != nil {
			return err
		}
		log.Info("read source state", zap.Int("substates", updates.Len()))

		return withDatabaseOf(ctx, targetParams, func(target database.Database) error {
			if target.GetCurrentVersion() != 0 {
				return fmt.Errorf("target database is not empty, it is at version %d", target.GetCurrentVersion())
			}
			if err := target.Commit(updates); err != nil {
				return err
			}
			if got, want := target.GetCurrentRootHash(), snapshot.GetCurrentRootHash(); got != want {
				return fmt.Errorf("synchronization failed, target root %v differs from source root %v", got, want)
			}
			fmt.Fprintf(ctx.App.Writer, "Synchronized state root: %v\n", target.GetCurrentRootHash())
			return nil
		})
	})
}
