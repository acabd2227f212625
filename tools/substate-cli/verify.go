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
	"time"

	"github.com/Fantom-foundation/substatedb/common/interrupt"
	"github.com/Fantom-foundation/substatedb/database"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var verifyCommand = cli.Command{
	Action: verify,
	Name:   "verify",
	Usage:  "checks that the state tree matches the stored substates",
	Flags: []cli.Flag{
		&cpuProfilingFlag,
	},
}

func verify(ctx *cli.Context) error {
	stop, err := startCPUProfile(ctx)
	if err != nil {
		return err
	}
	defer stop()

	log := getLogger(ctx)
	runCtx, cancel := interrupt.Register(ctx.Context, log)
	defer cancel()

	return withDatabase(ctx, func(db database.Database) error {
		snapshot, err := db.GetSnapshot()
		if err != nil {
			return err
		}
		defer snapshot.Release()

		start := time.Now()
		log.Info("verifying database", zap.Uint64("version", uint64(snapshot.GetCurrentVersion())))
		if err := snapshot.Verify(runCtx); err != nil {
			return err
		}
		log.Info("verification succeeded", zap.Duration("duration", time.Since(start)))
		fmt.Fprintf(ctx.App.Writer, "Version %d verified: %v\n", snapshot.GetCurrentVersion(), snapshot.GetCurrentRootHash())
		return nil
	})
}
