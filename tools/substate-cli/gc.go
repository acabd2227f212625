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
	"github.com/Fantom-foundation/substatedb/database"
	"github.com/urfave/cli/v2"
)

var upToFlag = cli.Uint64Flag{
	Name:  "up-to",
	Usage: "the last version whose stale tree parts are deleted, the current version if unset",
}

var collectGarbageCommand = cli.Command{
	Action: collectGarbage,
	Name:   "gc",
	Usage:  "deletes the tree nodes only reachable from historic versions",
	Flags: []cli.Flag{
		&upToFlag,
	},
}

func collectGarbage(ctx *cli.Context) error {
	return withDatabase(ctx, func(db database.Database) error {
		upTo := db.GetCurrentVersion()
		if ctx.IsSet(upToFlag.Name) {
			upTo = min(upTo, common.Version(ctx.Uint64(upToFlag.Name)))
		}
		if err := db.CollectGarbage(upTo); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Collected stale tree parts up to version %d\n", upTo)
		return nil
	})
}
