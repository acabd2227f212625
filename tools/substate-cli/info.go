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

	"github.com/Fantom-foundation/substatedb/database"
	"github.com/urfave/cli/v2"
)

var getInfoCommand = cli.Command{
	Action: getInfo,
	Name:   "info",
	Usage:  "prints summary information about a substate database",
}

func getInfo(ctx *cli.Context) error {
	return withDatabase(ctx, func(db database.Database) error {
		out := ctx.App.Writer
		fmt.Fprintf(out, "Version: %d\n", db.GetCurrentVersion())
		fmt.Fprintf(out, "State root: %v\n", db.GetCurrentRootHash())

		iter, err := db.ListPartitionKeys()
		if err != nil {
			return err
		}
		defer iter.Release()
		partitions := 0
		for iter.Next() {
			partitions++
		}
		if err := iter.Error(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Partitions: %d\n", partitions)

		fmt.Fprintf(out, "Memory footprint:\n%v", db.GetMemoryFootprint())
		return nil
	})
}
