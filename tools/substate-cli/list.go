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
	"encoding/hex"
	"fmt"

	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/database"
	"github.com/Fantom-foundation/substatedb/database/sdb"
	"github.com/urfave/cli/v2"
)

var (
	nodeFlag = cli.StringFlag{
		Name:     "node",
		Usage:    "the hex encoded id of the node owning the partition",
		Required: true,
	}
	partitionFlag = cli.UintFlag{
		Name:     "partition",
		Usage:    "the number of the partition",
		Required: true,
	}
)

var listPartitionsCommand = cli.Command{
	Action: listPartitions,
	Name:   "partitions",
	Usage:  "lists all non-empty partitions of a substate database",
}

var listEntriesCommand = cli.Command{
	Action: listEntries,
	Name:   "entries",
	Usage:  "lists the substates of a partition",
	Flags: []cli.Flag{
		&nodeFlag,
		&partitionFlag,
	},
}

func listPartitions(ctx *cli.Context) error {
	return withDatabase(ctx, func(db database.Database) error {
		iter, err := db.ListPartitionKeys()
		if err != nil {
			return err
		}
		defer iter.Release()
		for iter.Next() {
			fmt.Fprintln(ctx.App.Writer, iter.Partition())
		}
		return iter.Error()
	})
}

func listEntries(ctx *cli.Context) error {
	node, err := parseNodeId(ctx.String(nodeFlag.Name))
	if err != nil {
		return err
	}
	number := ctx.Uint(partitionFlag.Name)
	if number > 255 {
		return fmt.Errorf("invalid partition number %d", number)
	}
	return withDatabase(ctx, func(db database.Database) error {
		entries, err := sdb.ReadPartition(db, node, common.PartitionId(number))
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Fprintf(ctx.App.Writer, "%v: %x\n", entry.Key, entry.Value)
		}
		return nil
	})
}

func parseNodeId(text string) (common.NodeId, error) {
	var res common.NodeId
	data, err := hex.DecodeString(text)
	if err != nil {
		return res, fmt.Errorf("invalid node id: %w", err)
	}
	if len(data) != len(res) {
		return res, fmt.Errorf("invalid node id length %d, wanted %d bytes", len(data), len(res))
	}
	copy(res[:], data)
	return res, nil
}
