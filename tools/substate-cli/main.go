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

	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./tools/substate-cli <command> <flags>

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "Substate Database Toolbox",
		HelpName:  "substate-cli",
		Usage:     "A set of utilities to inspect and maintain substate database directories",
		Copyright: "(c) 2024 Fantom Foundation",
		Flags: []cli.Flag{
			&configFileFlag,
			&dbDirectoryFlag,
			&variantFlag,
			&pruningFlag,
			&nodeCacheSizeFlag,
			&logLevelFlag,
		},
		Before: setupLogger,
		After:  syncLogger,
		Commands: []*cli.Command{
			&getInfoCommand,
			&listPartitionsCommand,
			&listEntriesCommand,
			&applyCommand,
			&verifyCommand,
			&collectGarbageCommand,
			&syncCommand,
		},
	}
}
