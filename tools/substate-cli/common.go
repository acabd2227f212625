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
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/Fantom-foundation/substatedb/database"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "a TOML file providing the database parameters",
	}
	dbDirectoryFlag = cli.StringFlag{
		Name:  "dir",
		Usage: "the targeted database directory",
	}
	variantFlag = cli.StringFlag{
		Name:  "variant",
		Usage: "the key-value engine of the database",
		Value: string(database.LevelDbVariant),
	}
	pruningFlag = cli.BoolFlag{
		Name:  "pruning",
		Usage: "delete stale tree nodes when committing",
	}
	nodeCacheSizeFlag = cli.IntFlag{
		Name:  "node-cache-size",
		Usage: "the number of cached tree nodes, derived from the host memory if 0",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "the minimum level of log messages",
		Value: "info",
	}
	cpuProfilingFlag = cli.StringFlag{
		Name:  "cpu-profile",
		Usage: "enable the recording of a CPU profile",
	}
)

const loggerKey = "logger"

// fileConfig is the content of a configuration file. Flags set on the
// command line take precedence.
type fileConfig struct {
	Variant       string `toml:"variant"`
	Directory     string `toml:"directory"`
	Pruning       bool   `toml:"pruning"`
	NodeCacheSize int    `toml:"node_cache_size"`
}

func loadConfig(path string) (fileConfig, error) {
	res := fileConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&res); err != nil {
		return res, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return res, nil
}

func getParameters(ctx *cli.Context) (database.Parameters, error) {
	config := fileConfig{Variant: ctx.String(variantFlag.Name)}
	if path := ctx.String(configFileFlag.Name); path != "" {
		var err error
		if config, err = loadConfig(path); err != nil {
			return database.Parameters{}, err
		}
	}
	if ctx.IsSet(variantFlag.Name) || config.Variant == "" {
		config.Variant = ctx.String(variantFlag.Name)
	}
	if ctx.IsSet(dbDirectoryFlag.Name) {
		config.Directory = ctx.String(dbDirectoryFlag.Name)
	}
	if ctx.IsSet(pruningFlag.Name) {
		config.Pruning = ctx.Bool(pruningFlag.Name)
	}
	if ctx.IsSet(nodeCacheSizeFlag.Name) {
		config.NodeCacheSize = ctx.Int(nodeCacheSizeFlag.Name)
	}
	if config.Directory == "" && database.Variant(config.Variant) != database.MemoryVariant {
		return database.Parameters{}, fmt.Errorf("no database directory given")
	}
	return database.Parameters{
		Variant:       database.Variant(config.Variant),
		Directory:     config.Directory,
		Pruning:       config.Pruning,
		NodeCacheSize: config.NodeCacheSize,
		Logger:        getLogger(ctx),
	}, nil
}

func setupLogger(ctx *cli.Context) error {
	level, err := zapcore.ParseLevel(ctx.String(logLevelFlag.Name))
	if err != nil {
		return err
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	ctx.App.Metadata[loggerKey] = logger
	return nil
}

func syncLogger(ctx *cli.Context) error {
	// syncing stderr is not supported on all platforms
	_ = getLogger(ctx).Sync()
	return nil
}

func getLogger(ctx *cli.Context) *zap.Logger {
	if logger, ok := ctx.App.Metadata[loggerKey].(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// withDatabase opens the database configured by the flags of the given
// context, runs the given operation on it, and closes it again.
func withDatabase(ctx *cli.Context, run func(database.Database) error) (err error) {
	params, err := getParameters(ctx)
	if err != nil {
		return err
	}
	return withDatabaseOf(ctx, params, run)
}

func withDatabaseOf(ctx *cli.Context, params database.Parameters, run func(database.Database) error) (err error) {
	log := getLogger(ctx)
	log.Info("opening database", zap.String("directory", params.Directory))
	db, err := database.OpenDatabase(params)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database", zap.String("directory", params.Directory))
		err = errors.Join(err, db.Close())
	}()
	return run(db)
}

func startCPUProfile(ctx *cli.Context) (func(), error) {
	target := ctx.String(cpuProfilingFlag.Name)
	if target == "" {
		return func() {}, nil
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return nil, errors.Join(fmt.Errorf("could not start CPU profile: %w", err), f.Close())
	}
	return func() {
		pprof.StopCPUProfile()
		if err := f.Close(); err != nil {
			getLogger(ctx).Warn("failed to close CPU profile", zap.Error(err))
		}
	}, nil
}
