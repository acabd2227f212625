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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/database"
	"github.com/Fantom-foundation/substatedb/state"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	out := new(bytes.Buffer)
	app.Writer = out
	err := app.Run(append([]string{"substate-cli", "--log-level", "error"}, args...))
	return out.String(), err
}

func writeUpdates(t *testing.T, updates *state.StateUpdates) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updates.bin")
	if err := os.WriteFile(path, updates.ToBytes(), 0600); err != nil {
		t.Fatalf("failed to write update file: %v", err)
	}
	return path
}

func testNode(i byte) common.NodeId {
	var res common.NodeId
	res[len(res)-1] = i
	return res
}

func TestCli_UpdatesCanBeAppliedAndInspected(t *testing.T) {
	dir := t.TempDir()
	updates := state.NewStateUpdates()
	updates.Upsert(common.NewAddress(testNode(1), 6, "2"), []byte{30})
	updates.Upsert(common.NewAddress(testNode(1), 7, "9"), []byte{40})
	updates.Upsert(common.NewAddress(testNode(2), 6, "2"), []byte{50})

	if _, err := run(t, "--dir", dir, "apply", "--file", writeUpdates(t, updates)); err != nil {
		t.Fatalf("failed to apply updates: %v", err)
	}

	out, err := run(t, "--dir", dir, "info")
	if err != nil {
		t.Fatalf("failed to get info: %v", err)
	}
	if !strings.Contains(out, "Version: 1\n") || !strings.Contains(out, "Partitions: 3\n") {
		t.Errorf("unexpected info output:\n%s", out)
	}

	out, err = run(t, "--dir", dir, "partitions")
	if err != nil {
		t.Fatalf("failed to list partitions: %v", err)
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Errorf("unexpected number of partitions, wanted 3, got %d:\n%s", got, out)
	}

	out, err = run(t, "--dir", dir, "entries", "--node", testNode(1).String(), "--partition", "7")
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if want := "39: 28\n"; out != want {
		t.Errorf("unexpected entries, wanted %q, got %q", want, out)
	}

	out, err = run(t, "--dir", dir, "verify")
	if err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	if !strings.Contains(out, "Version 1 verified") {
		t.Errorf("unexpected verify output:\n%s", out)
	}
}

func TestCli_MultipleUpdateFilesAreCommittedAsOneVersion(t *testing.T) {
	dir := t.TempDir()
	first := state.NewStateUpdates()
	first.Upsert(common.NewAddress(testNode(1), 7, "1"), []byte{10})
	first.Upsert(common.NewAddress(testNode(1), 7, "2"), []byte{20})
	second := state.NewStateUpdates()
	second.Delete(common.NewAddress(testNode(1), 7, "1"))
	second.Upsert(common.NewAddress(testNode(1), 7, "3"), []byte{30})

	out, err := run(t, "--dir", dir, "apply", "--file", writeUpdates(t, first), "--file", writeUpdates(t, second))
	if err != nil {
		t.Fatalf("failed to apply updates: %v", err)
	}
	if !strings.HasPrefix(out, "Version 1:") {
		t.Errorf("unexpected apply output:\n%s", out)
	}

	out, err = run(t, "--dir", dir, "entries", "--node", testNode(1).String(), "--partition", "7")
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if want := "32: 14\n33: 1e\n"; out != want {
		t.Errorf("unexpected entries, wanted %q, got %q", want, out)
	}
}

func TestCli_SyncCopiesCurrentState(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	for i := byte(0); i < 3; i++ {
		updates := state.NewStateUpdates()
		updates.Upsert(common.NewAddress(testNode(i), 1, "k"), []byte{i})
		if _, err := run(t, "--dir", source, "apply", "--file", writeUpdates(t, updates)); err != nil {
			t.Fatalf("failed to apply updates: %v", err)
		}
	}
	if _, err := run(t, "--dir", source, "gc", "--up-to", "2"); err != nil {
		t.Fatalf("failed to collect garbage: %v", err)
	}
	out, err := run(t, "--dir", source, "sync", "--trg-dir", target)
	if err != nil {
		t.Fatalf("failed to sync: %v", err)
	}
	if !strings.Contains(out, "Synchronized state root") {
		t.Errorf("unexpected sync output:\n%s", out)
	}
	if _, err := run(t, "--dir", source, "sync", "--trg-dir", target); err == nil {
		t.Errorf("syncing into a non-empty database should fail")
	}
}

func TestCli_ParametersAreReadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	config := "variant = \"go-pebble\"\ndirectory = \"" + filepath.ToSlash(filepath.Join(dir, "db")) + "\"\npruning = true\nnode_cache_size = 2048\n"
	if err := os.WriteFile(path, []byte(config), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	want := fileConfig{
		Variant:       string(database.PebbleVariant),
		Directory:     filepath.ToSlash(filepath.Join(dir, "db")),
		Pruning:       true,
		NodeCacheSize: 2048,
	}
	if got != want {
		t.Errorf("unexpected config, wanted %v, got %v", want, got)
	}
	if _, err := run(t, "--config", path, "info"); err != nil {
		t.Errorf("failed to open configured database: %v", err)
	}

	if err := os.WriteFile(path, []byte("unknown = 1\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Errorf("unknown config fields should be rejected")
	}
}

func TestCli_MissingDirectoryIsReported(t *testing.T) {
	if _, err := run(t, "info"); err == nil {
		t.Errorf("missing directory should be reported")
	}
	if _, err := run(t, "--variant", "memory", "info"); err != nil {
		t.Errorf("memory databases need no directory: %v", err)
	}
}

func TestCli_NodeIdsAreParsedFromHex(t *testing.T) {
	id, err := parseNodeId(testNode(7).String())
	if err != nil || id != testNode(7) {
		t.Errorf("unexpected node id, wanted %v, got %v, %v", testNode(7), id, err)
	}
	for _, text := range []string{"", "0102", "zz", strings.Repeat("0", 62)} {
		if _, err := parseNodeId(text); err == nil {
			t.Errorf("invalid node id %q should be rejected", text)
		}
	}
}
