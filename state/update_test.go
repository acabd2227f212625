// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/Fantom-foundation/substatedb/common"
)

var (
	node1 = common.NodeId{1}
	node2 = common.NodeId{2}
)

func TestStateUpdates_EmptyUpdateIsEmpty(t *testing.T) {
	updates := NewStateUpdates()
	if !updates.IsEmpty() {
		t.Errorf("new update should be empty")
	}
	if got, want := updates.Len(), 0; got != want {
		t.Errorf("unexpected length, wanted %d, got %d", want, got)
	}
	updates.Upsert(common.NewAddress(node1, 1, "a"), []byte{1})
	if updates.IsEmpty() {
		t.Errorf("update with upsert should not be empty")
	}
}

func TestStateUpdates_LaterChangesOverrideEarlierChanges(t *testing.T) {
	addr := common.NewAddress(node1, 1, "a")
	updates := NewStateUpdates()
	updates.Upsert(addr, []byte{1})
	updates.Delete(addr)
	updates.Upsert(addr, []byte{2})

	changes := updates.Partition(addr.PartitionKey()).Sorted()
	want := []KeyedUpdate{{Key: "a", SubstateUpdate: SubstateUpdate{Value: []byte{2}}}}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("unexpected changes, wanted %v, got %v", want, changes)
	}
}

func TestStateUpdates_ResetSubsumesPriorDelta(t *testing.T) {
	updates := NewStateUpdates()
	updates.Upsert(common.NewAddress(node1, 1, "a"), []byte{1})
	updates.Delete(common.NewAddress(node1, 1, "b"))
	updates.ResetPartition(node1, 1)
	updates.Upsert(common.NewAddress(node1, 1, "c"), []byte{3})
	updates.Upsert(common.NewAddress(node1, 1, "d"), []byte{4})
	updates.Delete(common.NewAddress(node1, 1, "d"))
	updates.Delete(common.NewAddress(node1, 1, "e"))

	partition := updates.Partition(common.PartitionKey{Node: node1, Partition: 1})
	if !partition.Reset {
		t.Fatalf("partition should be reset")
	}
	want := []KeyedUpdate{{Key: "c", SubstateUpdate: SubstateUpdate{Value: []byte{3}}}}
	if got := partition.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected content of reset partition, wanted %v, got %v", want, got)
	}
	if got, want := updates.Len(), 2; got != want {
		t.Errorf("unexpected length, wanted %d, got %d", want, got)
	}
}

func TestStateUpdates_PartitionsAreListedInOrder(t *testing.T) {
	updates := NewStateUpdates()
	updates.Upsert(common.NewAddress(node2, 1, "a"), []byte{1})
	updates.Upsert(common.NewAddress(node1, 7, "a"), []byte{1})
	updates.Upsert(common.NewAddress(node1, 3, "a"), []byte{1})

	want := []common.PartitionKey{{Node: node1, Partition: 3}, {Node: node1, Partition: 7}, {Node: node2, Partition: 1}}
	if got := updates.Partitions(); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected partition order, wanted %v, got %v", want, got)
	}
}

type recordingTarget struct {
	log []string
}

func (r *recordingTarget) ResetPartition(partition common.PartitionKey) error {
	r.log = append(r.log, "reset "+partition.String())
	return nil
}

func (r *recordingTarget) UpsertSubstate(address common.SubstateAddress, value []byte) error {
	r.log = append(r.log, "upsert "+address.String())
	return nil
}

func (r *recordingTarget) DeleteSubstate(address common.SubstateAddress) error {
	r.log = append(r.log, "delete "+address.String())
	return nil
}

func TestStateUpdates_ApplyToProcessesChangesInOrder(t *testing.T) {
	updates := NewStateUpdates()
	updates.Delete(common.NewAddress(node2, 1, "b"))
	updates.Upsert(common.NewAddress(node2, 1, "a"), []byte{1})
	updates.ResetPartition(node1, 4)
	updates.Upsert(common.NewAddress(node1, 4, "z"), []byte{1})

	target := &recordingTarget{}
	if err := updates.ApplyTo(target); err != nil {
		t.Fatalf("failed to apply update: %v", err)
	}
	want := []string{
		"reset " + common.PartitionKey{Node: node1, Partition: 4}.String(),
		"upsert " + common.NewAddress(node1, 4, "z").String(),
		"upsert " + common.NewAddress(node2, 1, "a").String(),
		"delete " + common.NewAddress(node2, 1, "b").String(),
	}
	if !reflect.DeepEqual(target.log, want) {
		t.Errorf("unexpected order of operations, wanted %v, got %v", want, target.log)
	}
}

func TestStateUpdates_EncodingIsDeterministicAndDecodable(t *testing.T) {
	updates := NewStateUpdates()
	updates.Upsert(common.NewAddress(node1, 1, "a"), []byte{1, 2, 3})
	updates.Upsert(common.NewAddress(node1, 1, ""), []byte{})
	updates.Delete(common.NewAddress(node1, 2, "b"))
	updates.ResetPartition(node2, 9)
	updates.Upsert(common.NewAddress(node2, 9, "c"), []byte{4})

	encoded := updates.ToBytes()
	restored, err := UpdatesFromBytes(encoded)
	if err != nil {
		t.Fatalf("failed to decode update: %v", err)
	}
	if !reflect.DeepEqual(updates.partitions, restored.partitions) {
		t.Errorf("decoded update differs, wanted %v, got %v", updates.partitions, restored.partitions)
	}
	if !bytes.Equal(encoded, restored.ToBytes()) {
		t.Errorf("re-encoding produced different bytes")
	}
}

func TestStateUpdates_DecodingDetectsCorruptedInput(t *testing.T) {
	updates := NewStateUpdates()
	updates.Upsert(common.NewAddress(node1, 1, "a"), []byte{1, 2, 3})
	encoded := updates.ToBytes()

	for i := 0; i < len(encoded); i++ {
		if _, err := UpdatesFromBytes(encoded[:i]); err == nil {
			t.Errorf("truncation to %d bytes should be detected", i)
		}
	}
	if _, err := UpdatesFromBytes(append(encoded, 0)); err == nil {
		t.Errorf("trailing bytes should be detected")
	}
	corrupted := bytes.Clone(encoded)
	corrupted[0] = 7
	if _, err := UpdatesFromBytes(corrupted); err == nil {
		t.Errorf("unknown encoding version should be detected")
	}
}

func TestStateUpdates_MergeAppliesChangesInSequence(t *testing.T) {
	a := common.NewAddress(node1, 1, "a")
	b := common.NewAddress(node1, 1, "b")
	c := common.NewAddress(node2, 2, "c")
	d := common.NewAddress(node2, 2, "d")

	first := NewStateUpdates()
	first.Upsert(a, []byte{1})
	first.Upsert(b, []byte{2})
	first.ResetPartition(node2, 2)
	first.Upsert(c, []byte{3})
	first.Upsert(d, []byte{4})

	second := NewStateUpdates()
	second.Delete(a)
	second.Upsert(b, []byte{5})
	second.Delete(c)

	first.Merge(second)

	want := NewStateUpdates()
	want.Delete(a)
	want.Upsert(b, []byte{5})
	want.ResetPartition(node2, 2)
	want.Upsert(d, []byte{4})
	if !reflect.DeepEqual(first, want) {
		t.Errorf("unexpected merge result, wanted %v, got %v", want, first)
	}

	reset := NewStateUpdates()
	reset.ResetPartition(node1, 1)
	first.Merge(reset)
	if p := first.Partition(a.PartitionKey()); p == nil || !p.Reset || len(p.Substates) != 0 {
		t.Errorf("merged reset should replace earlier changes, got %v", p)
	}
}
