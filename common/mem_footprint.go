// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryFootprint describes the memory used by a component of the database
// as a tree of named sub-components.
type MemoryFootprint struct {
	value    uintptr
	note     string
	children map[string]*MemoryFootprint
}

// NewMemoryFootprint creates a footprint of a component using the given
// number of bytes itself.
func NewMemoryFootprint(value uintptr) *MemoryFootprint {
	return &MemoryFootprint{
		value:    value,
		children: map[string]*MemoryFootprint{},
	}
}

// AddChild attaches the footprint of a named sub-component. Nil children
// are ignored.
func (mf *MemoryFootprint) AddChild(name string, child *MemoryFootprint) {
	if child != nil {
		mf.children[name] = child
	}
}

// SetNote attaches a free-form description printed next to the component.
func (mf *MemoryFootprint) SetNote(note string) {
	mf.note = note
}

// Value is the number of bytes used by the component itself.
func (mf *MemoryFootprint) Value() uintptr {
	return mf.value
}

// Total is the number of bytes used by the component and all its
// sub-components. Components reachable along multiple paths are counted once.
func (mf *MemoryFootprint) Total() uintptr {
	seen := map[*MemoryFootprint]struct{}{}
	var sum func(*MemoryFootprint) uintptr
	sum = func(cur *MemoryFootprint) uintptr {
		if _, found := seen[cur]; found {
			return 0
		}
		seen[cur] = struct{}{}
		res := cur.value
		for _, child := range cur.children {
			res += sum(child)
		}
		return res
	}
	return sum(mf)
}

// String lists the totals of all components, children before their parent.
func (mf *MemoryFootprint) String() string {
	var sb strings.Builder
	mf.print(&sb, ".", map[*MemoryFootprint]struct{}{})
	return sb.String()
}

func (mf *MemoryFootprint) print(sb *strings.Builder, path string, visited map[*MemoryFootprint]struct{}) {
	if _, found := visited[mf]; found {
		return
	}
	visited[mf] = struct{}{}
	names := maps.Keys(mf.children)
	slices.Sort(names)
	for _, name := range names {
		mf.children[name].print(sb, path+"/"+name, visited)
	}
	sb.WriteString(formatMemory(mf.Total()))
	sb.WriteRune(' ')
	sb.WriteString(path)
	if mf.note != "" {
		sb.WriteString(" (")
		sb.WriteString(mf.note)
		sb.WriteRune(')')
	}
	sb.WriteRune('\n')
}

func formatMemory(bytes uintptr) string {
	const prefixes = " KMGTPE"
	value, exp := float64(bytes), 0
	for value >= 1024 && exp+1 < len(prefixes) {
		value /= 1024
		exp++
	}
	return fmt.Sprintf("%6.1f %cB", value, prefixes[exp])
}
