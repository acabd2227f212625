// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package statetree

import (
	"strings"

	"github.com/Fantom-foundation/substatedb/common"
)

// Nibble is a 4-bit unsigned integer in the range 0-F. It is a single letter
// used to navigate in the tree structure.
type Nibble byte

// Rune converts a Nibble in a hexa-decimal rune (0-9a-f).
func (n Nibble) Rune() rune {
	if n < 10 {
		return rune('0' + n)
	} else if n < 16 {
		return rune('a' + n - 10)
	} else {
		return '?'
	}
}

// String converts a Nibble in a hexa-decimal string (0-9a-f).
func (n Nibble) String() string {
	return string(n.Rune())
}

// KeyNibbles is the number of nibbles of the key path of a leaf within a
// tier. Tier keys are hashes of logical keys.
const KeyNibbles = 2 * common.HashSize

// NibblePath is an immutable sequence of nibbles addressing a position in
// the tree. Paths are comparable and may be used as map keys.
type NibblePath struct {
	// one nibble per byte
	nibbles string
}

// EmptyPath creates an empty path addressing the root of the tree.
func EmptyPath() NibblePath {
	return NibblePath{}
}

// CreatePath creates a path following the given nibbles.
func CreatePath(steps ...Nibble) NibblePath {
	res := make([]byte, len(steps))
	for i, step := range steps {
		res[i] = byte(step)
	}
	return NibblePath{string(res)}
}

// PathOf converts the given bytes into a path of twice as many nibbles, high
// nibble first.
func PathOf(data []byte) NibblePath {
	res := make([]byte, 2*len(data))
	for i := 0; i < len(data); i++ {
		res[2*i] = data[i] >> 4
		res[2*i+1] = data[i] & 0xF
	}
	return NibblePath{string(res)}
}

// KeyPath derives the path of a logical key within a tier.
func KeyPath(key []byte) NibblePath {
	hash := common.HashOf(key)
	return PathOf(hash[:])
}

// Length returns the number of nibbles of this path.
func (p NibblePath) Length() int {
	return len(p.nibbles)
}

// Get returns the nibble at the given position.
func (p NibblePath) Get(pos int) Nibble {
	return Nibble(p.nibbles[pos])
}

// Child produces the path of the child reached from p by the given step.
func (p NibblePath) Child(step Nibble) NibblePath {
	return NibblePath{p.nibbles + string([]byte{byte(step)})}
}

// Concat produces the path p followed by o.
func (p NibblePath) Concat(o NibblePath) NibblePath {
	return NibblePath{p.nibbles + o.nibbles}
}

// Prefix returns the path of the first n nibbles of p.
func (p NibblePath) Prefix(n int) NibblePath {
	return NibblePath{p.nibbles[:n]}
}

// Suffix returns the path of the nibbles of p following the first n.
func (p NibblePath) Suffix(n int) NibblePath {
	return NibblePath{p.nibbles[n:]}
}

// IsPrefixOf tests whether p is a prefix of o.
func (p NibblePath) IsPrefixOf(o NibblePath) bool {
	return strings.HasPrefix(o.nibbles, p.nibbles)
}

// Compare orders paths lexicographically nibble by nibble.
func (p NibblePath) Compare(o NibblePath) int {
	return strings.Compare(p.nibbles, o.nibbles)
}

// Packed returns the nibbles packed into bytes, two per byte with the high
// nibble first. An odd trailing nibble is padded with a zero low nibble.
func (p NibblePath) Packed() []byte {
	res := make([]byte, (len(p.nibbles)+1)/2)
	for i := 0; i < len(p.nibbles); i++ {
		if i%2 == 0 {
			res[i/2] = p.nibbles[i] << 4
		} else {
			res[i/2] |= p.nibbles[i]
		}
	}
	return res
}

// UnpackPath is the inverse of Packed for a path of the given length. The
// packed data must hold at least length nibbles.
func UnpackPath(packed []byte, length int) NibblePath {
	return PathOf(packed).Prefix(length)
}

func (p NibblePath) String() string {
	var builder strings.Builder
	for i := 0; i < p.Length(); i++ {
		builder.WriteRune(p.Get(i).Rune())
	}
	return builder.String()
}
