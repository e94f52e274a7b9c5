/*
Copyright (C) 2023  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package dataset

import (
	"encoding/binary"
	"fmt"
	"os"

	units "github.com/docker/go-units"
)

// The on-disk node is 16 bytes: either {Link int32; Small [12]byte} when the
// block is a link in a chain, or {Large [16]byte} when it is the chain's
// terminal block. Both views alias the same 16 bytes.
const nodeWidth = 16

// StringBlockStore is the intrusive free-list allocator backing a
// StringColumn's variable-length chains. It owns no file handle of its own:
// it operates on the byte slice of the StringColumn that embeds it, via a
// pointer to that slice so a grow_by-triggered remap is visible to both
// without needing to notify the owner explicitly.
//
// Layout of the shared mapping: [8-byte header][length*8 entries][nodes...].
// The header holds FreeStart/FreeCount as little-endian int32 pairs; this
// store only ever touches the header and the node region, never the
// entries, which belong to StringColumn.
type StringBlockStore struct {
	file         *os.File
	data         *[]byte
	entriesBytes int // length * 8, the size of the entries region following the header
}

func newStringBlockStore(f *os.File, data *[]byte, rowCount uint32) *StringBlockStore {
	return &StringBlockStore{file: f, data: data, entriesBytes: int(rowCount) * 8}
}

const headerSize = 8

func (s *StringBlockStore) nodesOffset() int { return headerSize + s.entriesBytes }

func (s *StringBlockStore) nodes() []byte { return (*s.data)[s.nodesOffset():] }

func (s *StringBlockStore) FreeStart() int32 {
	return int32(binary.LittleEndian.Uint32((*s.data)[0:4]))
}

func (s *StringBlockStore) setFreeStart(v int32) {
	binary.LittleEndian.PutUint32((*s.data)[0:4], uint32(v))
}

func (s *StringBlockStore) FreeCount() int32 {
	return int32(binary.LittleEndian.Uint32((*s.data)[4:8]))
}

func (s *StringBlockStore) setFreeCount(v int32) {
	binary.LittleEndian.PutUint32((*s.data)[4:8], uint32(v))
}

func (s *StringBlockStore) nodeCount() int32 { return int32(len(s.nodes()) / nodeWidth) }

func (s *StringBlockStore) linkOf(i int32) int32 {
	off := int(i) * nodeWidth
	return int32(binary.LittleEndian.Uint32(s.nodes()[off : off+4]))
}

func (s *StringBlockStore) setLinkOf(i int32, v int32) {
	off := int(i) * nodeWidth
	binary.LittleEndian.PutUint32(s.nodes()[off:off+4], uint32(v))
}

// smallOf returns the 12-byte payload view used while a block is a
// non-terminal link in a chain.
func (s *StringBlockStore) smallOf(i int32) []byte {
	off := int(i)*nodeWidth + 4
	return s.nodes()[off : off+12]
}

// largeOf returns the full 16-byte payload view used when a block is a
// chain's terminal; it aliases the Link field of smallOf, which is why
// terminal writes must happen only after any Link value still needed has
// been read.
func (s *StringBlockStore) largeOf(i int32) []byte {
	off := int(i) * nodeWidth
	return s.nodes()[off : off+16]
}

// PopFree removes and returns the head of the free list.
func (s *StringBlockStore) PopFree() int32 {
	head := s.FreeStart()
	s.setFreeStart(s.linkOf(head))
	s.setFreeCount(s.FreeCount() - 1)
	return head
}

// PushFreeRange splices the chain [head..tail] (count blocks, already linked
// head -> ... -> tail) onto the front of the free list.
func (s *StringBlockStore) PushFreeRange(head, tail, count int32) {
	s.setLinkOf(tail, s.FreeStart())
	s.setFreeStart(head)
	s.setFreeCount(s.FreeCount() + count)
}

func (s *StringBlockStore) tailFrom(head, count int32) int32 {
	node := head
	for i := int32(1); i < count; i++ {
		node = s.linkOf(node)
	}
	return node
}

// Reserve and AllocateChainEnd are both the idempotent "ensure at least k
// free blocks" primitive named in spec.md §4.1; StringColumn.Extend uses the
// Reserve name when precomputing ahead of a batch of sets, Set uses
// AllocateChainEnd inline. They are the same operation.
func (s *StringBlockStore) Reserve(k int32) error        { return s.ensureFree(k) }
func (s *StringBlockStore) AllocateChainEnd(k int32) error { return s.ensureFree(k) }

func (s *StringBlockStore) ensureFree(k int32) error {
	shortfall := k - s.FreeCount()
	if shortfall <= 0 {
		return nil
	}
	return s.GrowBy(shortfall)
}

// GrowBy extends the backing file by n blocks, remaps it (which may move the
// mapping), and appends the new blocks to the tail of the free list in
// ascending index order.
func (s *StringBlockStore) GrowBy(n int32) error {
	if n <= 0 {
		return nil
	}
	if err := syncSync(*s.data); err != nil {
		return fmt.Errorf("%w: sync before grow: %v", ErrStorageFailure, err)
	}

	oldSize := len(*s.data)
	oldFreeCount := s.FreeCount()
	oldFreeStart := s.FreeStart()
	first := s.nodeCount()
	last := first + n - 1
	newSize := oldSize + int(n)*nodeWidth

	if err := s.file.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("%w: truncate to %s: %v", ErrStorageFailure, units.BytesSize(float64(newSize)), err)
	}
	newData, err := remap(s.file, *s.data, newSize)
	if err != nil {
		return fmt.Errorf("%w: remap from %s to %s: %v", ErrStorageFailure,
			units.BytesSize(float64(oldSize)), units.BytesSize(float64(newSize)), err)
	}
	*s.data = newData

	for i := first; i < last; i++ {
		s.setLinkOf(i, i+1)
	}
	if oldFreeCount == 0 {
		s.setFreeStart(first)
	} else {
		tail := s.tailFrom(oldFreeStart, oldFreeCount)
		s.setLinkOf(tail, first)
	}
	s.setFreeCount(oldFreeCount + n)

	return syncAsync(*s.data)
}

// blocksFor computes B = max(1, 1 + floor((L-5)/12)), the chain length in
// blocks for a value of L bytes (spec.md §3's chain-encoding formula).
func blocksFor(length int32) int32 {
	b := 1 + (length-5)/12
	if b < 1 {
		b = 1
	}
	return b
}
