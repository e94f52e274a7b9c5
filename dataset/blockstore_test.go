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
	"os"
	"path/filepath"
	"testing"
)

// newTestBlockStore builds a bare StringBlockStore with no entries region,
// for exercising the allocator in isolation from StringColumn.
func newTestBlockStore(t *testing.T) (*StringBlockStore, *[]byte) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocks")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(headerSize); err != nil {
		t.Fatal(err)
	}
	data, err := mmapFile(f, headerSize)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { munmapFile(data); f.Close() })
	store := newStringBlockStore(f, &data, 0)
	return store, &data
}

func TestStringBlockStore_GrowByLinksAscending(t *testing.T) {
	s, _ := newTestBlockStore(t)
	if err := s.GrowBy(4); err != nil {
		t.Fatal(err)
	}
	if got := s.FreeCount(); got != 4 {
		t.Fatalf("FreeCount = %d, want 4", got)
	}
	if got := s.FreeStart(); got != 0 {
		t.Fatalf("FreeStart = %d, want 0", got)
	}
	node := s.FreeStart()
	for i := int32(0); i < 3; i++ {
		next := s.linkOf(node)
		if next != node+1 {
			t.Fatalf("node %d links to %d, want %d", node, next, node+1)
		}
		node = next
	}
}

func TestStringBlockStore_GrowByAppendsToExistingTail(t *testing.T) {
	s, _ := newTestBlockStore(t)
	if err := s.GrowBy(2); err != nil {
		t.Fatal(err)
	}
	// consume one so the free list's tail is not also its head
	s.PopFree()
	if err := s.GrowBy(3); err != nil {
		t.Fatal(err)
	}
	if got := s.FreeCount(); got != 4 {
		t.Fatalf("FreeCount = %d, want 4", got)
	}
	// walk the whole list and confirm it has exactly FreeCount nodes and
	// visits every index exactly once (invariant 3).
	seen := make(map[int32]bool)
	node := s.FreeStart()
	for i := int32(0); i < s.FreeCount(); i++ {
		if seen[node] {
			t.Fatalf("node %d visited twice while walking free list", node)
		}
		seen[node] = true
		node = s.linkOf(node)
	}
	if int32(len(seen)) != s.FreeCount() {
		t.Fatalf("walked %d distinct nodes, want %d", len(seen), s.FreeCount())
	}
}

func TestStringBlockStore_PopThenPushFreeRange(t *testing.T) {
	s, _ := newTestBlockStore(t)
	if err := s.GrowBy(3); err != nil {
		t.Fatal(err)
	}
	head := s.PopFree()
	if s.FreeCount() != 2 {
		t.Fatalf("FreeCount after pop = %d, want 2", s.FreeCount())
	}
	// put it straight back as a single-node range
	s.PushFreeRange(head, head, 1)
	if s.FreeCount() != 3 {
		t.Fatalf("FreeCount after push = %d, want 3", s.FreeCount())
	}
	if s.FreeStart() != head {
		t.Fatalf("FreeStart = %d, want %d", s.FreeStart(), head)
	}
}

func TestStringBlockStore_ReserveIsIdempotent(t *testing.T) {
	s, _ := newTestBlockStore(t)
	if err := s.Reserve(5); err != nil {
		t.Fatal(err)
	}
	countAfterFirst := s.nodeCount()
	if err := s.Reserve(5); err != nil {
		t.Fatal(err)
	}
	if s.nodeCount() != countAfterFirst {
		t.Fatalf("Reserve grew the file again: %d != %d", s.nodeCount(), countAfterFirst)
	}
	if s.FreeCount() != 5 {
		t.Fatalf("FreeCount = %d, want 5", s.FreeCount())
	}
}
