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
	"strings"
	"testing"
)

func newTestStringColumn(t *testing.T, length uint32) *StringColumn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c")
	if err := createStringColumnFile(path, length); err != nil {
		t.Fatalf("createStringColumnFile: %v", err)
	}
	c := newStringColumn(path, length)
	t.Cleanup(func() { c.Close() })
	return c
}

// nodeCount maps the column if needed and returns the number of nodes in
// its block region, as derived from the mapping's size.
func (c *StringColumn) nodeCount(t *testing.T) int32 {
	t.Helper()
	if err := c.ensureMapped(); err != nil {
		t.Fatalf("ensureMapped: %v", err)
	}
	return c.store.nodeCount()
}

func TestStringColumn_Scenario1(t *testing.T) {
	c := newTestStringColumn(t, 3)
	if err := c.Set(0, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(1, []byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(2, []byte("")); err != nil {
		t.Fatal(err)
	}

	if got := c.GetString(0); got != "hi" {
		t.Fatalf("row 0 = %q, want hi", got)
	}
	if got := c.GetString(1); got != "hello world" {
		t.Fatalf("row 1 = %q, want hello world", got)
	}
	if got := c.GetString(2); got != "" {
		t.Fatalf("row 2 = %q, want empty", got)
	}

	info, err := os.Stat(c.path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(8 + 3*8 + 3*16); info.Size() != want {
		t.Fatalf("file size = %d, want %d", info.Size(), want)
	}
}

func TestStringColumn_Scenario2And3(t *testing.T) {
	c := newTestStringColumn(t, 3)
	c.Set(0, []byte("hi"))
	c.Set(1, []byte("hello world"))
	c.Set(2, []byte(""))

	before, _ := os.Stat(c.path)

	long := strings.Repeat("A", 100)
	if err := c.Set(1, []byte(long)); err != nil {
		t.Fatal(err)
	}
	if got := c.GetString(1); got != long {
		t.Fatalf("row 1 mismatch after grow")
	}
	after, _ := os.Stat(c.path)
	if grown := after.Size() - before.Size(); grown != 112 {
		t.Fatalf("file grew by %d bytes, want 112", grown)
	}
	if got, want := blocksFor(100), int32(8); got != want {
		t.Fatalf("blocksFor(100) = %d, want %d", got, want)
	}

	if err := c.Set(1, []byte("B")); err != nil {
		t.Fatal(err)
	}
	if got := c.GetString(1); got != "B" {
		t.Fatalf("row 1 = %q, want B", got)
	}
	if got := c.store.FreeCount(); got != 7 {
		t.Fatalf("FreeCount = %d, want 7", got)
	}
	assertPartition(t, c)
}

func TestStringColumn_RoundTrip(t *testing.T) {
	c := newTestStringColumn(t, 5)
	values := []string{"", "x", strings.Repeat("z", 50), "hello", strings.Repeat("q", 17)}
	for i, v := range values {
		if err := c.Set(uint32(i), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}
	for i, v := range values {
		if got := c.GetString(uint32(i)); got != v {
			t.Fatalf("row %d = %q, want %q", i, got, v)
		}
	}
}

func TestStringColumn_IdempotentSet(t *testing.T) {
	c := newTestStringColumn(t, 2)
	c.Set(0, []byte("unrelated"))
	v := strings.Repeat("m", 40)

	if err := c.Set(1, []byte(v)); err != nil {
		t.Fatal(err)
	}
	countAfterFirst := c.nodeCount(t)
	freeAfterFirst := c.store.FreeCount()

	if err := c.Set(1, []byte(v)); err != nil {
		t.Fatal(err)
	}
	if got := c.GetString(1); got != v {
		t.Fatalf("row 1 = %q, want %q", got, v)
	}
	if c.nodeCount(t) != countAfterFirst {
		t.Fatalf("node count changed across idempotent set: %d != %d", c.nodeCount(t), countAfterFirst)
	}
	if c.store.FreeCount() != freeAfterFirst {
		t.Fatalf("free count changed across idempotent set: %d != %d", c.store.FreeCount(), freeAfterFirst)
	}
	assertPartition(t, c)
}

func TestStringColumn_OutOfRangeIsNoop(t *testing.T) {
	c := newTestStringColumn(t, 1)
	if err := c.Set(5, []byte("ignored")); err != nil {
		t.Fatalf("out of range set returned error: %v", err)
	}
	if got := c.GetLength(5); got != 0 {
		t.Fatalf("GetLength(out of range) = %d, want 0", got)
	}
}

func TestBlocksForFormula(t *testing.T) {
	cases := map[int32]int32{0: 1, 1: 1, 4: 1, 16: 1, 17: 2, 28: 2, 29: 3, 100: 8}
	for l, want := range cases {
		if got := blocksFor(l); got != want {
			t.Fatalf("blocksFor(%d) = %d, want %d", l, got, want)
		}
	}
}

// assertPartition checks invariants 2, 3 and 5 together: every node index is
// reachable from exactly one of the live chains or the free list.
func assertPartition(t *testing.T, c *StringColumn) {
	t.Helper()
	if err := c.ensureMapped(); err != nil {
		t.Fatal(err)
	}
	total := c.store.nodeCount()
	seen := make([]bool, total)

	walk := func(head int32, count int32) {
		node := head
		for i := int32(0); i < count; i++ {
			if node < 0 || node >= total {
				t.Fatalf("chain walks out of bounds at node %d", node)
			}
			if seen[node] {
				t.Fatalf("node %d reachable twice", node)
			}
			seen[node] = true
			if i < count-1 {
				node = c.store.linkOf(node)
			}
		}
	}

	for i := uint32(0); i < c.length; i++ {
		walk(c.entryLink(i), blocksFor(c.entryLength(i)))
	}
	walk(c.store.FreeStart(), c.store.FreeCount())

	for i, s := range seen {
		if !s {
			t.Fatalf("node %d unreachable from any chain or the free list", i)
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		t.Fatal(err)
	}
	want := int64(headerSize) + int64(c.length)*8 + int64(total)*16
	if info.Size() != want {
		t.Fatalf("file size = %d, want %d", info.Size(), want)
	}
}
