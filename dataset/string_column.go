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
)

// StringColumn is a mapped, variable-length string column of a fixed row
// count. Rows are encoded as intrusive chains of 16-byte blocks managed by
// an embedded StringBlockStore; see spec.md §3 for the on-disk layout.
type StringColumn struct {
	path   string
	file   *os.File
	data   []byte
	length uint32
	mapped bool
	store  *StringBlockStore
}

func newStringColumn(path string, length uint32) *StringColumn {
	return &StringColumn{path: path, length: length}
}

// createStringColumnFile lays out a brand-new column file: an 8-byte header
// (FreeStart=0, FreeCount=0), length entries each {Link: own index, Length:
// 0}, and length zeroed nodes — every row starts as a single-block chain of
// its own index holding the empty string (a zeroed node already decodes as a
// length-0 terminal block), matching dataset_column_create in the original
// implementation, which sizes the file header+entries+nodes up front.
func createStringColumnFile(path string, length uint32) error {
	size := headerSize + int(length)*8 + int(length)*nodeWidth
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return fmt.Errorf("%w: create column file: %v", ErrStorageFailure, err)
	}
	defer f.Close()
	if err := f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("%w: size column file: %v", ErrStorageFailure, err)
	}
	buf := make([]byte, headerSize+int(length)*8)
	for i := uint32(0); i < length; i++ {
		off := headerSize + int(i)*8
		binary.LittleEndian.PutUint32(buf[off:off+4], i)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], 0)
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: initialize column file: %v", ErrStorageFailure, err)
	}
	return nil
}

func (c *StringColumn) ensureMapped() error {
	if c.mapped {
		return nil
	}
	f, err := os.OpenFile(c.path, os.O_RDWR, 0640)
	if err != nil {
		return fmt.Errorf("%w: open column file: %v", ErrStorageFailure, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: stat column file: %v", ErrStorageFailure, err)
	}
	data, err := mmapFile(f, int(info.Size()))
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: mmap column file: %v", ErrStorageFailure, err)
	}
	c.file = f
	c.data = data
	c.store = newStringBlockStore(c.file, &c.data, c.length)
	c.mapped = true
	return nil
}

func (c *StringColumn) Close() error {
	if !c.mapped {
		return nil
	}
	err := munmapFile(c.data)
	c.file.Close()
	c.mapped = false
	c.data = nil
	return err
}

func (c *StringColumn) entryOffset(i uint32) int { return headerSize + int(i)*8 }

func (c *StringColumn) entryLink(i uint32) int32 {
	off := c.entryOffset(i)
	return int32(binary.LittleEndian.Uint32(c.data[off : off+4]))
}

func (c *StringColumn) setEntryLink(i uint32, v int32) {
	off := c.entryOffset(i)
	binary.LittleEndian.PutUint32(c.data[off:off+4], uint32(v))
}

func (c *StringColumn) entryLength(i uint32) int32 {
	off := c.entryOffset(i)
	return int32(binary.LittleEndian.Uint32(c.data[off+4 : off+8]))
}

func (c *StringColumn) setEntryLength(i uint32, v int32) {
	off := c.entryOffset(i)
	binary.LittleEndian.PutUint32(c.data[off+4:off+8], uint32(v))
}

// GetLength returns the row's string length, or 0 if i is out of range —
// the original implementation's column_string_get_length makes no
// distinction between "empty string" and "out of range" either.
func (c *StringColumn) GetLength(i uint32) int32 {
	if i >= c.length {
		return 0
	}
	if err := c.ensureMapped(); err != nil {
		return 0
	}
	return c.entryLength(i)
}

// GetString allocates and returns row i's value.
func (c *StringColumn) GetString(i uint32) string {
	n := c.GetLength(i)
	if n == 0 {
		return ""
	}
	buf := make([]byte, n)
	c.GetValue(i, buf)
	return string(buf)
}

// GetValue writes exactly GetLength(i) bytes into out, which must be at
// least that long. It is a no-op for an out-of-range i.
func (c *StringColumn) GetValue(i uint32, out []byte) {
	if i >= c.length {
		return
	}
	if err := c.ensureMapped(); err != nil {
		return
	}
	length := c.entryLength(i)
	node := c.entryLink(i)
	remaining := length
	pos := 0
	for remaining > 16 {
		copy(out[pos:pos+12], c.store.smallOf(node))
		pos += 12
		remaining -= 12
		node = c.store.linkOf(node)
	}
	copy(out[pos:pos+int(remaining)], c.store.largeOf(node)[:remaining])
}

// ExtendHint reports how many additional blocks row i would need to hold a
// value of length L — B_new minus the row's current block count. It may be
// negative (a shrink) per spec.md §4.2. It is pure: it consults only the
// entry header, never the free list, so callers can size a
// StringBlockStore.Reserve call before committing to the write.
func (c *StringColumn) ExtendHint(i uint32, L int32) int32 {
	if i >= c.length {
		return 0
	}
	return blocksFor(L) - blocksFor(c.entryLength(i))
}

// Extend forwards to the underlying block store's Reserve, making sure the
// free list holds at least the given number of blocks ahead of a Set call
// that is known to need them (spec.md §4.2); the file grows only by the
// shortfall, so repeating the call with the same count grows nothing.
func (c *StringColumn) Extend(additionalBlocks int32) error {
	if err := c.ensureMapped(); err != nil {
		return err
	}
	return c.store.Reserve(additionalBlocks)
}

// Set rewrites row i's value, growing or shrinking its block chain as
// needed, and is a silent no-op for an out-of-range i (spec.md §4.2).
func (c *StringColumn) Set(i uint32, value []byte) error {
	if i >= c.length {
		return nil
	}
	if err := c.ensureMapped(); err != nil {
		return err
	}

	L := int32(len(value))
	link := c.entryLink(i)
	numOld := blocksFor(c.entryLength(i))
	numNew := blocksFor(L)
	c.setEntryLength(i, L)

	var err error
	switch {
	case numOld > numNew:
		c.shrink(link, numOld, numNew, value)
	case numOld < numNew:
		err = c.grow(link, numOld, numNew, value)
	default:
		c.overwriteSame(link, numNew, value)
	}
	if err != nil {
		return err
	}
	return syncAsync(c.data)
}

// shrink walks the first numNew-1 blocks writing 12 payload bytes each,
// reads the new terminal's old Link (the surplus chain's head) and finds the
// surplus tail before the terminal's payload write clobbers that Link, then
// writes the remaining payload and pushes the surplus chain onto the free
// list.
func (c *StringColumn) shrink(link, numOld, numNew int32, value []byte) {
	node := link
	for b := int32(1); b < numNew; b++ {
		n := copy(c.store.smallOf(node), value)
		value = value[n:]
		node = c.store.linkOf(node)
	}
	freedHead := c.store.linkOf(node)
	freedCount := numOld - numNew
	freedTail := c.store.tailFrom(freedHead, freedCount)
	copy(c.store.largeOf(node), value)
	c.store.PushFreeRange(freedHead, freedTail, freedCount)
}

func (c *StringColumn) overwriteSame(link, numNew int32, value []byte) {
	node := link
	for b := int32(1); b < numNew; b++ {
		n := copy(c.store.smallOf(node), value)
		value = value[n:]
		node = c.store.linkOf(node)
	}
	copy(c.store.largeOf(node), value)
}

// grow walks the numOld existing blocks (each now an interior link, even the
// former terminal), splices the last of them onto the free list, then walks
// `need` newly allocated blocks to extend the chain to its new terminal.
func (c *StringColumn) grow(link, numOld, numNew int32, value []byte) error {
	need := numNew - numOld
	if err := c.store.AllocateChainEnd(need); err != nil {
		return err
	}
	node := link
	for b := int32(0); b < numOld; b++ {
		n := copy(c.store.smallOf(node), value)
		value = value[n:]
		if b == numOld-1 {
			next := c.store.FreeStart()
			c.store.setLinkOf(node, next)
			node = next
		} else {
			node = c.store.linkOf(node)
		}
	}
	for b := int32(0); b < need; b++ {
		if b < need-1 {
			n := copy(c.store.smallOf(node), value)
			value = value[n:]
			node = c.store.linkOf(node)
		} else {
			newFreeStart := c.store.linkOf(node)
			c.store.setFreeStart(newFreeStart)
			c.store.setFreeCount(c.store.FreeCount() - need)
			copy(c.store.largeOf(node), value)
		}
	}
	return nil
}
