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
	"math"
	"os"
)

// RealColumn is a mapped, fixed-width column of length IEEE-754 little
// endian doubles — the Go analogue of the teacher's StorageFloat, except
// mutable and mmap-backed rather than a plain append-only []float64 slice
// (see storage/storage-float.go for the serialization shape this mirrors).
type RealColumn struct {
	path   string
	file   *os.File
	data   []byte
	length uint32
	mapped bool
}

func newRealColumn(path string, length uint32) *RealColumn {
	return &RealColumn{path: path, length: length}
}

// createRealColumnFile lays out a brand-new real column: length*8
// zero-filled bytes, which already decode as 0.0 for every row.
func createRealColumnFile(path string, length uint32) error {
	size := int64(length) * 8
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return fmt.Errorf("%w: create column file: %v", ErrStorageFailure, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("%w: size column file: %v", ErrStorageFailure, err)
	}
	return nil
}

func (c *RealColumn) ensureMapped() error {
	if c.mapped {
		return nil
	}
	f, err := os.OpenFile(c.path, os.O_RDWR, 0640)
	if err != nil {
		return fmt.Errorf("%w: open column file: %v", ErrStorageFailure, err)
	}
	data, err := mmapFile(f, int(c.length)*8)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: mmap column file: %v", ErrStorageFailure, err)
	}
	c.file = f
	c.data = data
	c.mapped = true
	return nil
}

func (c *RealColumn) Close() error {
	if !c.mapped {
		return nil
	}
	err := munmapFile(c.data)
	c.file.Close()
	c.mapped = false
	c.data = nil
	return err
}

// Get returns row i's value, or 0 for an out-of-range i.
func (c *RealColumn) Get(i uint32) float64 {
	if i >= c.length {
		return 0
	}
	if err := c.ensureMapped(); err != nil {
		return 0
	}
	off := int(i) * 8
	return math.Float64frombits(binary.LittleEndian.Uint64(c.data[off : off+8]))
}

// Set writes row i's value in place; a no-op for an out-of-range i.
func (c *RealColumn) Set(i uint32, v float64) error {
	if i >= c.length {
		return nil
	}
	if err := c.ensureMapped(); err != nil {
		return err
	}
	off := int(i) * 8
	binary.LittleEndian.PutUint64(c.data[off:off+8], math.Float64bits(v))
	return syncAsync(c.data)
}
