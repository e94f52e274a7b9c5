//go:build unix

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

	"golang.org/x/sys/unix"
)

// mmapFile maps the whole of f, which must already be sized to length bytes.
func mmapFile(f *os.File, length int) ([]byte, error) {
	if length == 0 {
		// unix.Mmap rejects a zero-length mapping; callers that hit this
		// (an empty real column, e.g. a zero-row dataset) get an empty
		// slice instead of touching the kernel.
		return []byte{}, nil
	}
	return unix.Mmap(int(f.Fd()), 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func munmapFile(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}

// syncSync flushes b synchronously; used immediately before a grow_by, per
// the original implementation's msync(Map, MapSize, MS_SYNC) call preceding
// ftruncate/mremap.
func syncSync(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Msync(b, unix.MS_SYNC)
}

// syncAsync schedules a flush without waiting for it, matching every
// msync(Map, MapSize, MS_ASYNC) call that follows a cell mutation.
func syncAsync(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Msync(b, unix.MS_ASYNC)
}
