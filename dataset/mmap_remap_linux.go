//go:build linux

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

// remap grows an existing mapping in place where the kernel can manage it,
// falling back to relocating it (MREMAP_MAYMOVE) when it cannot.
func remap(f *os.File, old []byte, newSize int) ([]byte, error) {
	if len(old) == 0 {
		return mmapFile(f, newSize)
	}
	return unix.Mremap(old, newSize, unix.MREMAP_MAYMOVE)
}
