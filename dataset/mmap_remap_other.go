//go:build unix && !linux

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

import "os"

// remap on non-Linux unices has no mremap syscall exposed by x/sys/unix, so
// it unmaps and remaps the (already truncated) file instead.
func remap(f *os.File, old []byte, newSize int) ([]byte, error) {
	if err := munmapFile(old); err != nil {
		return nil, err
	}
	return mmapFile(f, newSize)
}
