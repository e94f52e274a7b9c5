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
package server

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/launix-de/cpdb/dataset"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func encodeID(raw []byte, n int) string {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = idAlphabet[int(raw[i])%len(idAlphabet)]
	}
	return string(buf)
}

// newEntryID allocates a directory name for a newly created dataset, using
// the same generator as dataset/ids.go's column ids.
func newEntryID(taken func(string) bool) (string, error) {
	for attempt := 0; attempt < 64; attempt++ {
		u := uuid.New()
		id := encodeID(u[:], 6)
		if !taken(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: could not find a free dataset id", dataset.ErrStorageFailure)
}

// newToken assigns a fresh websocket client identity, which doubles as its
// WatcherRegistry subscriber token (SPEC_FULL.md §2, "Client identity").
func newToken() string {
	u := uuid.New()
	return encodeID(u[:8], 6) + encodeID(u[8:], 6)
}
