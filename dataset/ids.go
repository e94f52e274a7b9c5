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
	"fmt"

	"github.com/google/uuid"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const idLength = 6

// newColumnID produces a 6-character filesystem-safe id, analogous to the
// mkstemp-derived temp names of the original implementation, but backed by
// google/uuid random bytes instead of a kernel mkstemp call. taken is
// consulted so callers can retry on collision within a dataset.
func newColumnID(taken func(string) bool) (string, error) {
	for attempt := 0; attempt < 64; attempt++ {
		u := uuid.New()
		id := encodeID(u[:])
		if !taken(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: could not find a free column id", ErrStorageFailure)
}

func encodeID(raw []byte) string {
	buf := make([]byte, idLength)
	for i := 0; i < idLength; i++ {
		buf[i] = idAlphabet[int(raw[i])%len(idAlphabet)]
	}
	return string(buf)
}
