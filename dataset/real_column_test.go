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

func TestRealColumn_Scenario4(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r")
	if err := createRealColumnFile(path, 3); err != nil {
		t.Fatal(err)
	}
	r := newRealColumn(path, 3)
	defer r.Close()

	if err := r.Set(0, 3.5); err != nil {
		t.Fatal(err)
	}
	if err := r.Set(2, -0.25); err != nil {
		t.Fatal(err)
	}

	if got := r.Get(0); got != 3.5 {
		t.Fatalf("get(0) = %v, want 3.5", got)
	}
	if got := r.Get(1); got != 0.0 {
		t.Fatalf("get(1) = %v, want 0.0", got)
	}
	if got := r.Get(2); got != -0.25 {
		t.Fatalf("get(2) = %v, want -0.25", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 24 {
		t.Fatalf("file size = %d, want 24", info.Size())
	}
}

func TestRealColumn_OutOfRangeIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r")
	createRealColumnFile(path, 1)
	r := newRealColumn(path, 1)
	defer r.Close()
	if err := r.Set(9, 1.0); err != nil {
		t.Fatalf("out of range set returned error: %v", err)
	}
	if got := r.Get(9); got != 0 {
		t.Fatalf("get(out of range) = %v, want 0", got)
	}
}
