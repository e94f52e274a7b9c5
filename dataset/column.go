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

import "fmt"

// ColumnType names the two column kinds spec.md defines.
type ColumnType uint8

const (
	ColumnString ColumnType = iota
	ColumnReal
)

func (t ColumnType) String() string {
	switch t {
	case ColumnString:
		return "string"
	case ColumnReal:
		return "real"
	default:
		return "unknown"
	}
}

func parseColumnType(s string) (ColumnType, error) {
	switch s {
	case "string":
		return ColumnString, nil
	case "real":
		return ColumnReal, nil
	default:
		return 0, fmt.Errorf("%w: unknown column type %q", ErrInvalidArgument, s)
	}
}

// Column wraps either a StringColumn or a RealColumn along with the
// metadata and subscriber bookkeeping the request layer needs: identity,
// the weak (non-owning) back-reference to its Dataset, and the per-column
// WatcherRegistry and generation counter of spec.md §4.5/§4.6.
type Column struct {
	ID      string
	Name    string
	Type    ColumnType
	Dataset *Dataset

	str  *StringColumn
	real *RealColumn

	generation  uint64
	Subscribers *WatcherRegistry
}

// Length reports the column's fixed row count, which always equals its
// owning dataset's length.
func (c *Column) Length() uint32 { return c.Dataset.Length }

// Generation reports the number of SetValues batches applied so far.
func (c *Column) Generation() uint64 { return c.generation }

// GetString returns row i of a string column; zero value for any other type.
func (c *Column) GetString(i uint32) string {
	if c.Type != ColumnString {
		return ""
	}
	return c.str.GetString(i)
}

// GetReal returns row i of a real column; zero value for any other type.
func (c *Column) GetReal(i uint32) float64 {
	if c.Type != ColumnReal {
		return 0
	}
	return c.real.Get(i)
}

// SetValues applies a batch of cell writes (one generation bump for the
// whole batch, not per cell), matching the column/values/set wire operation
// of spec.md §6. values[k] must be a string for a string column or a
// float64 for a real column; callers out of range are silently skipped, per
// the underlying column Set semantics.
func (c *Column) SetValues(indices []uint32, values []any) (uint64, error) {
	if len(indices) != len(values) {
		return 0, fmt.Errorf("%w: indices/values length mismatch", ErrInvalidArgument)
	}
	for k, idx := range indices {
		switch c.Type {
		case ColumnString:
			s, ok := values[k].(string)
			if !ok {
				return 0, fmt.Errorf("%w: value %d is not a string", ErrInvalidArgument, k)
			}
			if err := c.str.Set(idx, []byte(s)); err != nil {
				return 0, err
			}
		case ColumnReal:
			f, ok := values[k].(float64)
			if !ok {
				return 0, fmt.Errorf("%w: value %d is not a number", ErrInvalidArgument, k)
			}
			if err := c.real.Set(idx, f); err != nil {
				return 0, err
			}
		}
	}
	c.generation++
	return c.generation, nil
}

// Close releases the column's mapping without altering its manifest entry —
// a Column is never destroyed once created (spec.md §4.6), so Close only
// affects in-process resource usage.
func (c *Column) Close() error {
	switch c.Type {
	case ColumnString:
		return c.str.Close()
	case ColumnReal:
		return c.real.Close()
	}
	return nil
}
