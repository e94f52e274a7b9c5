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
	"os"
	"path/filepath"
	"sync"
)

// Dataset is a fixed-length collection of columns backed by a directory: an
// info.json manifest plus one file per column. Mirrors the teacher's
// database type (storage/database.go) generalized from a SQL schema to a
// flat column set, per spec.md §4.4.
type Dataset struct {
	Path   string
	Name   string
	Length uint32

	// schemalock guards manifest rewrites and the columns map during
	// ColumnCreate, named after the teacher's database.schemalock.
	schemalock sync.Mutex
	columns    map[string]*Column

	Subscribers *WatcherRegistry
}

// CreateDataset lays out a brand-new dataset directory. Fails if dir
// already exists, matching spec.md §4.4.
func CreateDataset(dir, name string, length uint32) (*Dataset, error) {
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: dataset directory already exists", ErrPreconditionFailed)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create dataset directory: %v", ErrStorageFailure, err)
	}
	ds := &Dataset{
		Path:        dir,
		Name:        name,
		Length:      length,
		columns:     make(map[string]*Column),
		Subscribers: newWatcherRegistry(),
	}
	if err := writeManifest(dir, &manifestJSON{Name: name, Length: length, Columns: map[string]ColumnInfo{}}); err != nil {
		return nil, err
	}
	return ds, nil
}

// OpenDataset loads an existing dataset's manifest and builds Column
// handles for its entries without mapping any of their files yet (the
// Declared state of spec.md §4.6; mapping happens lazily on first access).
func OpenDataset(dir string) (*Dataset, error) {
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		Path:        dir,
		Name:        m.Name,
		Length:      m.Length,
		columns:     make(map[string]*Column),
		Subscribers: newWatcherRegistry(),
	}
	for id, info := range m.Columns {
		typ, err := parseColumnType(info.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrManifestCorrupt, id, err)
		}
		ds.columns[id] = ds.newDeclaredColumn(id, info.Name, typ)
	}
	return ds, nil
}

func (d *Dataset) newDeclaredColumn(id, name string, typ ColumnType) *Column {
	c := &Column{ID: id, Name: name, Type: typ, Dataset: d, Subscribers: newWatcherRegistry()}
	path := filepath.Join(d.Path, id)
	switch typ {
	case ColumnString:
		c.str = newStringColumn(path, d.Length)
	case ColumnReal:
		c.real = newRealColumn(path, d.Length)
	}
	return c
}

// ColumnCreate allocates a new column file, registers it in the manifest,
// and returns its handle already mapped (spec.md §4.4).
func (d *Dataset) ColumnCreate(name string, typ ColumnType) (*Column, error) {
	d.schemalock.Lock()
	defer d.schemalock.Unlock()

	id, err := newColumnID(func(candidate string) bool {
		_, taken := d.columns[candidate]
		return taken
	})
	if err != nil {
		return nil, err
	}

	path := filepath.Join(d.Path, id)
	switch typ {
	case ColumnString:
		if err := createStringColumnFile(path, d.Length); err != nil {
			return nil, err
		}
	case ColumnReal:
		if err := createRealColumnFile(path, d.Length); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown column type", ErrInvalidArgument)
	}

	c := d.newDeclaredColumn(id, name, typ)
	if err := c.ensureMappedOnCreate(); err != nil {
		return nil, err
	}
	d.columns[id] = c

	m, err := readManifest(d.Path)
	if err != nil {
		return nil, err
	}
	m.Columns[id] = ColumnInfo{Name: name, Type: typ.String()}
	if err := writeManifest(d.Path, m); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Column) ensureMappedOnCreate() error {
	switch c.Type {
	case ColumnString:
		return c.str.ensureMapped()
	case ColumnReal:
		return c.real.ensureMapped()
	}
	return nil
}

// ColumnOpen returns the handle for an existing column id, mapping it on
// first access if it was only Declared.
func (d *Dataset) ColumnOpen(id string) (*Column, error) {
	c, ok := d.columns[id]
	if !ok {
		return nil, fmt.Errorf("%w: no such column %q", ErrNotFound, id)
	}
	if err := c.ensureMappedOnCreate(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetLength returns the dataset's fixed row count.
func (d *Dataset) GetLength() uint32 { return d.Length }

// GetColumnCount returns the number of columns declared in the manifest.
func (d *Dataset) GetColumnCount() int { return len(d.columns) }

// GetColumnInfo returns the manifest record for a column id.
func (d *Dataset) GetColumnInfo(id string) (ColumnInfo, error) {
	c, ok := d.columns[id]
	if !ok {
		return ColumnInfo{}, fmt.Errorf("%w: no such column %q", ErrNotFound, id)
	}
	return ColumnInfo{Name: c.Name, Type: c.Type.String()}, nil
}

// GetColumnName returns the display name of a column id.
func (d *Dataset) GetColumnName(id string) (string, error) {
	info, err := d.GetColumnInfo(id)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

// GetColumnType returns the type of a column id.
func (d *Dataset) GetColumnType(id string) (ColumnType, error) {
	c, ok := d.columns[id]
	if !ok {
		return 0, fmt.Errorf("%w: no such column %q", ErrNotFound, id)
	}
	return c.Type, nil
}

// GetInfo returns the full manifest shape sent back to clients by
// dataset/info, dataset/create and dataset/open.
func (d *Dataset) GetInfo() manifestJSON {
	cols := make(map[string]ColumnInfo, len(d.columns))
	for id, c := range d.columns {
		cols[id] = ColumnInfo{Name: c.Name, Type: c.Type.String()}
	}
	return manifestJSON{Name: d.Name, Length: d.Length, Columns: cols}
}

// Columns returns every column handle currently declared, for dataset/list
// style enumeration.
func (d *Dataset) Columns() map[string]*Column {
	out := make(map[string]*Column, len(d.columns))
	for id, c := range d.columns {
		out[id] = c
	}
	return out
}

// Close releases every mapped column's resources without forgetting the
// dataset's manifest entries — a Dataset, like a Column, is never destroyed
// by close (spec.md §4.6).
func (d *Dataset) Close() error {
	var firstErr error
	for _, c := range d.columns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Unsubscribe removes token from this dataset's subscriber set and from
// every one of its columns' — spec.md §4.5's cascading removal.
func (d *Dataset) Unsubscribe(token string) {
	d.Subscribers.Remove(token)
	for _, c := range d.columns {
		c.Subscribers.Remove(token)
	}
}
