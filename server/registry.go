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
	nlrm "github.com/launix-de/NonLockingReadMap"

	"github.com/launix-de/cpdb/dataset"
)

// datasetEntry is the value type stored in the registry: a dataset id
// paired with its open *dataset.Dataset. Datasets are opened far less often
// than they're looked up (every request resolves one), so the registry
// uses the teacher's own NonLockingReadMap rather than a mutex-guarded map,
// the same tradeoff the teacher makes for its hot lookup structures.
type datasetEntry struct {
	ID string
	DS *dataset.Dataset
}

func (e datasetEntry) GetKey() string    { return e.ID }
func (e datasetEntry) ComputeSize() uint { return uint(64 + len(e.ID)) }

// Registry maps dataset id to its open handle.
type Registry struct {
	root string
	m    *nlrm.NonLockingReadMap[datasetEntry, string]
}

func NewRegistry(root string) *Registry {
	m := nlrm.New[datasetEntry, string]()
	return &Registry{root: root, m: &m}
}

// Get returns the dataset registered under id, or nil if none is open.
func (r *Registry) Get(id string) *dataset.Dataset {
	e := r.m.Get(id)
	if e == nil {
		return nil
	}
	return e.DS
}

// Put registers an opened dataset under id, replacing any previous entry.
func (r *Registry) Put(id string, ds *dataset.Dataset) {
	r.m.Set(&datasetEntry{ID: id, DS: ds})
}

// All returns every currently open dataset, for dataset/list and for the
// shutdown flush.
func (r *Registry) All() []*dataset.Dataset {
	entries := r.m.GetAll()
	out := make([]*dataset.Dataset, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.DS)
	}
	return out
}
