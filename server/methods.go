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
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/launix-de/cpdb/dataset"
)

// methodFunc is the uniform dispatch signature named in spec.md §9's
// redesign note: a lookup table from method name to a function value with
// a (ClientState, JsonArgument) -> JsonResult signature.
type methodFunc func(s *Server, c *ClientState, argument json.RawMessage) (any, error)

var methods = map[string]methodFunc{
	"dataset/list":         methodDatasetList,
	"dataset/create":       methodDatasetCreate,
	"dataset/open":         methodDatasetOpen,
	"dataset/close":        methodDatasetClose,
	"dataset/info":         methodDatasetInfo,
	"column/create":        methodColumnCreate,
	"column/open":          methodColumnOpen,
	"column/close":         methodColumnClose,
	"column/values/set":    methodColumnValuesSet,
	"column/values/get":    methodColumnValuesGet,
}

func infoResult(id string, ds *dataset.Dataset) map[string]any {
	return map[string]any{"id": id, "info": ds.GetInfo()}
}

func methodDatasetList(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	all := s.registry.All()
	out := make([]any, 0, len(all))
	for _, ds := range all {
		out = append(out, infoResult(filepath.Base(ds.Path), ds))
	}
	return out, nil
}

type datasetCreateArgument struct {
	Name   string `json:"name"`
	Length uint32 `json:"length"`
}

func methodDatasetCreate(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	var arg datasetCreateArgument
	if err := json.Unmarshal(argument, &arg); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrInvalidArgument, err)
	}
	id, err := newEntryID(func(candidate string) bool { return s.registry.Get(candidate) != nil })
	if err != nil {
		return nil, err
	}
	ds, err := dataset.CreateDataset(filepath.Join(s.root, id), arg.Name, arg.Length)
	if err != nil {
		return nil, err
	}
	s.registry.Put(id, ds)
	c.DatasetID, c.Dataset = id, ds
	ds.Subscribers.Add(c.Token)
	return ds.GetInfo(), nil
}

type datasetOpenArgument struct {
	ID string `json:"id"`
}

func methodDatasetOpen(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	var arg datasetOpenArgument
	if err := json.Unmarshal(argument, &arg); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrInvalidArgument, err)
	}
	ds := s.registry.Get(arg.ID)
	if ds == nil {
		opened, err := dataset.OpenDataset(filepath.Join(s.root, arg.ID))
		if err != nil {
			return nil, err
		}
		ds = opened
		s.registry.Put(arg.ID, ds)
	}
	c.DatasetID, c.Dataset = arg.ID, ds
	ds.Subscribers.Add(c.Token)
	return ds.GetInfo(), nil
}

func methodDatasetClose(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	if c.Dataset == nil {
		return nil, dataset.ErrPreconditionFailed
	}
	c.Dataset.Unsubscribe(c.Token)
	c.closeDataset()
	return nil, nil
}

func methodDatasetInfo(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	if c.Dataset == nil {
		return nil, dataset.ErrPreconditionFailed
	}
	return c.Dataset.GetInfo(), nil
}

type columnCreateArgument struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func methodColumnCreate(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	if c.Dataset == nil {
		return nil, dataset.ErrPreconditionFailed
	}
	var arg columnCreateArgument
	if err := json.Unmarshal(argument, &arg); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrInvalidArgument, err)
	}
	var typ dataset.ColumnType
	switch arg.Type {
	case "string":
		typ = dataset.ColumnString
	case "real":
		typ = dataset.ColumnReal
	default:
		return nil, fmt.Errorf("%w: unknown column type %q", dataset.ErrInvalidArgument, arg.Type)
	}
	col, err := c.Dataset.ColumnCreate(arg.Name, typ)
	if err != nil {
		return nil, err
	}
	col.Subscribers.Add(c.Token)
	info := dataset.ColumnInfo{Name: col.Name, Type: col.Type.String()}
	ds := c.Dataset
	go s.notifyDatasetSubscribers(ds, c.Token, "column/created", []any{col.ID, info})
	return col.ID, nil
}

type columnRefArgument struct {
	Column string `json:"column"`
}

func methodColumnOpen(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	if c.Dataset == nil {
		return nil, dataset.ErrPreconditionFailed
	}
	var arg columnRefArgument
	if err := json.Unmarshal(argument, &arg); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrInvalidArgument, err)
	}
	col, err := c.Dataset.ColumnOpen(arg.Column)
	if err != nil {
		return nil, err
	}
	col.Subscribers.Add(c.Token)
	return map[string]string{"id": col.ID}, nil
}

func methodColumnClose(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	if c.Dataset == nil {
		return nil, dataset.ErrPreconditionFailed
	}
	// A Column has no refcounted lifecycle (spec.md §4.6); accepted and
	// intentionally a no-op, per SPEC_FULL.md §2.
	return nil, nil
}

type columnValuesSetArgument struct {
	Column  string   `json:"column"`
	Indices []uint32 `json:"indices"`
	Values  []any    `json:"values"`
}

func methodColumnValuesSet(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	if c.Dataset == nil {
		return nil, dataset.ErrPreconditionFailed
	}
	var arg columnValuesSetArgument
	if err := json.Unmarshal(argument, &arg); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrInvalidArgument, err)
	}
	col, err := c.Dataset.ColumnOpen(arg.Column)
	if err != nil {
		return nil, err
	}
	indices := arg.Indices
	if indices == nil {
		if uint32(len(arg.Values)) != c.Dataset.GetLength() {
			return nil, fmt.Errorf("%w: values length must equal dataset length", dataset.ErrInvalidArgument)
		}
		indices = make([]uint32, c.Dataset.GetLength())
		for i := range indices {
			indices[i] = uint32(i)
		}
	} else if len(indices) != len(arg.Values) {
		return nil, fmt.Errorf("%w: indices/values length mismatch", dataset.ErrInvalidArgument)
	}

	gen, err := col.SetValues(indices, arg.Values)
	if err != nil {
		return nil, err
	}
	if arg.Indices == nil {
		// column/values/set only notifies for explicit indices (spec.md
		// §4.5); a full-column set returns null and stays silent.
		return nil, nil
	}
	s.notifyColumnSubscribers(col, c.Token, gen, indices, arg.Values)
	return gen, nil
}

type columnValuesGetArgument struct {
	Column  string   `json:"column"`
	Indices []uint32 `json:"indices"`
}

func methodColumnValuesGet(s *Server, c *ClientState, argument json.RawMessage) (any, error) {
	if c.Dataset == nil {
		return nil, dataset.ErrPreconditionFailed
	}
	var arg columnValuesGetArgument
	if err := json.Unmarshal(argument, &arg); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrInvalidArgument, err)
	}
	col, err := c.Dataset.ColumnOpen(arg.Column)
	if err != nil {
		return nil, err
	}
	indices := arg.Indices
	if indices == nil {
		indices = make([]uint32, c.Dataset.GetLength())
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	values := make([]any, len(indices))
	for k, idx := range indices {
		switch col.Type {
		case dataset.ColumnString:
			values[k] = col.GetString(idx)
		case dataset.ColumnReal:
			values[k] = col.GetReal(idx)
		}
	}
	return values, nil
}
