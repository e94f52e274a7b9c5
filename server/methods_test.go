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
	"errors"
	"testing"

	"github.com/launix-de/cpdb/dataset"
)

func mustArgument(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestMethodDatasetCreate_SubscribesCreator(t *testing.T) {
	s := NewServer(t.TempDir())
	c := newClientState(newToken(), nil)

	arg := mustArgument(t, datasetCreateArgument{Name: "t1", Length: 3})
	if _, err := methodDatasetCreate(s, c, arg); err != nil {
		t.Fatal(err)
	}
	if c.Dataset == nil {
		t.Fatal("dataset/create did not populate c.Dataset")
	}

	notified := false
	c.Dataset.Subscribers.Foreach("", func(token string) {
		if token == c.Token {
			notified = true
		}
	})
	if !notified {
		t.Fatal("dataset/create did not subscribe the creating client")
	}
}

func TestMethodColumnCreateAndOpen_SubscribesEachCaller(t *testing.T) {
	s := NewServer(t.TempDir())
	owner := newClientState(newToken(), nil)

	arg := mustArgument(t, datasetCreateArgument{Name: "t1", Length: 2})
	if _, err := methodDatasetCreate(s, owner, arg); err != nil {
		t.Fatal(err)
	}

	colArg := mustArgument(t, columnCreateArgument{Name: "c", Type: "string"})
	colIDAny, err := methodColumnCreate(s, owner, colArg)
	if err != nil {
		t.Fatal(err)
	}
	colID := colIDAny.(string)

	watcher := newClientState(newToken(), nil)
	watcher.DatasetID, watcher.Dataset = owner.DatasetID, owner.Dataset
	if _, err := methodColumnOpen(s, watcher, mustArgument(t, columnRefArgument{Column: colID})); err != nil {
		t.Fatal(err)
	}

	col, err := owner.Dataset.ColumnOpen(colID)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	col.Subscribers.Foreach("", func(token string) { seen[token] = true })
	if !seen[owner.Token] || !seen[watcher.Token] {
		t.Fatalf("subscribers = %v, want both %s and %s", seen, owner.Token, watcher.Token)
	}
}

func TestMethodDatasetClose_RequiresOpenDataset(t *testing.T) {
	s := NewServer(t.TempDir())
	c := newClientState(newToken(), nil)
	_, err := methodDatasetClose(s, c, nil)
	if !errors.Is(err, dataset.ErrPreconditionFailed) {
		t.Fatalf("err = %v, want ErrPreconditionFailed", err)
	}
}

func TestMethodDatasetClose_UnsubscribesAndClears(t *testing.T) {
	s := NewServer(t.TempDir())
	c := newClientState(newToken(), nil)
	if _, err := methodDatasetCreate(s, c, mustArgument(t, datasetCreateArgument{Name: "t1", Length: 1})); err != nil {
		t.Fatal(err)
	}
	ds := c.Dataset

	if _, err := methodDatasetClose(s, c, nil); err != nil {
		t.Fatal(err)
	}
	if c.Dataset != nil {
		t.Fatal("dataset/close left c.Dataset set")
	}
	stillThere := false
	ds.Subscribers.Foreach("", func(token string) {
		if token == c.Token {
			stillThere = true
		}
	})
	if stillThere {
		t.Fatal("dataset/close did not unsubscribe the caller")
	}
}

func TestMethodColumnValuesSet_FullColumnOmitsIndices(t *testing.T) {
	s := NewServer(t.TempDir())
	c := newClientState(newToken(), nil)
	if _, err := methodDatasetCreate(s, c, mustArgument(t, datasetCreateArgument{Name: "t1", Length: 2})); err != nil {
		t.Fatal(err)
	}
	colIDAny, err := methodColumnCreate(s, c, mustArgument(t, columnCreateArgument{Name: "r", Type: "real"}))
	if err != nil {
		t.Fatal(err)
	}
	colID := colIDAny.(string)

	result, err := methodColumnValuesSet(s, c, mustArgument(t, columnValuesSetArgument{
		Column: colID,
		Values: []any{1.5, 2.5},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatalf("result = %v, want nil for omitted indices", result)
	}

	col, err := c.Dataset.ColumnOpen(colID)
	if err != nil {
		t.Fatal(err)
	}
	if col.GetReal(0) != 1.5 || col.GetReal(1) != 2.5 {
		t.Fatalf("values = %v, %v", col.GetReal(0), col.GetReal(1))
	}
}

func TestMethodColumnValuesSet_ExplicitIndicesReturnsGeneration(t *testing.T) {
	s := NewServer(t.TempDir())
	c := newClientState(newToken(), nil)
	if _, err := methodDatasetCreate(s, c, mustArgument(t, datasetCreateArgument{Name: "t1", Length: 2})); err != nil {
		t.Fatal(err)
	}
	colIDAny, err := methodColumnCreate(s, c, mustArgument(t, columnCreateArgument{Name: "c", Type: "string"}))
	if err != nil {
		t.Fatal(err)
	}
	colID := colIDAny.(string)

	result, err := methodColumnValuesSet(s, c, mustArgument(t, columnValuesSetArgument{
		Column:  colID,
		Indices: []uint32{0},
		Values:  []any{"x"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	gen, ok := result.(uint64)
	if !ok || gen != 1 {
		t.Fatalf("result = %v, want generation 1", result)
	}
}
