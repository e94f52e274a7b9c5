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
	"os"
	"sync"

	"github.com/jtolds/gls"

	"github.com/launix-de/cpdb/dataset"
)

var mgr = gls.NewContextManager()

// request is one inbound frame queued for the single control thread,
// modeling spec.md §5's "exactly one control thread" scheduling contract:
// every connection's reader goroutine only ever enqueues, the dispatch
// goroutine started by Run is the sole caller of core operations.
type request struct {
	c        *ClientState
	id       int
	method   string
	argument json.RawMessage
}

// Server is the explicit, passed-by-reference state object named in
// spec.md §9 ("re-architect as an explicit server-state object"),
// replacing the teacher's process-wide globals.
type Server struct {
	root     string
	registry *Registry

	requests chan request

	clientsMu sync.Mutex
	clients   map[string]*ClientState

	// columnQueuesMu guards columnQueues, one FIFO job channel per column
	// id, each drained by exactly one goroutine. Column notifications are
	// enqueued here instead of spawned with a bare `go`, so that two sets
	// on the same column fan out to subscribers in the same order their
	// generations were assigned (spec.md §5's per-column ordering
	// guarantee) even though fan-out itself runs off the dispatch thread.
	columnQueuesMu sync.Mutex
	columnQueues   map[string]chan func()
}

func NewServer(root string) *Server {
	return &Server{
		root:         root,
		registry:     NewRegistry(root),
		requests:     make(chan request, 64),
		clients:      make(map[string]*ClientState),
		columnQueues: make(map[string]chan func()),
	}
}

// columnQueue returns the FIFO job channel for column id, starting its
// drain goroutine the first time the id is seen.
func (s *Server) columnQueue(id string) chan func() {
	s.columnQueuesMu.Lock()
	defer s.columnQueuesMu.Unlock()
	q, ok := s.columnQueues[id]
	if !ok {
		q = make(chan func(), 64)
		s.columnQueues[id] = q
		go func() {
			for job := range q {
				job()
			}
		}()
	}
	return q
}

// Run drains the request queue forever; call it from exactly one goroutine.
func (s *Server) Run() {
	for req := range s.requests {
		fn, ok := methods[req.method]
		if !ok {
			fmt.Fprintf(os.Stderr, "cpdb: unknown method %q from %s\n", req.method, req.c.Token)
			if err := req.c.sendResponse(req.id, nil, dataset.ErrNotFound); err != nil {
				fmt.Fprintf(os.Stderr, "cpdb: send response: %v\n", err)
			}
			continue
		}
		result, err := fn(s, req.c, req.argument)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cpdb: %s from %s: %v\n", req.method, req.c.Token, err)
		}
		if sendErr := req.c.sendResponse(req.id, result, err); sendErr != nil {
			fmt.Fprintf(os.Stderr, "cpdb: send response: %v\n", sendErr)
		}
	}
}

func (s *Server) registerClient(c *ClientState) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[c.Token] = c
}

func (s *Server) unregisterClient(c *ClientState) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, c.Token)
	if c.Dataset != nil {
		c.Dataset.Unsubscribe(c.Token)
	}
}

func (s *Server) clientByToken(token string) *ClientState {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return s.clients[token]
}

// notifyDatasetSubscribers fans a dataset-level notification out to every
// subscriber except the one that caused it. It stores the originating
// client's token as goroutine-local log context, then runs the fan-out on
// its own goroutine via gls.Go so that context is still visible to log lines
// emitted during fan-out, matching the teacher's storage/compute.go
// worker-spawn pattern.
func (s *Server) notifyDatasetSubscribers(ds *dataset.Dataset, cause, method string, argument []any) {
	mgr.SetValues(gls.Values{"client": cause}, func() {
		gls.Go(func() {
			ds.Subscribers.Foreach(cause, func(token string) {
				if c := s.clientByToken(token); c != nil {
					if err := c.sendNotification(method, argument); err != nil {
						s.logf("notify %s: %v", token, err)
					}
				}
			})
		})
	})
}

// notifyColumnSubscribers enqueues a fan-out job onto col's serial queue
// rather than spawning it directly, so that a burst of sets on the same
// column is delivered to subscribers in the same order the generations were
// assigned (spec.md §5), even though the actual socket writes happen off
// the dispatch thread.
func (s *Server) notifyColumnSubscribers(col *dataset.Column, cause string, generation uint64, indices []uint32, values []any) {
	q := s.columnQueue(col.ID)
	q <- func() {
		mgr.SetValues(gls.Values{"client": cause}, func() {
			col.Subscribers.Foreach(cause, func(token string) {
				if c := s.clientByToken(token); c != nil {
					arg := []any{col.ID, generation, indices, values}
					if err := c.sendNotification("column/values/set", arg); err != nil {
						s.logf("notify %s: %v", token, err)
					}
				}
			})
		})
	}
}

// logf prefixes a log line with the originating client token when the
// calling goroutine carries one in its goroutine-local state (set by
// notifyDatasetSubscribers/notifyColumnSubscribers via mgr.SetValues).
func (s *Server) logf(format string, args ...any) {
	prefix := "cpdb"
	if v, ok := mgr.GetValue("client"); ok {
		prefix = fmt.Sprintf("cpdb[%v]", v)
	}
	fmt.Fprintf(os.Stderr, prefix+": "+format+"\n", args...)
}

// LoadExisting scans root for dataset directories and registers them, per
// original_source's datasets_load() startup scan (SPEC_FULL.md §2).
func (s *Server) LoadExisting() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("%w: scan dataset root: %v", dataset.ErrStorageFailure, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ds, err := dataset.OpenDataset(s.root + "/" + e.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "cpdb: skipping %s: %v\n", e.Name(), err)
			continue
		}
		s.registry.Put(e.Name(), ds)
	}
	return nil
}

// FlushAll closes every open dataset's mapped columns, used by the
// onexit-registered shutdown hook (SPEC_FULL.md §2, "Graceful shutdown").
func (s *Server) FlushAll() {
	for _, ds := range s.registry.All() {
		if err := ds.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cpdb: flush dataset: %v\n", err)
		}
	}
}
