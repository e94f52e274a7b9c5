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
	"sync"

	"github.com/gorilla/websocket"

	"github.com/launix-de/cpdb/dataset"
)

// ClientState is the per-connection session: which dataset (if any) is
// currently open, and the opaque token this connection uses both as its
// websocket identity and its WatcherRegistry subscriber token. Modeled
// after the teacher's scm/session.go session, generalized from arbitrary
// session variables to the one piece of state this protocol needs.
type ClientState struct {
	Token string

	conn    *websocket.Conn
	writeMu sync.Mutex

	DatasetID string
	Dataset   *dataset.Dataset
}

func newClientState(token string, conn *websocket.Conn) *ClientState {
	return &ClientState{Token: token, conn: conn}
}

type wireResponse struct {
	ID     int    `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type wireNotification struct {
	Method   string `json:"method"`
	Argument any    `json:"argument"`
}

// sendResponse writes a {id, result} or {id, error} frame. Concurrent
// sends from the dispatch goroutine and the notification fan-out goroutines
// are serialized by writeMu, matching the mutex-guarded ws.WriteMessage
// closure in the teacher's scm/network.go.
func (c *ClientState) sendResponse(id int, result any, err error) error {
	resp := wireResponse{ID: id}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Result = result
	}
	return c.send(resp)
}

func (c *ClientState) sendNotification(method string, argument any) error {
	return c.send(wireNotification{Method: method, Argument: argument})
}

func (c *ClientState) send(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// closeDataset implements dataset/close: clear the currently open dataset
// without touching the registry entry (the dataset itself is never
// destroyed, per spec.md §4.6).
func (c *ClientState) closeDataset() {
	c.DatasetID = ""
	c.Dataset = nil
}
