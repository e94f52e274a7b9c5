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
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader mirrors the teacher's scm/network.go HTTP-upgrade-to-websocket
// handler: any origin is accepted since this is a local/trusted-network
// tool, not a browser-facing API (no authentication is in scope, spec.md §1).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wireRequest struct {
	ID       int             `json:"id"`
	Method   string          `json:"method"`
	Argument json.RawMessage `json:"argument"`
}

// ServeHTTP upgrades every incoming connection to a websocket and reads
// JSON-RPC frames off it for the lifetime of the connection, replacing the
// original zeromq ROUTER framing (original_source's server.c) with one
// message-delimited socket per client — no length-prefixing layer is
// needed, a websocket frame already is one.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClientState(newToken(), conn)
	s.registerClient(c)
	defer func() {
		s.unregisterClient(c)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wireRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			// malformed requests are logged and silently dropped, per
			// spec.md §7 ("a known behavior to preserve")
			s.logf("dropping malformed request from %s: %v", c.Token, err)
			continue
		}
		s.requests <- request{c: c, id: req.ID, method: req.Method, argument: req.Argument}
	}
}
