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

import "sync"

// WatcherRegistry is a subscriber set keyed by an opaque token (the
// websocket client id assigned by the server package). One instance backs a
// Dataset's own subscribers, and one backs each of its Columns'; the type is
// intentionally the same for both scopes, per spec.md §4.5.
type WatcherRegistry struct {
	mu     sync.Mutex
	tokens map[string]struct{}
}

func newWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{tokens: make(map[string]struct{})}
}

func (r *WatcherRegistry) Add(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = struct{}{}
}

func (r *WatcherRegistry) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
}

// Foreach visits every subscribed token except exclude, the token that
// caused the mutation being notified about.
func (r *WatcherRegistry) Foreach(exclude string, visit func(token string)) {
	r.mu.Lock()
	tokens := make([]string, 0, len(r.tokens))
	for t := range r.tokens {
		if t != exclude {
			tokens = append(tokens, t)
		}
	}
	r.mu.Unlock()
	for _, t := range tokens {
		visit(t)
	}
}
