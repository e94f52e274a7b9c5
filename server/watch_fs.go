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
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchRoot watches the dataset root directory for Create events, alongside
// original_source's one-shot datasets_load() startup scan (SPEC_FULL.md §2,
// "Dataset discovery"). It does not open or record anything for a new
// directory: such a directory becomes usable because dataset/open opens any
// id missing from the registry straight from disk, and it is not listed by
// dataset/list until a client has opened it.
func (s *Server) WatchRoot() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.root); err != nil {
		w.Close()
		return err
	}
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create == 0 {
					continue
				}
				id := filepath.Base(ev.Name)
				if s.registry.Get(id) != nil {
					continue
				}
				// Lazily validated: dataset/open will surface
				// ManifestCorrupt itself if this turns out not to be a
				// real dataset directory.
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
