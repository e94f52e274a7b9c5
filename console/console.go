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

// Package console provides a minimal line-oriented admin REPL for local
// operators, built on the same chzyer/readline the teacher uses for its
// scm.Repl, but wired directly into the dataset package rather than any
// request transport — an operator inspecting a store should never have to
// go over the wire to do it (SPEC_FULL.md §2, "Console").
package console

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/launix-de/cpdb/dataset"
)

// Repl runs an interactive console rooted at datasetsRoot until EOF or a
// "quit" command. Commands:
//
//	list                           list dataset directories under root
//	open <id>                      open a dataset, making it "current"
//	info                           show the current dataset's manifest
//	get <column> <index>           print one cell value
//	set <column> <index> <value>   write one cell value
func Repl(datasetsRoot string) error {
	rl, err := readline.New("cpdb> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	var current *dataset.Dataset
	var currentID string

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil

		case "list":
			entries, err := os.ReadDir(datasetsRoot)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Println(e.Name())
				}
			}

		case "open":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: open <id>")
				continue
			}
			ds, err := dataset.OpenDataset(filepath.Join(datasetsRoot, fields[1]))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			current, currentID = ds, fields[1]
			fmt.Printf("opened %s (length=%d, columns=%d)\n", currentID, ds.GetLength(), ds.GetColumnCount())

		case "info":
			if current == nil {
				fmt.Fprintln(os.Stderr, "no dataset open")
				continue
			}
			info := current.GetInfo()
			fmt.Printf("name=%s length=%d\n", info.Name, info.Length)
			for id, col := range info.Columns {
				fmt.Printf("  %s: %s (%s)\n", id, col.Name, col.Type)
			}

		case "get":
			if current == nil || len(fields) != 3 {
				fmt.Fprintln(os.Stderr, "usage: get <column> <index> (with a dataset open)")
				continue
			}
			idx, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			col, err := current.ColumnOpen(fields[1])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			switch col.Type {
			case dataset.ColumnString:
				fmt.Println(col.GetString(uint32(idx)))
			case dataset.ColumnReal:
				fmt.Println(col.GetReal(uint32(idx)))
			}

		case "set":
			if current == nil || len(fields) != 4 {
				fmt.Fprintln(os.Stderr, "usage: set <column> <index> <value> (with a dataset open)")
				continue
			}
			idx, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			col, err := current.ColumnOpen(fields[1])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			var value any
			switch col.Type {
			case dataset.ColumnString:
				value = fields[3]
			case dataset.ColumnReal:
				f, err := strconv.ParseFloat(fields[3], 64)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				value = f
			}
			if _, err := col.SetValues([]uint32{uint32(idx)}, []any{value}); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}

		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (try: list, open, info, get, set, quit)\n", fields[0])
		}
	}
}
