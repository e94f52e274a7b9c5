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
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/dc0d/onexit"

	"github.com/launix-de/cpdb/console"
	"github.com/launix-de/cpdb/server"
)

func main() {
	port := flag.Int("p", 9001, "listen port")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dsserver [-p port] <dataset-root>")
		os.Exit(1)
	}
	root := flag.Arg(0)

	fmt.Println("cpdb - columnar dataset server")
	fmt.Println("Copyright (C) 2023 Carl-Philip Hänsch")
	fmt.Println("This program comes with ABSOLUTELY NO WARRANTY.")
	fmt.Println("This is free software, and you are welcome to redistribute it under GPLv3.")

	if err := os.MkdirAll(root, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "cpdb: create dataset root: %v\n", err)
		os.Exit(1)
	}

	s := server.NewServer(root)
	if err := s.LoadExisting(); err != nil {
		fmt.Fprintf(os.Stderr, "cpdb: %v\n", err)
		os.Exit(1)
	}
	if err := s.WatchRoot(); err != nil {
		fmt.Fprintf(os.Stderr, "cpdb: watch dataset root: %v\n", err)
		os.Exit(1)
	}

	onexit.Register(func() {
		fmt.Fprintln(os.Stderr, "cpdb: flushing open datasets before exit")
		s.FlushAll()
	})

	go s.Run()

	http.Handle("/", s)
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		fmt.Printf("cpdb: listening on %s, serving %s\n", addr, root)
		if err := http.ListenAndServe(addr, nil); err != nil {
			fmt.Fprintf(os.Stderr, "cpdb: http server: %v\n", err)
			os.Exit(1)
		}
	}()

	if err := console.Repl(root); err != nil {
		fmt.Fprintf(os.Stderr, "cpdb: console: %v\n", err)
	}
}
