// Command highwayd is a length-prefixed TCP echo server used to drive
// the Memory Highway core end to end. It is pure scaffolding: the
// framing protocol, CLI flag parsing, and logging here are all
// external collaborators per spec.md §1, grounded on cmd/sneller's
// stdlib-flag-and-log style (the teacher never reaches for a CLI
// framework, so neither does this harness).
package main

import (
	"flag"
	"io"
	"log"
	"net"

	"github.com/sneller-labs/memhighway/highway"
	"github.com/sneller-labs/memhighway/highway/config"
	"github.com/sneller-labs/memhighway/internal/framing"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "listen address")
	confPath := flag.String("config", "", "path to a YAML highway.Settings document")
	mapDir := flag.String("mapdir", "", "directory for mapped-backend lane files (mapped backend only)")
	flag.Parse()

	s, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("highwayd: %s", err)
	}

	var hw *highway.Highway
	switch s.BackendKind {
	case highway.Native:
		hw, err = highway.NewNativeHighway(s)
	case highway.Mapped:
		hw, err = highway.NewMappedHighway(*mapDir, s)
	default:
		hw, err = highway.NewHeapHighway(s)
	}
	if err != nil {
		log.Fatalf("highwayd: create highway: %s", err)
	}
	hw.Logger = log.Default()
	defer hw.Dispose()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("highwayd: listen: %s", err)
	}
	defer ln.Close()
	log.Printf("highwayd: listening on %s (backend=%s)", *addr, s.BackendKind)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("highwayd: accept: %s", err)
			continue
		}
		go serve(conn, hw)
	}
}

// serve implements the canonical usage pattern from spec.md §6:
// alloc -> write(header) -> write(body) -> dispose, one frame at a
// time, holding zero bytes live longer than a single frame.
func serve(conn net.Conn, hw *highway.Highway) {
	defer conn.Close()
	for {
		frag, err := framing.ReadFrame(conn, hw)
		if err != nil {
			if err != io.EOF {
				log.Printf("highwayd: read frame: %s", err)
			}
			return
		}
		if frag == nil {
			continue
		}
		err = framing.WriteFrame(conn, frag)
		frag.Dispose()
		if err != nil {
			log.Printf("highwayd: write frame: %s", err)
			return
		}
	}
}
