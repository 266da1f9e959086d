package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/google/subcommands"

	"github.com/euske/mcproxy/logger"
	"github.com/euske/mcproxy/proto"
)

// replayCmd feeds a previously captured byte stream through a parser and
// logger pair with no network involved at all, for testing the decoder
// against real captures.
type replayCmd struct {
	maplogDir string
	asServer  bool
}

func (*replayCmd) Name() string     { return "replay" }
func (*replayCmd) Synopsis() string { return "Decode a captured byte stream offline." }
func (*replayCmd) Usage() string {
	return `replay [flags...] <capture-file>
Feed a raw captured direction of Minecraft traffic through the decoder and
print its events to stdout, without opening any socket.
`
}

func (c *replayCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.maplogDir, "maplog-dir", "", "If set, append one record per map chunk packet to the r.<rx>.<rz>.maplog file of its region in this directory")
	f.BoolVar(&c.asServer, "server", true, "Decode as the server->client direction (false decodes client->server)")
}

func (c *replayCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError("replay takes exactly one <capture-file> argument")
	}
	in, err := os.Open(f.Arg(0))
	if err != nil {
		log.Printf("replay: %v", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	var handler proto.Handler
	if c.asServer {
		sl := logger.NewServerLogger(os.Stdout)
		sl.MaplogDir = c.maplogDir
		handler = sl
	} else {
		handler = logger.NewClientLogger(os.Stdout)
	}

	p := proto.NewParser(handler, true)
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if feedErr := p.Feed(buf[:n]); feedErr != nil {
				log.Printf("replay: %v", feedErr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("replay: reading capture: %v", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
