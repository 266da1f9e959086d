package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/euske/mcproxy/logger"
	"github.com/euske/mcproxy/proxy"
	"github.com/euske/mcproxy/util"
)

type serveCmd struct {
	listen    string
	remote    string
	output    string
	maplogDir string
	delay     time.Duration
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "Run the proxy, logging traffic between a client and a server." }
func (*serveCmd) Usage() string {
	return `serve -listen <addr> -remote <addr> [flags...]
Accept connections on -listen and relay them to -remote, logging decoded
events from both directions.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.listen, "listen", ":25565", "Address to accept client connections on")
	f.StringVar(&c.remote, "remote", "", "Address of the real Minecraft server to connect to")
	f.StringVar(&c.output, "output", "session-%Y%m%d-%H%M%S.log", "Output log path template, expanded with the accept time of each session (strftime-style %Y %m %d %H %M %S directives, see formatTemplate)")
	f.StringVar(&c.maplogDir, "maplog-dir", "", "If set, append one record per map chunk packet to the r.<rx>.<rz>.maplog file of its region in this directory")
	f.DurationVar(&c.delay, "delay", 0, "Artificial per-chunk forwarding delay, for simulating latency")
}

func (c *serveCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.remote == "" {
		return usageError("-remote is required")
	}

	listener, err := net.Listen("tcp", c.listen)
	if err != nil {
		log.Printf("listen on %s: %v", c.listen, err)
		return subcommands.ExitFailure
	}
	defer listener.Close()
	log.Printf("mcproxy: listening on %s, forwarding to %s", c.listen, c.remote)

	server := proxy.NewServer(listener, c.remote, c.observersFor)
	server.Delay = c.delay

	if err := server.Serve(); err != nil {
		log.Printf("serve: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// observersFor opens a fresh capture log for a newly accepted session (one
// file per session, expanded from the output template at accept time) and
// returns the client->server and server->client parser/logger pairs that
// write into it.
func (c *serveCmd) observersFor(sessionID int64) (clientToServer, serverToClient proxy.Observer) {
	path := formatTemplate(c.output, time.Now())
	sink, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		// Two sessions landed on the same expanded template (same second,
		// e.g. several players joining at once); fall back to a unique
		// name built from the same prefix rather than clobbering the
		// earlier session's capture.
		sink, err = util.OpenFileUniqueName(path+"-", os.O_WRONLY, 0644)
	}
	if err != nil {
		log.Printf("session %d: opening capture log %s: %v", sessionID, path, err)
		sink = os.Stderr
	}

	shared := logger.NewSyncWriter(sink)
	serverLog := logger.NewServerLogger(shared)
	serverLog.MaplogDir = c.maplogDir
	clientLog := logger.NewClientLogger(shared)

	return proxy.NewParserObserver(clientLog), proxy.NewParserObserver(serverLog)
}
