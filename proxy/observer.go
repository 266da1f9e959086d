package proxy

import "github.com/euske/mcproxy/proto"

// ParserObserver adapts a proto.Parser (run in safe mode) to Observer: each
// chunk is fed to the parser and Feed's result is returned as is. A
// safe-mode parser disables itself on a protocol error and returns nil, so
// nothing reaches the caller; a non-safe-mode parser's error is returned,
// so a misconfigured observer is visible.
type ParserObserver struct {
	Parser *proto.Parser
}

// NewParserObserver returns an Observer that feeds bytes to handler through
// a fresh safe-mode Parser.
func NewParserObserver(handler proto.Handler) *ParserObserver {
	return &ParserObserver{Parser: proto.NewParser(handler, true)}
}

func (o *ParserObserver) Observe(data []byte) error {
	return o.Parser.Feed(data)
}
