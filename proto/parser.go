// Package proto implements the Minecraft 1.2 (protocol version 29) wire
// format as a byte-at-a-time stateful recognizer.
//
// Packets are not framed: a direction's TCP stream is just packets placed
// back to back, each one's length implied by its opcode plus whatever
// length fields are embedded further in (strings, slots, metadata, chunk
// payloads). Parser.Feed can be called with arbitrarily sized, arbitrarily
// split chunks of the stream — it must reassemble packets regardless of
// where the underlying reads happened to land.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// ErrProtocol is the sentinel wrapped by every parse failure: an unknown
// opcode, an invalid metadata tag, or a negative/otherwise nonsensical
// length. It never indicates a transport problem.
var ErrProtocol = errors.New("proto: protocol error")

// UnknownOpcodeError names the specific opcode that Feed did not recognize.
type UnknownOpcodeError byte

func (e UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown packet opcode %#02x", byte(e))
}

// InvalidMetadataTagError names the specific metadata selector byte that
// did not map to a known field width.
type InvalidMetadataTagError byte

func (e InvalidMetadataTagError) Error() string {
	return fmt.Sprintf("invalid metadata tag %#02x", byte(e))
}

func protoErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// frame is one entry of the parser's stack: a byte-consuming action bound
// to an accumulator and a remaining-count. A frame with remaining <= 0 is
// already complete; the next byte is not consumed by it and is instead
// offered to whatever the frame's onDone pushed (or to the frame beneath
// it, if onDone pushed nothing).
type frame struct {
	remaining int
	buf       []byte
	onDone    func(p *Parser, buf []byte) error
}

// Parser recognizes packet boundaries in one direction of a Minecraft 1.2
// connection and reports recognized events to a Handler. It does not
// validate semantic content — only packet structure.
type Parser struct {
	safeMode bool
	active   bool
	pos      int64
	stack    []*frame
	handler  Handler

	// Trace, if non-nil, receives one line per top-of-stack dispatch —
	// the Go analogue of the original proxy's per-instance debug file
	// handle (spec's "global parser-debug sink" redesign note).
	Trace interface {
		Write(p []byte) (n int, err error)
	}
}

// NewParser returns a Parser delivering events to handler. In safe mode, a
// protocol error disables the parser for the remainder of the session
// instead of propagating; the caller should keep forwarding bytes
// regardless (see the proxy package).
func NewParser(handler Handler, safeMode bool) *Parser {
	if handler == nil {
		handler = NopHandler{}
	}
	return &Parser{
		safeMode: safeMode,
		active:   true,
		handler:  handler,
		stack:    nil, // nil stack means "at the dispatch sentinel"
	}
}

// Pos returns the number of bytes successfully processed so far.
func (p *Parser) Pos() int64 { return p.pos }

// Active reports whether the parser is still accepting input. It is always
// true except after a protocol error in safe mode.
func (p *Parser) Active() bool { return p.active }

func (p *Parser) push(f *frame) {
	p.stack = append(p.stack, f)
}

// pushBytes pushes a frame that discards n bytes.
func (p *Parser) pushBytes(n int) {
	p.push(&frame{remaining: n})
}

// pushBytesThen pushes a frame that accumulates n bytes, then invokes
// onDone with them (before the frame is popped, so onDone may push further
// frames that run ahead of whatever is beneath this one).
func (p *Parser) pushBytesThen(n int, onDone func(p *Parser, buf []byte) error) {
	p.push(&frame{remaining: n, onDone: onDone})
}

// pushSequence pushes a series of frame-constructors so that they run in
// the order listed (pushers[0] first), matching how the opcode table in
// spec.md reads left to right. The stack is LIFO, so this pushes in
// reverse.
func (p *Parser) pushSequence(pushers ...func(p *Parser)) {
	for i := len(pushers) - 1; i >= 0; i-- {
		pushers[i](p)
	}
}

// pushStr16 pushes the two-stage "u16 length, then 2*length UTF-16BE
// bytes" frame, delivering the decoded UTF-8 string to onString.
func (p *Parser) pushStr16(onString func(p *Parser, s string) error) {
	p.pushBytesThen(2, func(p *Parser, lenBuf []byte) error {
		n := int(binary.BigEndian.Uint16(lenBuf))
		p.pushBytesThen(n*2, func(p *Parser, payload []byte) error {
			s, err := decodeUTF16BE(payload)
			if err != nil {
				return protoErrorf("bad UTF-16 string: %v", err)
			}
			return onString(p, s)
		})
		return nil
	})
}

func decodeUTF16BE(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", fmt.Errorf("odd byte length %d", len(data))
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// Feed offers data to the parser. It tolerates arbitrary slicing: calling
// Feed repeatedly with fragments of a byte sequence produces exactly the
// same callbacks as a single Feed of the whole sequence.
func (p *Parser) Feed(data []byte) error {
	if !p.active {
		return nil
	}
	for i := 0; i < len(data); i++ {
		if err := p.step(data[i]); err != nil {
			if p.safeMode {
				p.active = false
				return nil
			}
			return err
		}
		p.pos++
	}
	return nil
}

// step offers one byte to the top of the stack, cascading through any
// frames that complete without consuming it (remaining <= 0), until some
// frame accepts the byte or the dispatch sentinel consumes it as a fresh
// opcode.
func (p *Parser) step(c byte) error {
	for {
		if len(p.stack) == 0 {
			return p.dispatchOpcode(c)
		}

		top := p.stack[len(p.stack)-1]
		if top.remaining <= 0 {
			p.stack = p.stack[:len(p.stack)-1]
			if top.onDone != nil {
				if err := top.onDone(p, top.buf); err != nil {
					return err
				}
			}
			continue
		}

		top.buf = append(top.buf, c)
		top.remaining--
		if top.remaining > 0 {
			return nil
		}
		// top just completed by consuming c. Drain it (and whatever
		// zero-remaining frames its onDone uncovers) right now instead of
		// waiting for a byte that completed the frame to also trigger the
		// next one — c itself must not be re-offered to anything further.
		return p.drainCompleted()
	}
}

// drainCompleted pops and fires onDone for every frame currently sitting at
// remaining <= 0, without consuming any further input. If the stack empties
// out, that just means the current packet is finished; unlike step, it
// never falls through to dispatchOpcode, since no byte is available to
// dispatch with here.
func (p *Parser) drainCompleted() error {
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		if top.remaining > 0 {
			return nil
		}
		p.stack = p.stack[:len(p.stack)-1]
		if top.onDone != nil {
			if err := top.onDone(p, top.buf); err != nil {
				return err
			}
		}
	}
	return nil
}

func be32(buf []byte) int32  { return int32(binary.BigEndian.Uint32(buf)) }
func be16(buf []byte) uint16 { return binary.BigEndian.Uint16(buf) }
func be64(buf []byte) int64  { return int64(binary.BigEndian.Uint64(buf)) }
