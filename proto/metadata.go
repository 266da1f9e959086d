package proto

import "fmt"

// pushMetadata pushes the self-delimited entity metadata stream used by
// opcodes 0x18 and 0x28: a sequence of (selector-byte, value) entries
// terminated by the sentinel byte 0x7f. The selector's upper 3 bits choose
// the value's width; nothing in the value is interpreted, since the
// parser only needs to skip past it.
func pushMetadata(p *Parser) {
	p.pushBytesThen(1, func(p *Parser, tagBuf []byte) error {
		tag := tagBuf[0]
		if tag == 0x7f {
			return nil
		}

		after := func(p *Parser) { pushMetadata(p) }

		switch tag >> 5 {
		case 0:
			p.pushBytesThen(1, func(p *Parser, _ []byte) error { after(p); return nil })
		case 1:
			p.pushBytesThen(2, func(p *Parser, _ []byte) error { after(p); return nil })
		case 2, 3:
			p.pushBytesThen(4, func(p *Parser, _ []byte) error { after(p); return nil })
		case 4:
			p.pushStr16(func(p *Parser, _ string) error { after(p); return nil })
		case 5:
			p.pushBytesThen(5, func(p *Parser, _ []byte) error { after(p); return nil })
		case 6:
			p.pushBytesThen(12, func(p *Parser, _ []byte) error { after(p); return nil })
		default:
			return fmt.Errorf("%w: %v", ErrProtocol, InvalidMetadataTagError(tag))
		}
		return nil
	})
}
