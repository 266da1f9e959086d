package proto

import (
	"encoding/binary"
	"fmt"
	"math"
)

// dispatchOpcode treats c as a fresh packet opcode and pushes whatever
// sub-frames that packet's operands require, in wire order. It always
// consumes the opcode byte itself.
func (p *Parser) dispatchOpcode(c byte) error {
	if p.Trace != nil {
		fmt.Fprintf(p.Trace, "main: 0x%02x\n", c)
	}
	switch c {
	case 0x00: // keep-alive: i32
		p.pushBytes(4)

	case 0x01: // login: i32 eid, Str16 user, Str16 world_type, i32 mode, i32 dim, i8 diff, u8 height, u8 max_players
		p.pushSequence(
			func(p *Parser) {
				p.pushBytesThen(4, func(p *Parser, eidBuf []byte) error {
					eid := be32(eidBuf)
					p.pushStr16(func(p *Parser, username string) error {
						p.pushStr16(func(p *Parser, worldType string) error {
							p.pushBytesThen(11, func(p *Parser, tail []byte) error {
								mode := be32(tail[0:4])
								dim := be32(tail[4:8])
								diff := int8(tail[8])
								height := tail[9]
								p.handler.HandleLogin(LoginInfo{EntityID: eid, Username: username})
								p.handler.HandleServerInfo(ServerInfo{
									WorldType: worldType, Mode: mode, Dimension: dim,
									Difficulty: diff, Height: height,
								})
								return nil
							})
							return nil
						})
						return nil
					})
					return nil
				})
			},
		)

	case 0x02: // handshake: Str16
		p.pushStr16(func(p *Parser, s string) error { return nil })

	case 0x03: // chat: Str16
		p.pushStr16(func(p *Parser, s string) error {
			p.handler.HandleChat(Chat{Text: s})
			return nil
		})

	case 0x04: // time: i64
		p.pushBytesThen(8, func(p *Parser, buf []byte) error {
			p.handler.HandleTimeUpdate(TimeUpdate{Ticks: be64(buf)})
			return nil
		})

	case 0x05: // entity equipment: 10 bytes
		p.pushBytes(10)

	case 0x06: // spawn pos: i32 i32 i32
		p.pushBytesThen(12, func(p *Parser, buf []byte) error {
			p.handler.HandlePlayerPos(PlayerPos{
				X: int(be32(buf[0:4])), Y: int(be32(buf[4:8])), Z: int(be32(buf[8:12])),
			})
			return nil
		})

	case 0x07: // use entity: 9 bytes
		p.pushBytes(9)

	case 0x08: // health: i16 hp, i16 food, f32 sat
		p.pushBytesThen(8, func(p *Parser, buf []byte) error {
			hp := int16(be16(buf[0:2]))
			food := int16(be16(buf[2:4]))
			sat := beFloat32(buf[4:8])
			p.handler.HandlePlayerHealth(PlayerHealth{HP: hp, Food: food, Sat: sat})
			return nil
		})

	case 0x09: // respawn: i32 dim, i8 diff, i8 mode, i16 height, Str16 world_type
		p.pushBytesThen(8, func(p *Parser, buf []byte) error {
			dim := be32(buf[0:4])
			diff := int8(buf[4])
			mode := int8(buf[5])
			height := be16(buf[6:8])
			p.pushStr16(func(p *Parser, worldType string) error {
				p.handler.HandleServerInfo(ServerInfo{
					WorldType: worldType, Mode: int32(mode), Dimension: dim,
					Difficulty: diff, Height: uint8(height),
				})
				return nil
			})
			return nil
		})

	case 0x0a: // on-ground: 1 byte
		p.pushBytes(1)

	case 0x0b: // player pos (double): x,y,stance,z,f64 then u8
		p.pushBytesThen(33, func(p *Parser, buf []byte) error {
			x := beFloat64(buf[0:8])
			y := beFloat64(buf[8:16])
			z := beFloat64(buf[24:32])
			p.handler.HandlePlayerPos(PlayerPos{X: int(x), Y: int(y), Z: int(z)})
			return nil
		})

	case 0x0c: // look: 9 bytes
		p.pushBytes(9)

	case 0x0d: // pos+look: f64 x4, f32 x2, u8
		p.pushBytesThen(41, func(p *Parser, buf []byte) error {
			x := beFloat64(buf[0:8])
			y := beFloat64(buf[8:16])
			z := beFloat64(buf[24:32])
			p.handler.HandlePlayerPos(PlayerPos{X: int(x), Y: int(y), Z: int(z)})
			return nil
		})

	case 0x0e: // action: 11 bytes
		p.pushBytes(11)

	case 0x0f: // place: 10 bytes, Slot
		p.pushSequence(
			func(p *Parser) { p.pushBytes(10) },
			pushSlot,
		)

	case 0x10:
		p.pushBytes(2)
	case 0x11:
		p.pushBytes(14)
	case 0x12:
		p.pushBytes(5)
	case 0x13:
		p.pushBytes(5)
	case 0x14: // 4 bytes, Str16, 16 bytes
		p.pushSequence(
			func(p *Parser) { p.pushBytes(4) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
			func(p *Parser) { p.pushBytes(16) },
		)
	case 0x15:
		p.pushBytes(24)
	case 0x16:
		p.pushBytes(8)

	case 0x17: // vehicle spawn: 17 bytes, then i32 flag; if flag>0 read 6 more
		p.pushSequence(
			func(p *Parser) { p.pushBytes(17) },
			func(p *Parser) {
				p.pushBytesThen(4, func(p *Parser, buf []byte) error {
					if be32(buf) > 0 {
						p.pushBytes(6)
					}
					return nil
				})
			},
		)

	case 0x18: // mob spawn: i32 eid, i8 type, i32 x,y,z, i8 yaw,pitch,head, Metadata
		p.pushSequence(
			func(p *Parser) {
				p.pushBytesThen(20, func(p *Parser, buf []byte) error {
					eid := be32(buf[0:4])
					mobType := int8(buf[4])
					x := be32(buf[5:9])
					y := be32(buf[9:13])
					z := be32(buf[13:17])
					p.handler.HandleMobSpawn(MobSpawn{
						EntityID: eid, MobType: mobType,
						X: float64(x) / 32.0, Y: float64(y) / 32.0, Z: float64(z) / 32.0,
					})
					return nil
				})
			},
			pushMetadata,
		)

	case 0x19: // 4 bytes, Str16, 16 bytes
		p.pushSequence(
			func(p *Parser) { p.pushBytes(4) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
			func(p *Parser) { p.pushBytes(16) },
		)
	case 0x1a:
		p.pushBytes(18)
	case 0x1b:
		p.pushBytes(18)
	case 0x1c:
		p.pushBytes(10)
	case 0x1d:
		p.pushBytes(4)
	case 0x1e:
		p.pushBytes(4)
	case 0x1f:
		p.pushBytes(7)
	case 0x20:
		p.pushBytes(6)
	case 0x21:
		p.pushBytes(9)
	case 0x22:
		p.pushBytes(18)
	case 0x23:
		p.pushBytes(5)
	case 0x26:
		p.pushBytes(5)
	case 0x27:
		p.pushBytes(8)
	case 0x28: // 4 bytes, Metadata
		p.pushSequence(
			func(p *Parser) { p.pushBytes(4) },
			pushMetadata,
		)
	case 0x29:
		p.pushBytes(8)
	case 0x2a:
		p.pushBytes(5)
	case 0x2b:
		p.pushBytes(8)

	case 0x32: // pre-chunk: 9 bytes
		p.pushBytes(9)

	case 0x33: // map chunk: ..., i32 n, i32 pad, then n bytes
		p.pushBytesThen(21, func(p *Parser, buf []byte) error {
			x := be32(buf[0:4])
			z := be32(buf[4:8])
			ground := buf[8] != 0
			primary := be16(buf[9:11])
			add := be16(buf[11:13])
			n := be32(buf[13:17])
			// buf[17:21] is the pad field the wire format carries but never uses.
			if n < 0 {
				return protoErrorf("negative map chunk length %d", n)
			}
			p.pushBytesThen(int(n), func(p *Parser, payload []byte) error {
				p.handler.HandleMapChunk(MapChunk{
					X: x, Z: z, GroundUpContiguous: ground,
					PrimaryBitmap: primary, AddBitmap: add,
					Payload: payload,
				})
				return nil
			})
			return nil
		})

	case 0x34: // multi-block change: 10 bytes then i32 n, then n bytes
		p.pushSequence(
			func(p *Parser) { p.pushBytes(10) },
			func(p *Parser) {
				p.pushBytesThen(4, func(p *Parser, buf []byte) error {
					n := be32(buf)
					if n < 0 {
						return protoErrorf("negative multi-block-change length %d", n)
					}
					p.pushBytes(int(n))
					return nil
				})
			},
		)

	case 0x35:
		p.pushBytes(11)
	case 0x36:
		p.pushBytes(12)

	case 0x3c: // explosion: 28 bytes then i32 n, then n*3 bytes
		p.pushSequence(
			func(p *Parser) { p.pushBytes(28) },
			func(p *Parser) {
				p.pushBytesThen(4, func(p *Parser, buf []byte) error {
					n := be32(buf)
					if n < 0 {
						return protoErrorf("negative explosion record count %d", n)
					}
					p.pushBytes(int(n) * 3)
					return nil
				})
			},
		)

	case 0x3d:
		p.pushBytes(17)
	case 0x46:
		p.pushBytes(2)
	case 0x47:
		p.pushBytes(17)

	case 0x64: // 2 bytes, Str16, 1 byte
		p.pushSequence(
			func(p *Parser) { p.pushBytes(2) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
			func(p *Parser) { p.pushBytes(1) },
		)
	case 0x65:
		p.pushBytes(1)
	case 0x66: // 7 bytes, Slot
		p.pushSequence(
			func(p *Parser) { p.pushBytes(7) },
			pushSlot,
		)
	case 0x67: // 3 bytes, Slot
		p.pushSequence(
			func(p *Parser) { p.pushBytes(3) },
			pushSlot,
		)
	case 0x68: // 1 byte, u16 count, count x Slot
		p.pushSequence(
			func(p *Parser) { p.pushBytes(1) },
			func(p *Parser) {
				p.pushBytesThen(2, func(p *Parser, buf []byte) error {
					count := int(be16(buf))
					slots := make([]func(p *Parser), count)
					for i := range slots {
						slots[i] = pushSlot
					}
					p.pushSequence(slots...)
					return nil
				})
			},
		)
	case 0x69:
		p.pushBytes(5)
	case 0x6a:
		p.pushBytes(4)
	case 0x6b: // 2 bytes, Slot
		p.pushSequence(
			func(p *Parser) { p.pushBytes(2) },
			pushSlot,
		)
	case 0x6c:
		p.pushBytes(2)

	case 0x82: // update sign: 10 bytes, four Str16
		p.pushSequence(
			func(p *Parser) { p.pushBytes(10) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
		)

	case 0x83: // item data: 4 bytes then u8 n, then n bytes
		p.pushSequence(
			func(p *Parser) { p.pushBytes(4) },
			func(p *Parser) {
				p.pushBytesThen(1, func(p *Parser, buf []byte) error {
					p.pushBytes(int(buf[0]))
					return nil
				})
			},
		)

	case 0x84: // tile entity: 23 bytes
		p.pushBytes(23)

	case 0xc8: // statistics: 5 bytes
		p.pushBytes(5)
	case 0xc9: // player list: 3 bytes, Str16
		p.pushSequence(
			func(p *Parser) { p.pushBytes(3) },
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
		)
	case 0xca:
		p.pushBytes(4)

	case 0xfa: // plugin message: Str16 channel, u16 n, n bytes
		p.pushSequence(
			func(p *Parser) { p.pushStr16(func(p *Parser, _ string) error { return nil }) },
			func(p *Parser) {
				p.pushBytesThen(2, func(p *Parser, buf []byte) error {
					p.pushBytes(int(be16(buf)))
					return nil
				})
			},
		)

	case 0xfe: // server list ping: no payload
		// nothing to push

	case 0xff: // disconnect: Str16
		p.pushStr16(func(p *Parser, _ string) error { return nil })

	default:
		return fmt.Errorf("%w: %v", ErrProtocol, UnknownOpcodeError(c))
	}

	return nil
}

func beFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(buf))
}

func beFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(buf))
}
