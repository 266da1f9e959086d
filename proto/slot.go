package proto

import "encoding/binary"

// enchantableItems is the set of item type IDs that carry an optional
// enchantment NBT blob in their slot data.
var enchantableItems = map[int16]bool{
	0x103: true, // Flint and steel
	0x105: true, // Bow
	0x15A: true, // Fishing rod
	0x167: true, // Shears

	// Tools: sword, shovel, pickaxe, axe, hoe
	0x10C: true, 0x10D: true, 0x10E: true, 0x10F: true, 0x122: true, // wood
	0x110: true, 0x111: true, 0x112: true, 0x113: true, 0x123: true, // stone
	0x10B: true, 0x100: true, 0x101: true, 0x102: true, 0x124: true, // iron
	0x114: true, 0x115: true, 0x116: true, 0x117: true, 0x125: true, // diamond
	0x11B: true, 0x11C: true, 0x11D: true, 0x11E: true, 0x126: true, // gold

	// Armor: helmet, chestplate, leggings, boots
	0x12A: true, 0x12B: true, 0x12C: true, 0x12D: true, // leather
	0x12E: true, 0x12F: true, 0x130: true, 0x131: true, // chain
	0x132: true, 0x133: true, 0x134: true, 0x135: true, // iron
	0x136: true, 0x137: true, 0x138: true, 0x139: true, // diamond
	0x13A: true, 0x13B: true, 0x13C: true, 0x13D: true, // gold
}

// pushSlot pushes the inventory-slot sub-frame: a u16 block ID, and if that
// ID is non-negative, 3 more bytes (count + damage), followed by an
// enchantment blob (u16 length + that many bytes) if the ID is
// enchantable.
func pushSlot(p *Parser) {
	p.pushBytesThen(2, func(p *Parser, idBuf []byte) error {
		id := int16(binary.BigEndian.Uint16(idBuf))
		if id < 0 {
			return nil
		}
		p.pushBytesThen(3, func(p *Parser, _ []byte) error {
			if enchantableItems[id] {
				p.pushBytesThen(2, func(p *Parser, lenBuf []byte) error {
					n := int(binary.BigEndian.Uint16(lenBuf))
					if n > 0 {
						p.pushBytes(n)
					}
					return nil
				})
			}
			return nil
		})
		return nil
	})
}
