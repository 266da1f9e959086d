// Package region implements the Minecraft Beta/McRegion on-disk chunk
// storage format: 32x32-chunk region files backed by 4096-byte sectors, and
// the maplog incremental patch format used to apply later edits on load.
package region

import (
	"bytes"
	"fmt"
	"io"

	"github.com/euske/mcproxy/nbt"
	"github.com/klauspost/compress/zlib"
)

const (
	chunkWidth  = 16
	chunkHeight = 128
	chunkDepth  = 16
	chunkCells  = chunkWidth * chunkHeight * chunkDepth

	sectorSize = 4096
)

// Chunk holds one 16x128x16 column of block data plus its light and
// metadata nibble arrays (held unpacked, one byte per cell), along with the NBT tree it was loaded from (so
// unrelated tags round-trip unchanged on write).
type Chunk struct {
	X, Z int32

	Blocks     []byte // one byte per cell
	Data       []byte // one nibble per cell, unpacked to one byte each
	SkyLight   []byte
	BlockLight []byte

	level *nbt.Compound // retained for round-tripping unrelated tags
}

func cellIndex(x, y, z int) int {
	return x*chunkHeight*chunkDepth + z*chunkHeight + y
}

// NewChunk returns an empty, all-zero chunk at the given chunk coordinate.
func NewChunk(x, z int32) *Chunk {
	return &Chunk{
		X: x, Z: z,
		Blocks:     make([]byte, chunkCells),
		Data:       make([]byte, chunkCells),
		SkyLight:   make([]byte, chunkCells),
		BlockLight: make([]byte, chunkCells),
	}
}

// put copies a sub-volume of block/data/light bytes into the chunk,
// starting at (x0,y0,z0) and spanning (sx,sy,sz) cells. blocks must have
// sx*sy*sz bytes; data, skyLight, and blockLight (if non-nil) must each
// have the same length, one byte per cell (already unpacked from nibbles).
// Any column or cell whose absolute coordinate falls outside the chunk's
// 16x128x16 bounds is silently skipped.
func (c *Chunk) put(x0, y0, z0, sx, sy, sz int, blocks, data, skyLight, blockLight []byte) {
	if x0 == 0 && y0 == 0 && z0 == 0 && sx == chunkWidth && sy == chunkHeight && sz == chunkDepth {
		copy(c.Blocks, blocks)
		if data != nil {
			copy(c.Data, data)
		}
		if skyLight != nil {
			copy(c.SkyLight, skyLight)
		}
		if blockLight != nil {
			copy(c.BlockLight, blockLight)
		}
		return
	}

	for dx := 0; dx < sx; dx++ {
		x := x0 + dx
		if x < 0 || x >= chunkWidth {
			continue
		}
		for dz := 0; dz < sz; dz++ {
			z := z0 + dz
			if z < 0 || z >= chunkDepth {
				continue
			}
			for dy := 0; dy < sy; dy++ {
				y := y0 + dy
				if y < 0 || y >= chunkHeight {
					continue
				}
				src := dx*sy*sz + dz*sy + dy
				dst := cellIndex(x, y, z)
				c.Blocks[dst] = blocks[src]
				if data != nil {
					c.Data[dst] = data[src]
				}
				if skyLight != nil {
					c.SkyLight[dst] = skyLight[src]
				}
				if blockLight != nil {
					c.BlockLight[dst] = blockLight[src]
				}
			}
		}
	}
}

// loadChunk decodes a sector payload (already stripped of its length/method
// header) into a Chunk.
func loadChunk(payload []byte) (*Chunk, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("region: inflating chunk: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("region: inflating chunk: %w", err)
	}

	root, err := nbt.ParseRoot(raw)
	if err != nil {
		return nil, err
	}
	top, ok := root.Get(root.Names()[0]).(*nbt.Compound)
	if !ok {
		return nil, fmt.Errorf("region: chunk NBT root has no compound child")
	}
	level, ok := top.Get("Level").(*nbt.Compound)
	if !ok {
		return nil, fmt.Errorf("region: chunk NBT has no Level compound")
	}

	blocksTag, ok := level.Get("Blocks").(*nbt.ByteArray)
	if !ok {
		return nil, fmt.Errorf("region: chunk Level has no Blocks array")
	}
	dataTag, _ := level.Get("Data").(*nbt.ByteArray)
	skyTag, _ := level.Get("SkyLight").(*nbt.ByteArray)
	lightTag, _ := level.Get("BlockLight").(*nbt.ByteArray)

	xPos, _ := level.Get("xPos").(*nbt.Int)
	zPos, _ := level.Get("zPos").(*nbt.Int)

	c := &Chunk{level: level}
	if xPos != nil {
		c.X = xPos.Value32
	}
	if zPos != nil {
		c.Z = zPos.Value32
	}
	c.Blocks = append([]byte(nil), blocksTag.Bytes...)
	c.Data = unpackNibblesTo(dataTag, chunkCells)
	c.SkyLight = unpackNibblesTo(skyTag, chunkCells)
	c.BlockLight = unpackNibblesTo(lightTag, chunkCells)
	return c, nil
}

func unpackNibblesTo(packed *nbt.ByteArray, n int) []byte {
	var src []byte
	if packed != nil {
		src = packed.Bytes
	}
	return unpackNibbles(src, n)
}

// unpackNibbles expands a packed byte slice (two nibbles per byte, low
// nibble first) into n individual cell bytes.
func unpackNibbles(packed []byte, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < len(packed) && i*2+1 < n; i++ {
		b := packed[i]
		out[i*2] = b & 0x0f
		out[i*2+1] = (b >> 4) & 0x0f
	}
	return out
}

func packNibbles(unpacked []byte) []byte {
	out := make([]byte, (len(unpacked)+1)/2)
	for i := 0; i+1 < len(unpacked); i += 2 {
		out[i/2] = (unpacked[i] & 0x0f) | ((unpacked[i+1] & 0x0f) << 4)
	}
	return out
}

// serialize re-packs the chunk's four arrays into its retained NBT tree (or
// a fresh one, for a chunk that was never loaded from disk) and
// zlib-compresses the result.
func (c *Chunk) serialize() ([]byte, error) {
	level := c.level
	if level == nil {
		level = nbt.NewCompound()
	}
	level.Put("Blocks", &nbt.ByteArray{Bytes: c.Blocks})
	level.Put("Data", &nbt.ByteArray{Bytes: packNibbles(c.Data)})
	level.Put("SkyLight", &nbt.ByteArray{Bytes: packNibbles(c.SkyLight)})
	level.Put("BlockLight", &nbt.ByteArray{Bytes: packNibbles(c.BlockLight)})
	level.Put("xPos", &nbt.Int{Value32: c.X})
	level.Put("zPos", &nbt.Int{Value32: c.Z})

	top := nbt.NewCompound()
	top.Put("Level", level)
	root := nbt.NewCompound()
	root.Put("", top)
	raw := nbt.SerializeRoot(root)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
