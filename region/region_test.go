package region

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// fakeFile is a minimal in-memory io.WriteSeeker/io.ReaderAt.
type fakeFile struct {
	buf []byte
	pos int64
}

func (f *fakeFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *fakeFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		f.pos = offset
	case 1:
		f.pos += offset
	case 2:
		f.pos = int64(len(f.buf)) + offset
	}
	return f.pos, nil
}

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, bytes.ErrTooLarge
	}
	return n, nil
}

func allOnes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0x01
	}
	return b
}

func TestRegionRoundTrip(t *testing.T) {
	rf := NewRegionFile(0, 0)
	c := NewChunk(0, 0)
	copy(c.Blocks, allOnes(chunkCells))
	rf.PutChunk(0, 0, c)

	f := &fakeFile{}
	if err := rf.Write(f, 1000); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := LoadMCR(f, 0, 0)
	if err != nil {
		t.Fatalf("LoadMCR: %v", err)
	}
	got := loaded.Chunk(0, 0)
	if got == nil {
		t.Fatal("chunk (0,0) missing after reload")
	}
	for i, b := range got.Blocks {
		if b != 0x01 {
			t.Fatalf("cell %d = %#x, want 0x01", i, b)
		}
	}
	if len(got.Blocks) != chunkCells {
		t.Fatalf("Blocks length = %d, want %d", len(got.Blocks), chunkCells)
	}
}

func buildMaplogRecord(t *testing.T, x, y, z, sx, sy, sz int32, blockID byte) []byte {
	t.Helper()
	cells := int(sx) * int(sy) * int(sz)
	packedLen := (cells + 1) / 2
	payload := make([]byte, cells+3*packedLen)
	for i := 0; i < cells; i++ {
		payload[i] = blockID
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("compress close: %v", err)
	}

	var buf bytes.Buffer
	for _, v := range []int32{x, y, z, sx - 1, sy - 1, sz - 1, int32(compressed.Len())} {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(v))
		buf.Write(tmp[:])
	}
	buf.Write(compressed.Bytes())
	return buf.Bytes()
}

func TestMaplogMergeAppliesSingleCell(t *testing.T) {
	rf := NewRegionFile(0, 0)
	record := buildMaplogRecord(t, 5, 70, 7, 1, 1, 1, 0x02)

	if err := rf.LoadLog(bytes.NewReader(record)); err != nil {
		t.Fatalf("LoadLog: %v", err)
	}

	f := &fakeFile{}
	if err := rf.Write(f, 1000); err != nil {
		t.Fatalf("Write: %v", err)
	}
	loaded, err := LoadMCR(f, 0, 0)
	if err != nil {
		t.Fatalf("LoadMCR: %v", err)
	}
	c := loaded.Chunk(0, 0)
	if c == nil {
		t.Fatal("chunk (0,0) missing after reload")
	}
	for x := 0; x < chunkWidth; x++ {
		for y := 0; y < chunkHeight; y++ {
			for z := 0; z < chunkDepth; z++ {
				idx := cellIndex(x, y, z)
				want := byte(0)
				if x == 5 && y == 70 && z == 7 {
					want = 0x02
				}
				if c.Blocks[idx] != want {
					t.Fatalf("cell (%d,%d,%d) = %#x, want %#x", x, y, z, c.Blocks[idx], want)
				}
			}
		}
	}
}
