package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"
)

const (
	regionSide   = 32
	headerPages  = 2
	headerBytes  = headerPages * sectorSize
	sectorMethod = 2 // zlib, the only method this format writes or accepts
)

// ErrChunkTooLarge is returned by RegionFile.Write when a chunk's
// compressed payload would need more than 255 sectors (1,044,480 bytes) to
// store, which the 8-bit sector-count header field cannot represent.
var ErrChunkTooLarge = errors.New("region: chunk too large")

type location struct {
	sector uint32 // low 24 bits significant
	count  uint8
}

func (l location) empty() bool { return l.sector == 0 && l.count == 0 }

// RegionFile holds up to regionSide*regionSide chunks addressed by their
// position within the region (0..31 on each axis).
type RegionFile struct {
	RX, RZ int32

	chunks     map[[2]int]*Chunk
	timestamps map[[2]int]uint32
}

// NewRegionFile returns an empty region at region coordinate (rx, rz).
func NewRegionFile(rx, rz int32) *RegionFile {
	return &RegionFile{
		RX: rx, RZ: rz,
		chunks:     make(map[[2]int]*Chunk),
		timestamps: make(map[[2]int]uint32),
	}
}

func chunkKey(localX, localZ int) [2]int { return [2]int{localX, localZ} }

// Chunk returns the chunk at local coordinate (localX, localZ) within the
// region (each in 0..31), or nil if absent.
func (rf *RegionFile) Chunk(localX, localZ int) *Chunk {
	return rf.chunks[chunkKey(localX, localZ)]
}

// PutChunk installs c at local coordinate (localX, localZ), replacing
// whatever was there.
func (rf *RegionFile) PutChunk(localX, localZ int, c *Chunk) {
	rf.chunks[chunkKey(localX, localZ)] = c
}

// LoadMCR reads a complete .mcr region file from r. It sorts the non-empty
// header locations by sector offset before reading chunk payloads, so that
// on spinning media the reads proceed strictly forward through the file.
func LoadMCR(r io.ReaderAt, rx, rz int32) (*RegionFile, error) {
	header := make([]byte, headerBytes)
	if _, err := r.ReadAt(header, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("region: reading header: %w", err)
	}

	locs := make([]location, regionSide*regionSide)
	for i := range locs {
		off := i * 4
		v := binary.BigEndian.Uint32(header[off : off+4])
		locs[i] = location{sector: v >> 8, count: uint8(v)}
	}
	timestamps := make([]uint32, regionSide*regionSide)
	for i := range timestamps {
		off := headerBytes/2 + i*4
		timestamps[i] = binary.BigEndian.Uint32(header[off : off+4])
	}

	type indexed struct {
		idx int
		loc location
	}
	var present []indexed
	for i, loc := range locs {
		if !loc.empty() {
			present = append(present, indexed{idx: i, loc: loc})
		}
	}
	sort.Slice(present, func(a, b int) bool { return present[a].loc.sector < present[b].loc.sector })

	rf := NewRegionFile(rx, rz)
	for _, e := range present {
		localX := e.idx % regionSide
		localZ := e.idx / regionSide

		sectorOff := int64(e.loc.sector) * sectorSize
		sectorBuf := make([]byte, int(e.loc.count)*sectorSize)
		if _, err := r.ReadAt(sectorBuf, sectorOff); err != nil && err != io.EOF {
			return nil, fmt.Errorf("region: reading chunk (%d,%d): %w", localX, localZ, err)
		}
		if len(sectorBuf) < 5 {
			return nil, fmt.Errorf("region: chunk (%d,%d) sector too short", localX, localZ)
		}
		length := binary.BigEndian.Uint32(sectorBuf[0:4])
		method := sectorBuf[4]
		if method != sectorMethod {
			return nil, fmt.Errorf("region: chunk (%d,%d) uses unsupported method %d", localX, localZ, method)
		}
		if length == 0 || int(length-1) > len(sectorBuf)-5 {
			return nil, fmt.Errorf("region: chunk (%d,%d) has an invalid length field", localX, localZ)
		}
		payload := sectorBuf[5 : 5+int(length-1)]

		c, err := loadChunk(payload)
		if err != nil {
			return nil, fmt.Errorf("region: chunk (%d,%d): %w", localX, localZ, err)
		}
		c.X = rx*regionSide + int32(localX)
		c.Z = rz*regionSide + int32(localZ)
		rf.PutChunk(localX, localZ, c)
		rf.timestamps[chunkKey(localX, localZ)] = timestamps[e.idx]
	}
	return rf, nil
}

// MaplogRecord is one patch entry of a .maplog file: a sub-volume of block,
// data, sky-light, and block-light cells to stamp into a chunk, overwriting
// whatever was there.
type MaplogRecord struct {
	X, Y, Z          int32
	SX, SY, SZ       int32 // these are the wire's (size-1) fields, already +1'd
	Blocks           []byte
	Data             []byte
	SkyLight         []byte
	BlockLight       []byte
}

// WriteMaplogRecord appends one maplog record to w. compressed is written
// verbatim (the caller has already zlib-compressed it, or is forwarding an
// already-compressed payload straight off the wire); the header's length
// field is derived from its size.
func WriteMaplogRecord(w io.Writer, x, y, z, sx, sy, sz int32, compressed []byte) error {
	var hdr [28]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(x))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(y))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(z))
	binary.BigEndian.PutUint32(hdr[12:16], uint32(sx-1))
	binary.BigEndian.PutUint32(hdr[16:20], uint32(sy-1))
	binary.BigEndian.PutUint32(hdr[20:24], uint32(sz-1))
	binary.BigEndian.PutUint32(hdr[24:28], uint32(len(compressed)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

// ReadMaplog decodes every record of a maplog stream in order.
func ReadMaplog(r io.Reader) ([]MaplogRecord, error) {
	var records []MaplogRecord
	for {
		var hdr [28]byte
		_, err := io.ReadFull(r, hdr[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("region: reading maplog header: %w", err)
		}
		x := int32(binary.BigEndian.Uint32(hdr[0:4]))
		y := int32(binary.BigEndian.Uint32(hdr[4:8]))
		z := int32(binary.BigEndian.Uint32(hdr[8:12]))
		sx := int32(binary.BigEndian.Uint32(hdr[12:16])) + 1
		sy := int32(binary.BigEndian.Uint32(hdr[16:20])) + 1
		sz := int32(binary.BigEndian.Uint32(hdr[20:24])) + 1
		n := int32(binary.BigEndian.Uint32(hdr[24:28]))
		if n < 0 {
			return nil, fmt.Errorf("region: maplog record has negative length %d", n)
		}

		compressed := make([]byte, n)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, fmt.Errorf("region: reading maplog payload: %w", err)
		}

		payload, err := inflateMaplogPayload(compressed, int(sx), int(sy), int(sz))
		if err != nil {
			return nil, err
		}

		records = append(records, MaplogRecord{
			X: x, Y: y, Z: z, SX: sx, SY: sy, SZ: sz,
			Blocks: payload.blocks, Data: payload.data,
			SkyLight: payload.skyLight, BlockLight: payload.blockLight,
		})
	}
	return records, nil
}

type maplogPayload struct {
	blocks, data, skyLight, blockLight []byte
}

func inflateMaplogPayload(compressed []byte, sx, sy, sz int) (maplogPayload, error) {
	var out maplogPayload
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return out, fmt.Errorf("region: inflating maplog record: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return out, fmt.Errorf("region: inflating maplog record: %w", err)
	}

	cells := sx * sy * sz
	packedLen := (cells + 1) / 2
	want := cells + 3*packedLen
	if len(raw) < want {
		return out, fmt.Errorf("region: maplog record payload too short: got %d, want %d", len(raw), want)
	}

	out.blocks = append([]byte(nil), raw[:cells]...)
	off := cells
	out.data = unpackNibbles(raw[off:off+packedLen], cells)
	off += packedLen
	out.skyLight = unpackNibbles(raw[off:off+packedLen], cells)
	off += packedLen
	out.blockLight = unpackNibbles(raw[off:off+packedLen], cells)
	return out, nil
}

// LoadLog applies every record of a maplog stream whose world chunk falls
// inside this region, creating chunks as needed.
func (rf *RegionFile) LoadLog(r io.Reader) error {
	records, err := ReadMaplog(r)
	if err != nil {
		return err
	}
	for _, rec := range records {
		worldChunkX := int(rec.X >> 4)
		worldChunkZ := int(rec.Z >> 4)
		regionX := worldChunkX >> 5
		regionZ := worldChunkZ >> 5
		if int32(regionX) != rf.RX || int32(regionZ) != rf.RZ {
			continue
		}
		localX := worldChunkX & (regionSide - 1)
		localZ := worldChunkZ & (regionSide - 1)

		c := rf.Chunk(localX, localZ)
		if c == nil {
			c = NewChunk(rf.RX*regionSide+int32(localX), rf.RZ*regionSide+int32(localZ))
			rf.PutChunk(localX, localZ, c)
		}
		x0 := int(rec.X) - localX*chunkWidth - int(rf.RX)*regionSide*chunkWidth
		z0 := int(rec.Z) - localZ*chunkDepth - int(rf.RZ)*regionSide*chunkDepth
		c.put(x0, int(rec.Y), z0, int(rec.SX), int(rec.SY), int(rec.SZ),
			rec.Blocks, rec.Data, rec.SkyLight, rec.BlockLight)
	}
	return nil
}

// Write serializes the region to w: an 8192-byte header followed by each
// present chunk's sector-aligned payload, starting at sector 2. Chunks are
// visited in arbitrary map iteration order; output is fully re-readable by
// LoadMCR regardless of that order. Each chunk keeps the timestamp it was
// loaded with (see LoadMCR); timestamp is only used for chunks that have
// none recorded yet, i.e. ones created fresh by LoadLog or installed with
// PutChunk.
func (rf *RegionFile) Write(w io.WriteSeeker, timestamp uint32) error {
	locs := make([]location, regionSide*regionSide)
	timestamps := make([]uint32, regionSide*regionSide)

	if _, err := w.Seek(headerBytes, io.SeekStart); err != nil {
		return err
	}
	nextSector := uint32(2)

	for key, c := range rf.chunks {
		payload, err := c.serialize()
		if err != nil {
			return err
		}
		body := make([]byte, 5+len(payload))
		binary.BigEndian.PutUint32(body[0:4], uint32(len(payload)+1))
		body[4] = sectorMethod
		copy(body[5:], payload)

		sectors := (len(body) + sectorSize - 1) / sectorSize
		if sectors > 255 {
			return fmt.Errorf("%w: chunk (%d,%d) needs %d sectors", ErrChunkTooLarge, key[0], key[1], sectors)
		}
		padded := make([]byte, sectors*sectorSize)
		copy(padded, body)
		if _, err := w.Write(padded); err != nil {
			return err
		}

		idx := key[1]*regionSide + key[0]
		locs[idx] = location{sector: nextSector, count: uint8(sectors)}
		ts := timestamp
		if loaded, ok := rf.timestamps[key]; ok {
			ts = loaded
		}
		timestamps[idx] = ts
		nextSector += uint32(sectors)
	}

	header := make([]byte, headerBytes)
	for i, loc := range locs {
		if loc.empty() {
			continue
		}
		binary.BigEndian.PutUint32(header[i*4:i*4+4], (loc.sector<<8)|uint32(loc.count))
	}
	for i, ts := range timestamps {
		if ts == 0 {
			continue
		}
		binary.BigEndian.PutUint32(header[headerBytes/2+i*4:headerBytes/2+i*4+4], ts)
	}
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := w.Write(header)
	return err
}
