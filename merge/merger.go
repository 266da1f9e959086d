// Package merge implements the region-file merge tool: combining a
// sequence of loose or zipped .mcr/.maplog inputs, keyed by region
// coordinate, into one up-to-date set of output region files.
package merge

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/euske/mcproxy/region"
)

var nameRE = regexp.MustCompile(`(?i)^r\.(-?\d+)\.(-?\d+)\.(mcr|maplog)$`)

// source is one located input file: either a path on disk or a member of a
// zip archive opened alongside it.
type source struct {
	rx, rz int32
	kind   string // "mcr" or "maplog"
	open   func() (io.ReadCloser, error)
	name   string // for logging
}

// BBox is an inclusive-exclusive world-space filter: a region is kept only
// if its [rx*512, (rx+1)*512) x [rz*512, (rz+1)*512) extent overlaps it.
type BBox struct {
	X0, Z0, X1, Z1 int32
}

func (b *BBox) overlaps(rx, rz int32) bool {
	if b == nil {
		return true
	}
	rxLo, rxHi := rx*512, rx*512+512
	rzLo, rzHi := rz*512, rz*512+512
	return rxLo < b.X1 && b.X0 < rxHi && rzLo < b.Z1 && b.Z0 < rzHi
}

// Merger merges a list of loose paths and/or zip containers into an output
// directory.
type Merger struct {
	Inputs    []string
	OutputDir string
	BBox      *BBox

	// OffsetX and OffsetZ shift every output region's coordinate by
	// -floor(offset/512), independently per axis (see DESIGN.md for why
	// these are two independent fields rather than one combined offset).
	OffsetX, OffsetZ int32

	Force  bool
	Logger *log.Logger
}

func (m *Merger) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.Default()
}

// Run performs the merge: groups all located inputs by region coordinate,
// applies the bounding-box filter and coordinate offset, then merges each
// group per the policy in Merger.mergeGroup.
func (m *Merger) Run() error {
	sources, err := m.collect()
	if err != nil {
		return err
	}

	groups := make(map[[2]int32][]source)
	for _, s := range sources {
		if !m.BBox.overlaps(s.rx, s.rz) {
			continue
		}
		outRX := s.rx - floorDiv(m.OffsetX, 512)
		outRZ := s.rz - floorDiv(m.OffsetZ, 512)
		key := [2]int32{outRX, outRZ}
		groups[key] = append(groups[key], s)
	}

	keys := make([][2]int32, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	for _, key := range keys {
		if err := m.mergeGroup(key[0], key[1], groups[key]); err != nil {
			return fmt.Errorf("merge: region (%d,%d): %w", key[0], key[1], err)
		}
	}
	return nil
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (m *Merger) outputPath(rx, rz int32) string {
	return filepath.Join(m.OutputDir, fmt.Sprintf("r.%d.%d.mcr", rx, rz))
}

// mergeGroup applies the policy of spec.md §4.E to one region's inputs.
func (m *Merger) mergeGroup(rx, rz int32, sources []source) error {
	var mcrs, maplogs []source
	for _, s := range sources {
		if s.kind == "mcr" {
			mcrs = append(mcrs, s)
		} else {
			maplogs = append(maplogs, s)
		}
	}

	out := m.outputPath(rx, rz)

	if len(maplogs) == 0 && len(mcrs) == 1 {
		if !m.Force {
			if _, err := os.Stat(out); err == nil {
				m.logger().Printf("merge: %s exists, skipping (no merge needed)", out)
				return nil
			}
		}
		return copyFile(mcrs[0], out)
	}

	rf := region.NewRegionFile(rx, rz)
	for _, s := range mcrs {
		if err := loadMCRSource(rf, s); err != nil {
			return err
		}
	}
	for _, s := range maplogs {
		rc, err := s.open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", s.name, err)
		}
		err = rf.LoadLog(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("applying %s: %w", s.name, err)
		}
	}

	if _, err := os.Stat(out); err == nil {
		old := out + ".old"
		if err := os.Rename(out, old); err != nil {
			return fmt.Errorf("renaming existing %s to %s: %w", out, old, err)
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()
	return rf.Write(f, uint32(time.Now().Unix()))
}

func loadMCRSource(rf *region.RegionFile, s source) error {
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.name, err)
	}
	loaded, err := region.LoadMCR(sliceReaderAt(data), rf.RX, rf.RZ)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", s.name, err)
	}
	for z := 0; z < 32; z++ {
		for x := 0; x < 32; x++ {
			if c := loaded.Chunk(x, z); c != nil {
				rf.PutChunk(x, z, c)
			}
		}
	}
	return nil
}

type sliceReaderAt []byte

func (s sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s)) {
		return 0, io.EOF
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func copyFile(s source, dst string) error {
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.name, err)
	}
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer f.Close()
	_, err = io.Copy(f, rc)
	return err
}

// collect walks every input path, treating .zip files as containers whose
// members are matched by name, and everything else as a loose directory
// tree or individual file.
func (m *Merger) collect() ([]source, error) {
	var sources []source
	for _, in := range m.Inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(in), ".zip") {
			zs, err := collectZip(in)
			if err != nil {
				return nil, err
			}
			sources = append(sources, zs...)
			continue
		}
		ls, err := collectLoose(in, info)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ls...)
	}
	return sources, nil
}

func collectLoose(path string, info os.FileInfo) ([]source, error) {
	var sources []source
	if !info.IsDir() {
		if s, ok := sourceFromName(filepath.Base(path), func() (io.ReadCloser, error) {
			return os.Open(path)
		}, path); ok {
			sources = append(sources, s)
		}
		return sources, nil
	}
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if s, ok := sourceFromName(d.Name(), func() (io.ReadCloser, error) {
			return os.Open(p)
		}, p); ok {
			sources = append(sources, s)
		}
		return nil
	})
	return sources, err
}

func collectZip(path string) ([]source, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("merge: opening zip %s: %w", path, err)
	}
	var sources []source
	for _, f := range zr.File {
		f := f
		if s, ok := sourceFromName(filepath.Base(f.Name), func() (io.ReadCloser, error) {
			return f.Open()
		}, path+"!"+f.Name); ok {
			sources = append(sources, s)
		}
	}
	return sources, nil
}

func sourceFromName(name string, open func() (io.ReadCloser, error), label string) (source, bool) {
	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		return source{}, false
	}
	rx, _ := strconv.ParseInt(m[1], 10, 32)
	rz, _ := strconv.ParseInt(m[2], 10, 32)
	return source{
		rx: int32(rx), rz: int32(rz),
		kind: strings.ToLower(m[3]),
		open: open,
		name: label,
	}, true
}
