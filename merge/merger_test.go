package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/euske/mcproxy/region"
)

func writeRegionFile(t *testing.T, path string, rx, rz int32, blockID byte) {
	t.Helper()
	rf := region.NewRegionFile(rx, rz)
	c := region.NewChunk(rx*32, rz*32)
	for i := range c.Blocks {
		c.Blocks[i] = blockID
	}
	rf.PutChunk(0, 0, c)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := rf.Write(f, 1); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFastPathCopiesSingleMCRVerbatim(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in")
	os.Mkdir(src, 0755)
	writeRegionFile(t, filepath.Join(src, "r.0.0.mcr"), 0, 0, 0x07)

	outDir := filepath.Join(dir, "out")
	os.Mkdir(outDir, 0755)

	m := &Merger{Inputs: []string{src}, OutputDir: outDir}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := os.Open(filepath.Join(outDir, "r.0.0.mcr"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	loaded, err := region.LoadMCR(f, 0, 0)
	if err != nil {
		t.Fatalf("LoadMCR: %v", err)
	}
	c := loaded.Chunk(0, 0)
	if c == nil || c.Blocks[0] != 0x07 {
		t.Fatalf("expected copied chunk with block 0x07, got %+v", c)
	}
}

func TestFastPathSkipsWhenOutputExistsAndForceUnset(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in")
	os.Mkdir(src, 0755)
	writeRegionFile(t, filepath.Join(src, "r.0.0.mcr"), 0, 0, 0x07)

	outDir := filepath.Join(dir, "out")
	os.Mkdir(outDir, 0755)
	existing := filepath.Join(outDir, "r.0.0.mcr")
	os.WriteFile(existing, []byte("sentinel"), 0644)

	m := &Merger{Inputs: []string{src}, OutputDir: outDir}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, _ := os.ReadFile(existing)
	if string(data) != "sentinel" {
		t.Fatalf("expected untouched output, got %q", data)
	}
}

func TestBBoxFilterDropsNonOverlappingRegions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in")
	os.Mkdir(src, 0755)
	writeRegionFile(t, filepath.Join(src, "r.0.0.mcr"), 0, 0, 0x01)
	writeRegionFile(t, filepath.Join(src, "r.5.5.mcr"), 5, 5, 0x02)

	outDir := filepath.Join(dir, "out")
	os.Mkdir(outDir, 0755)

	m := &Merger{
		Inputs:    []string{src},
		OutputDir: outDir,
		BBox:      &BBox{X0: 0, Z0: 0, X1: 512, Z1: 512},
	}
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "r.0.0.mcr")); err != nil {
		t.Fatalf("expected r.0.0.mcr to be produced: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "r.5.5.mcr")); err == nil {
		t.Fatalf("expected r.5.5.mcr to be filtered out")
	}
}
