// mcmerge combines loose or zipped region-file and maplog captures into an
// up-to-date set of .mcr region files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/subcommands"

	"github.com/euske/mcproxy/merge"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&mergeCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

type mergeCmd struct {
	output           string
	force            bool
	bboxX0, bboxZ0   int
	bboxX1, bboxZ1   int
	useBBox          bool
	offsetX, offsetZ int
}

func (*mergeCmd) Name() string     { return "merge" }
func (*mergeCmd) Synopsis() string { return "Merge region files and maplog captures into an output directory." }
func (*mergeCmd) Usage() string {
	return `merge [flags...] <input>...
Merge each <input> (a directory, a single .mcr/.maplog file, or a .zip
archive containing them) into -output, keyed by region coordinate.
`
}

func (c *mergeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "output", ".", "Directory to write merged .mcr files into")
	f.BoolVar(&c.force, "force", false, "Overwrite an existing single-source output instead of skipping it")
	f.BoolVar(&c.useBBox, "bbox", false, "Restrict the merge to the region given by -bbox-x0/-bbox-z0/-bbox-x1/-bbox-z1 (world coordinates)")
	f.IntVar(&c.bboxX0, "bbox-x0", 0, "Bounding box minimum X (world coordinate, inclusive)")
	f.IntVar(&c.bboxZ0, "bbox-z0", 0, "Bounding box minimum Z (world coordinate, inclusive)")
	f.IntVar(&c.bboxX1, "bbox-x1", 0, "Bounding box maximum X (world coordinate, exclusive)")
	f.IntVar(&c.bboxZ1, "bbox-z1", 0, "Bounding box maximum Z (world coordinate, exclusive)")
	f.IntVar(&c.offsetX, "offset-x", 0, "Shift every output region's X coordinate by -floor(offset-x/512)")
	f.IntVar(&c.offsetZ, "offset-z", 0, "Shift every output region's Z coordinate by -floor(offset-z/512)")
}

func (c *mergeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one <input> is required")
		return subcommands.ExitUsageError
	}
	if err := os.MkdirAll(c.output, 0755); err != nil {
		log.Printf("merge: creating output directory: %v", err)
		return subcommands.ExitFailure
	}

	m := &merge.Merger{
		Inputs:    f.Args(),
		OutputDir: c.output,
		Force:     c.force,
		OffsetX:   int32(c.offsetX),
		OffsetZ:   int32(c.offsetZ),
	}
	if c.useBBox {
		m.BBox = &merge.BBox{
			X0: int32(c.bboxX0), Z0: int32(c.bboxZ0),
			X1: int32(c.bboxX1), Z1: int32(c.bboxZ1),
		}
	}

	if err := m.Run(); err != nil {
		log.Printf("merge: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
