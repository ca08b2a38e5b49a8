// Command cellmerge merges per-cell CP and DP feature batch files from two
// directories into a unified batch directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/cellmerge/internal/fsutil"
	"github.com/banshee-data/cellmerge/internal/merge"
	"github.com/banshee-data/cellmerge/internal/monitoring"
	"github.com/banshee-data/cellmerge/internal/storage/sqlite"
)

var (
	cpDir     = flag.String("cp", "", "Directory with CP batch output files")
	dpDir     = flag.String("dp", "", "Directory with DP batch output files")
	outDir    = flag.String("out", "", "Directory to write merged batch files")
	manifest  = flag.String("manifest", "", "Optional sqlite manifest database path")
	reportDir = flag.String("report", "", "Optional directory for per-batch match-distance reports")
	noUUID    = flag.Bool("no-uuid", false, "Do not add a Cell_UUID column to merged rows")
	quiet     = flag.Bool("quiet", false, "Suppress per-batch progress logging")
)

func main() {
	flag.Parse()

	if *cpDir == "" || *dpDir == "" || *outDir == "" {
		fmt.Fprintln(os.Stderr, "cellmerge: -cp, -dp and -out are required")
		flag.Usage()
		os.Exit(2)
	}

	opts := merge.DirectoryOptions{
		AssignIDs: !*noUUID,
		ReportDir: *reportDir,
	}
	if *manifest != "" {
		store, err := sqlite.Open(*manifest)
		if err != nil {
			log.Fatalf("cellmerge: %v", err)
		}
		defer store.Close()
		opts.Manifest = store
	}

	run := func() error {
		return merge.MergeDirectoryWithOptions(fsutil.OSFileSystem{}, *cpDir, *dpDir, *outDir, opts)
	}

	var err error
	if *quiet {
		monitoring.Muted(func() { err = run() })
	} else {
		err = run()
	}
	if err != nil {
		log.Fatalf("cellmerge: %v", err)
	}
}
