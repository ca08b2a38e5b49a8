package merge

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/cellmerge/internal/fsutil"
	"github.com/banshee-data/cellmerge/internal/merge/report"
	"github.com/banshee-data/cellmerge/internal/monitoring"
	"github.com/banshee-data/cellmerge/internal/table"
)

// BatchRecord is one completed batch merge as recorded in a run manifest.
type BatchRecord struct {
	BatchID            string
	RunID              string
	BatchFile          string
	CPRows             int
	DPRows             int
	MergedRows         int
	Images             int
	MeanMatchDistance  float64
	MaxMatchDistance   float64
	DuplicateCPMatches int
	DurationMs         int64
	CreatedAt          int64
}

// ManifestStore persists batch records. Implemented by storage/sqlite.RunStore.
type ManifestStore interface {
	InsertBatch(rec *BatchRecord) error
}

// DirectoryOptions controls a directory-scale merge run.
type DirectoryOptions struct {
	// AssignIDs adds a Cell_UUID column to every merged batch.
	AssignIDs bool

	// Manifest, when non-nil, receives one BatchRecord per persisted batch.
	Manifest ManifestStore

	// RunID groups manifest records; generated when empty.
	RunID string

	// ReportDir, when non-empty, receives a match-distance histogram HTML
	// per batch.
	ReportDir string
}

// MergeDirectory merges every batch file in cpDir with its same-named
// counterpart in dpDir and writes the result under the same name in outDir,
// assigning cell identifiers.
func MergeDirectory(fsys fsutil.FileSystem, cpDir, dpDir, outDir string) error {
	return MergeDirectoryWithOptions(fsys, cpDir, dpDir, outDir, DirectoryOptions{AssignIDs: true})
}

// MergeDirectoryWithOptions is MergeDirectory with explicit options. Batch
// files are processed in sorted filename order, each to completion before the
// next begins. Any error aborts the run; batches already written to outDir
// are valid completed outputs.
func MergeDirectoryWithOptions(fsys fsutil.FileSystem, cpDir, dpDir, outDir string, opts DirectoryOptions) error {
	if err := fsys.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	if opts.ReportDir != "" {
		if err := fsys.MkdirAll(opts.ReportDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", opts.ReportDir, err)
		}
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	names, err := fsys.ReadDir(cpDir)
	if err != nil {
		return fmt.Errorf("list %s: %w", cpDir, err)
	}

	for _, name := range names {
		start := time.Now()

		dpPath := filepath.Join(dpDir, name)
		if !fsys.Exists(dpPath) {
			return &MissingCounterpartError{CPFile: name, Path: dpPath}
		}

		cpBatch, err := table.Load(fsys, filepath.Join(cpDir, name))
		if err != nil {
			return fmt.Errorf("load CP batch %s: %w", name, err)
		}
		dpBatch, err := table.Load(fsys, dpPath)
		if err != nil {
			return fmt.Errorf("load DP batch %s: %w", name, err)
		}

		merged, stats, err := MergeBatch(cpBatch, dpBatch, opts.AssignIDs)
		if err != nil {
			return fmt.Errorf("merge %s: %w", name, err)
		}

		if err := table.Save(fsys, merged, filepath.Join(outDir, name)); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		monitoring.Logf("merge: %s: %d rows across %d images in %s", name, stats.MergedRows, stats.Images, time.Since(start).Round(time.Millisecond))

		if opts.ReportDir != "" {
			if err := writeBatchReport(fsys, opts.ReportDir, name, stats); err != nil {
				return err
			}
		}
		if opts.Manifest != nil {
			summary := report.Summarize(stats.Distances)
			rec := &BatchRecord{
				RunID:              runID,
				BatchFile:          name,
				CPRows:             stats.CPRows,
				DPRows:             stats.DPRows,
				MergedRows:         stats.MergedRows,
				Images:             stats.Images,
				MeanMatchDistance:  summary.Mean,
				MaxMatchDistance:   summary.Max,
				DuplicateCPMatches: stats.DuplicateCPMatches,
				DurationMs:         time.Since(start).Milliseconds(),
			}
			if err := opts.Manifest.InsertBatch(rec); err != nil {
				return fmt.Errorf("record %s in manifest: %w", name, err)
			}
		}
	}
	return nil
}

func writeBatchReport(fsys fsutil.FileSystem, reportDir, name string, stats *BatchStats) error {
	f, err := fsys.Create(filepath.Join(reportDir, name+".html"))
	if err != nil {
		return fmt.Errorf("create report for %s: %w", name, err)
	}
	if err := report.WriteHistogram(f, "Match distances: "+name, stats.Distances); err != nil {
		f.Close()
		return fmt.Errorf("render report for %s: %w", name, err)
	}
	return f.Close()
}
