// Package merge joins per-cell feature tables produced by the CP and DP
// extraction pipelines into one unified table per batch.
//
// The two pipelines segment cells independently, so their rows carry no
// shared identifier; rows are paired within each image by nearest centroid.
// Matching is greedy without mutual exclusivity: each DP row takes the
// closest CP row, a CP row may be claimed by more than one DP row, and an
// unclaimed CP row is dropped from the output. This relies on the two
// segmentations being close enough that nearest-neighbor coincides with true
// correspondence; replacing it with optimal bipartite assignment would change
// output on pathological inputs and is deliberately not done.
package merge

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/cellmerge/internal/monitoring"
	"github.com/banshee-data/cellmerge/internal/table"
)

// Column names shared with the upstream pipelines.
const (
	ColCenterX = "Location_Center_X"
	ColCenterY = "Location_Center_Y"
	ColImage   = "Metadata_DNA"
	ColCellID  = "Cell_UUID"
)

const (
	cpPrefix = "CP__"
	dpPrefix = "DP__"
)

// BatchStats summarizes one batch merge for reporting and bookkeeping.
type BatchStats struct {
	CPRows             int
	DPRows             int
	MergedRows         int
	Images             int
	Distances          []float64 // nearest-centroid distance per DP row
	DuplicateCPMatches int       // extra claims on CP rows matched more than once
}

type imageStats struct {
	distances          []float64
	duplicateCPMatches int
}

// MatchAndMergeImage merges one image's worth of CP and DP rows. Exclusive
// feature columns are namespaced with CP__/DP__ prefixes, metadata columns
// (names present in both inputs) are kept once from the CP side, and each DP
// row is joined to the CP row with the nearest centroid. Both inputs are
// modified in place (column renames, centroid overwrites).
func MatchAndMergeImage(cpRows, dpRows *table.Table, metadataColumns []string) (*table.Table, error) {
	merged, _, err := matchAndMergeImage(cpRows, dpRows, metadataColumns)
	return merged, err
}

func matchAndMergeImage(cpRows, dpRows *table.Table, metadataColumns []string) (*table.Table, imageStats, error) {
	var stats imageStats

	// Fail fast on schema before any matching work.
	if !cpRows.HasColumn(ColImage) {
		return nil, stats, &SchemaError{Column: ColImage, Side: "CP"}
	}

	meta := make(map[string]bool, len(metadataColumns))
	for _, c := range metadataColumns {
		meta[c] = true
	}

	// Namespace the exclusive feature columns; metadata keeps its name.
	cpRename := make(map[string]string)
	for _, c := range cpRows.Columns() {
		if !meta[c] {
			cpRename[c] = cpPrefix + c
		}
	}
	cpRows.RenameColumns(cpRename)

	dpRename := make(map[string]string)
	for _, c := range dpRows.Columns() {
		if !meta[c] {
			dpRename[c] = dpPrefix + c
		}
	}
	dpRows.RenameColumns(dpRename)

	cpX, cpY, err := centroids(cpRows, "CP")
	if err != nil {
		return nil, stats, err
	}
	dpX, dpY, err := centroids(dpRows, "DP")
	if err != nil {
		return nil, stats, err
	}

	// For every DP row, pick the CP row with the minimal Euclidean centroid
	// distance. Ties go to the first minimum in CP row order, which keeps the
	// result reproducible for identical input ordering.
	keyX := make([]int, dpRows.NumRows())
	keyY := make([]int, dpRows.NumRows())
	claims := make([]int, cpRows.NumRows())
	stats.distances = make([]float64, dpRows.NumRows())
	for j := 0; j < dpRows.NumRows(); j++ {
		best := -1
		bestDist := math.Inf(1)
		for i := 0; i < cpRows.NumRows(); i++ {
			d := math.Hypot(float64(cpX[i]-dpX[j]), float64(cpY[i]-dpY[j]))
			if d < bestDist {
				best = i
				bestDist = d
			}
		}
		if best < 0 {
			return nil, stats, fmt.Errorf("no CP rows to match %d DP rows against", dpRows.NumRows())
		}
		keyX[j] = cpX[best]
		keyY[j] = cpY[best]
		claims[best]++
		stats.distances[j] = bestDist
	}
	for _, c := range claims {
		if c > 1 {
			stats.duplicateCPMatches += c - 1
		}
	}
	if stats.duplicateCPMatches > 0 {
		monitoring.Logf("merge: %d duplicate CP matches (nearest-neighbor matching is not exclusive)", stats.duplicateCPMatches)
	}

	// DP contributes only its namespaced feature columns; CP metadata is
	// authoritative for the merged record.
	var dpFeatureCols []string
	for _, c := range dpRows.Columns() {
		if !meta[c] {
			dpFeatureCols = append(dpFeatureCols, c)
		}
	}

	// Join on equality of the matched CP centroid value, CP-major. A CP row
	// whose centroid never appears as a match key is dropped.
	out := table.New(append(cpRows.Columns(), dpFeatureCols...)...)
	for i := 0; i < cpRows.NumRows(); i++ {
		for j := 0; j < dpRows.NumRows(); j++ {
			if keyX[j] != cpX[i] || keyY[j] != cpY[i] {
				continue
			}
			row := cpRows.Row(i)
			for _, c := range dpFeatureCols {
				row = append(row, dpRows.Cell(c, j))
			}
			if err := out.AppendRow(row); err != nil {
				return nil, stats, err
			}
		}
	}
	return out, stats, nil
}

// centroids reads the integer centroid coordinates of every row.
func centroids(t *table.Table, side string) (xs, ys []int, err error) {
	for _, col := range []string{ColCenterX, ColCenterY} {
		if !t.HasColumn(col) {
			return nil, nil, &SchemaError{Column: col, Side: side}
		}
	}
	xs = make([]int, t.NumRows())
	ys = make([]int, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		if xs[i], err = t.IntCell(ColCenterX, i); err != nil {
			return nil, nil, fmt.Errorf("%s centroid: %w", side, err)
		}
		if ys[i], err = t.IntCell(ColCenterY, i); err != nil {
			return nil, nil, fmt.Errorf("%s centroid: %w", side, err)
		}
	}
	return xs, ys, nil
}

// MergeBatch merges one batch's worth of CP and DP rows across all images.
// Centroid columns are coerced to integers in place, rows are grouped by the
// image column in CP first-appearance order, each group is merged with
// MatchAndMergeImage, and the results are concatenated and renumbered. When
// assignIDs is set, a Cell_UUID column with a fresh random identifier per row
// is prepended; reruns therefore produce different identifiers.
func MergeBatch(cpBatch, dpBatch *table.Table, assignIDs bool) (*table.Table, *BatchStats, error) {
	for _, in := range []struct {
		t    *table.Table
		side string
	}{{cpBatch, "CP"}, {dpBatch, "DP"}} {
		for _, col := range []string{ColCenterX, ColCenterY} {
			if !in.t.HasColumn(col) {
				return nil, nil, &SchemaError{Column: col, Side: in.side}
			}
		}
		if err := in.t.CoerceIntColumns(ColCenterX, ColCenterY); err != nil {
			return nil, nil, fmt.Errorf("%s centroid columns: %w", in.side, err)
		}
	}

	if cpBatch.NumRows() != dpBatch.NumRows() {
		return nil, nil, &CardinalityError{CPRows: cpBatch.NumRows(), DPRows: dpBatch.NumRows()}
	}
	if !cpBatch.HasColumn(ColImage) {
		return nil, nil, &SchemaError{Column: ColImage, Side: "CP"}
	}
	if !dpBatch.HasColumn(ColImage) {
		return nil, nil, &SchemaError{Column: ColImage, Side: "DP"}
	}

	// Metadata columns are the names common to both tables, in CP order.
	var metadataColumns []string
	meta := make(map[string]bool)
	for _, c := range cpBatch.Columns() {
		if dpBatch.HasColumn(c) {
			metadataColumns = append(metadataColumns, c)
			meta[c] = true
		}
	}

	// Output schema: CP columns (exclusives namespaced) then DP exclusives.
	var outCols []string
	for _, c := range cpBatch.Columns() {
		if meta[c] {
			outCols = append(outCols, c)
		} else {
			outCols = append(outCols, cpPrefix+c)
		}
	}
	for _, c := range dpBatch.Columns() {
		if !meta[c] {
			outCols = append(outCols, dpPrefix+c)
		}
	}

	stats := &BatchStats{CPRows: cpBatch.NumRows(), DPRows: dpBatch.NumRows()}

	merged := table.New(outCols...)
	for _, image := range imageOrder(cpBatch) {
		cpImage := cpBatch.FilterRows(func(row int) bool { return cpBatch.Cell(ColImage, row) == image })
		dpImage := dpBatch.FilterRows(func(row int) bool { return dpBatch.Cell(ColImage, row) == image })
		if cpImage.NumRows() != dpImage.NumRows() {
			return nil, nil, &CardinalityError{CPRows: cpImage.NumRows(), DPRows: dpImage.NumRows(), Image: image}
		}

		mergedImage, imgStats, err := matchAndMergeImage(cpImage, dpImage, metadataColumns)
		if err != nil {
			return nil, nil, fmt.Errorf("image %s: %w", image, err)
		}
		if err := merged.Append(mergedImage); err != nil {
			return nil, nil, fmt.Errorf("image %s: %w", image, err)
		}
		stats.Images++
		stats.Distances = append(stats.Distances, imgStats.distances...)
		stats.DuplicateCPMatches += imgStats.duplicateCPMatches
	}
	stats.MergedRows = merged.NumRows()

	if assignIDs {
		ids := make([]string, merged.NumRows())
		for i := range ids {
			ids[i] = uuid.New().String()
		}
		if err := merged.InsertColumnFront(ColCellID, ids); err != nil {
			return nil, nil, err
		}
	}
	return merged, stats, nil
}

// imageOrder returns the distinct image identifiers in first-appearance order.
func imageOrder(t *table.Table) []string {
	seen := make(map[string]bool)
	var images []string
	for i := 0; i < t.NumRows(); i++ {
		img := t.Cell(ColImage, i)
		if !seen[img] {
			seen[img] = true
			images = append(images, img)
		}
	}
	return images
}
