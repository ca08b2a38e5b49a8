package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cellmerge/internal/fsutil"
	"github.com/banshee-data/cellmerge/internal/table"
)

// captureManifest records batch records in memory.
type captureManifest struct {
	recs []*BatchRecord
}

func (c *captureManifest) InsertBatch(rec *BatchRecord) error {
	c.recs = append(c.recs, rec)
	return nil
}

func writeBatch(t *testing.T, fsys fsutil.FileSystem, path string, cols []string, rows ...[]string) {
	t.Helper()
	tbl := table.New(cols...)
	for _, r := range rows {
		require.NoError(t, tbl.AppendRow(r))
	}
	require.NoError(t, table.Save(fsys, tbl, path))
}

func TestMergeDirectoryEndToEnd(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	writeBatch(t, mfs, "/cp/batch_0.csv.gz", cpCols,
		[]string{"img1", "10.4", "10.9", "a1"},
		[]string{"img1", "50.0", "50.0", "a2"},
	)
	writeBatch(t, mfs, "/dp/batch_0.csv.gz", dpCols,
		[]string{"img1", "11.0", "10.0", "f1"},
		[]string{"img1", "49.0", "51.0", "f2"},
	)
	writeBatch(t, mfs, "/cp/batch_1.csv.gz", cpCols,
		[]string{"img2", "3.0", "4.0", "a3"},
	)
	writeBatch(t, mfs, "/dp/batch_1.csv.gz", dpCols,
		[]string{"img2", "3.0", "4.0", "f3"},
	)

	manifest := &captureManifest{}
	err := MergeDirectoryWithOptions(mfs, "/cp", "/dp", "/merged", DirectoryOptions{
		AssignIDs: true,
		Manifest:  manifest,
		RunID:     "run-1",
		ReportDir: "/reports",
	})
	require.NoError(t, err)

	merged0, err := table.Load(mfs, "/merged/batch_0.csv.gz")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{ColCellID, ColImage, ColCenterX, ColCenterY, "CP__AreaShape_Area", "DP__Efficientnet_0"},
		merged0.Columns())
	assert.Equal(t, 2, merged0.NumRows())

	merged1, err := table.Load(mfs, "/merged/batch_1.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, 1, merged1.NumRows())

	require.Len(t, manifest.recs, 2)
	assert.Equal(t, "batch_0.csv.gz", manifest.recs[0].BatchFile)
	assert.Equal(t, "run-1", manifest.recs[0].RunID)
	assert.Equal(t, 2, manifest.recs[0].MergedRows)
	assert.Equal(t, 1, manifest.recs[0].Images)
	assert.Greater(t, manifest.recs[0].MeanMatchDistance, 0.0)
	assert.Equal(t, "batch_1.csv.gz", manifest.recs[1].BatchFile)

	assert.True(t, mfs.Exists("/reports/batch_0.csv.gz.html"))
	assert.True(t, mfs.Exists("/reports/batch_1.csv.gz.html"))
}

func TestMergeDirectoryMissingCounterpart(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	writeBatch(t, mfs, "/cp/a.csv.gz", cpCols, []string{"img1", "1", "1", "a"})
	writeBatch(t, mfs, "/cp/b.csv.gz", cpCols, []string{"img2", "2", "2", "b"})
	writeBatch(t, mfs, "/dp/a.csv.gz", dpCols, []string{"img1", "1", "1", "f"})

	err := MergeDirectory(mfs, "/cp", "/dp", "/merged")

	var missing *MissingCounterpartError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "b.csv.gz", missing.CPFile)

	// Files are processed in sorted order, so a.csv.gz completed first.
	assert.True(t, mfs.Exists("/merged/a.csv.gz"))
	assert.False(t, mfs.Exists("/merged/b.csv.gz"))
}

func TestMergeDirectoryAbortsOnBadBatch(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	writeBatch(t, mfs, "/cp/a.csv.gz", cpCols,
		[]string{"img1", "1", "1", "a1"},
		[]string{"img1", "2", "2", "a2"},
	)
	writeBatch(t, mfs, "/dp/a.csv.gz", dpCols,
		[]string{"img1", "1", "1", "f1"},
	)

	err := MergeDirectory(mfs, "/cp", "/dp", "/merged")

	var cardErr *CardinalityError
	require.ErrorAs(t, err, &cardErr)
	assert.False(t, mfs.Exists("/merged/a.csv.gz"))
}

func TestMergeDirectoryMissingSourceDir(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()

	err := MergeDirectory(mfs, "/cp", "/dp", "/merged")
	assert.Error(t, err)
}

func TestMergeDirectoryCreatesOutputDir(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/cp", 0o755))

	require.NoError(t, MergeDirectory(mfs, "/cp", "/dp", "/deep/nested/out"))
	assert.True(t, mfs.Exists("/deep/nested/out"))
}
