package merge

import "fmt"

// SchemaError indicates a required column is missing from an input table.
type SchemaError struct {
	Column string
	Side   string // "CP" or "DP"
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %s not found in %s batch data", e.Column, e.Side)
}

// CardinalityError indicates the CP and DP inputs disagree on row count.
// Image is empty for a whole-batch mismatch.
type CardinalityError struct {
	CPRows int
	DPRows int
	Image  string
}

func (e *CardinalityError) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("batch data have different number of rows (cells) for image %s: cp=%d dp=%d", e.Image, e.CPRows, e.DPRows)
	}
	return fmt.Sprintf("batch data have different number of rows (cells): cp=%d dp=%d", e.CPRows, e.DPRows)
}

// MissingCounterpartError indicates a CP batch file has no same-named DP
// batch file. It aborts the whole directory run.
type MissingCounterpartError struct {
	CPFile string
	Path   string // expected DP-side path
}

func (e *MissingCounterpartError) Error() string {
	return fmt.Sprintf("no DP counterpart for %s: %s does not exist", e.CPFile, e.Path)
}
