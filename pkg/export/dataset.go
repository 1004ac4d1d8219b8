package export

import "fmt"

// Dataset is a rendered-agnostic table: a header row, body rows and optional
// footer rows (totals) printed after the body.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  [][]string
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	for i, row := range d.Footer {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("footer row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}
