// Package tsv writes the crosstab matrix as a tab separated table
package tsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ChrisMcGann/PlexQuant/pkg/crosstab"
)

// NA marks null cells
const NA = "NA"

// WriteMatrix writes a header of measurement names followed by one row per feature
func WriteMatrix(w io.Writer, m *crosstab.Matrix) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := append([]string{"Feature"}, m.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(m.Columns)+1)
	for i, row := range m.Rows {
		record[0] = row
		for j, c := range m.Cells[i] {
			if c.Valid {
				record[j+1] = strconv.FormatFloat(c.Value, 'g', -1, 64)
			} else {
				record[j+1] = NA
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrixFile writes the matrix to a file
func WriteMatrixFile(path string, m *crosstab.Matrix) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteMatrix(fh, m); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
