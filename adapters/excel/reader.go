// Package excel loads numeric datasets from Excel and CSV files.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gomic/internal"
	apperrors "gomic/internal/errors"
	"gomic/ports"
)

// DataReader handles reading Excel and CSV files into a numeric matrix.
type DataReader struct {
	filePath  string
	sheetName string
	fileType  string // "xlsx" or "csv"
	logger    *internal.Logger
}

var _ ports.DatasetReader = (*DataReader)(nil)

// NewDataReader creates a reader that handles both Excel and CSV files.
// sheetName is only used for xlsx files; empty means "Sheet1".
func NewDataReader(filePath, sheetName string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &DataReader{
		filePath:  filePath,
		sheetName: sheetName,
		fileType:  fileType,
		logger:    internal.DefaultLogger,
	}
}

// ReadMatrix reads the file and converts every cell below the header row to
// float64. Rows containing a non-numeric or empty cell are skipped.
func (r *DataReader) ReadMatrix() ([]string, [][]float64, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, nil, apperrors.DataError(
			fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, nil, err
	}

	if len(rows) < 2 {
		return nil, nil, apperrors.DataError("file must have at least a header row and one data row")
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, h := range headerRow {
		headers[i] = strings.TrimSpace(h)
	}

	matrix := make([][]float64, 0, len(rows)-1)
	skipped := 0
	for i := 1; i < len(rows); i++ {
		row, ok := parseNumericRow(rows[i], len(headers))
		if !ok {
			skipped++
			continue
		}
		matrix = append(matrix, row)
	}

	if len(matrix) == 0 {
		return nil, nil, apperrors.DataError("no numeric data rows found")
	}
	if skipped > 0 {
		r.logger.Warn("Skipped %d non-numeric rows in %s", skipped, r.filePath)
	}
	r.logger.Info("Loaded %d rows x %d columns from %s", len(matrix), len(headers), r.filePath)

	return headers, matrix, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheetName)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read sheet %q", r.sheetName)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read CSV file")
	}
	return rows, nil
}

func parseNumericRow(cells []string, width int) ([]float64, bool) {
	if len(cells) < width {
		return nil, false
	}
	row := make([]float64, width)
	for j := 0; j < width; j++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(cells[j]), 64)
		if err != nil {
			return nil, false
		}
		row[j] = v
	}
	return row, true
}
