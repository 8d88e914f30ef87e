package ports

// DatasetReader loads a numeric matrix (rows = time steps, columns =
// variables) from an external source.
type DatasetReader interface {
	// ReadMatrix returns column headers and the data rows.
	ReadMatrix() ([]string, [][]float64, error)
}
