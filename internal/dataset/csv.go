package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LoadCSV reads a numeric table. A leading row that fails to parse is
// treated as a header; every other row must parse and match the first
// row's width.
func LoadCSV(path string) (*mat.Dense, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("dataset csv path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset csv %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) (*mat.Dense, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		values []float64
		width  int
		rows   int
		line   int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset csv row %d: %w", line+1, err)
		}
		line++

		parsed, err := parseRecord(record)
		if err != nil {
			if rows == 0 && line == 1 {
				continue
			}
			return nil, fmt.Errorf("parse dataset csv row %d: %w", line, err)
		}
		if rows == 0 {
			width = len(parsed)
		} else if len(parsed) != width {
			return nil, fmt.Errorf("dataset csv row %d has %d columns, want %d", line, len(parsed), width)
		}
		values = append(values, parsed...)
		rows++
	}
	if rows == 0 || width == 0 {
		return nil, fmt.Errorf("dataset csv has no numeric rows")
	}
	return mat.NewDense(rows, width, values), nil
}

func parseRecord(record []string) ([]float64, error) {
	out := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteCSV writes data with an x0..xN header, creating parent directories.
func WriteCSV(path string, data mat.Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeCSV(f, data, ""); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// EncodeCSV writes data as CSV. prefix names the header columns; an empty
// prefix uses "x".
func EncodeCSV(w io.Writer, data mat.Matrix, prefix string) error {
	if prefix == "" {
		prefix = "x"
	}
	rows, cols := data.Dims()
	writer := csv.NewWriter(w)
	header := make([]string, cols)
	for j := range header {
		header[j] = prefix + strconv.Itoa(j)
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(data.At(i, j), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
