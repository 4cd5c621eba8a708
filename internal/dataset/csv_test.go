package dataset

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.csv")
	input := mat.NewDense(3, 2, []float64{1.5, -2, 0, 1e-9, 3.25, 7})
	require.NoError(t, WriteCSV(path, input))

	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	require.True(t, mat.Equal(input, loaded))
}

func TestReadCSVWithoutHeader(t *testing.T) {
	data, err := ReadCSV(strings.NewReader("1,2\n3,4\n"))
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, data.RawMatrix().Data)
}

func TestReadCSVRejectsRaggedAndBadRows(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2\n3\n"))
	require.ErrorContains(t, err, "columns")

	_, err = ReadCSV(strings.NewReader("1,2\nfoo,4\n"))
	require.ErrorContains(t, err, "row 2")

	_, err = ReadCSV(strings.NewReader("a,b\n"))
	require.Error(t, err)

	_, err = LoadCSV("  ")
	require.Error(t, err)
}
