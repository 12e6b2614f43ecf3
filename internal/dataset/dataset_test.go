package dataset

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFromRowsCoercesIntegers(t *testing.T) {
	data, err := FromRows([][]int{{0, 1}, {1, 0}}, [][]int8{{1}, {1}})
	if err != nil {
		t.Fatalf("from rows: %v", err)
	}
	if data.Len() != 2 || data.Attributes() != 2 || data.Outputs() != 1 {
		t.Fatalf("unexpected shape: len=%d attrs=%d outs=%d", data.Len(), data.Attributes(), data.Outputs())
	}
	if got := data.Inputs.At(0, 1); got != 1.0 {
		t.Fatalf("unexpected coerced value: got=%f want=1", got)
	}
}

func TestFromRowsRowMismatch(t *testing.T) {
	_, err := FromRows([][]float64{{0}, {1}}, [][]float64{{1}})
	if !errors.Is(err, ErrRowMismatch) {
		t.Fatalf("expected row mismatch error, got %v", err)
	}
}

func TestFromRowsRagged(t *testing.T) {
	_, err := FromRows([][]float64{{0, 1}, {1}}, [][]float64{{1}, {0}})
	if !errors.Is(err, ErrRagged) {
		t.Fatalf("expected ragged error, got %v", err)
	}
}

func TestFromRowsRejectsNaN(t *testing.T) {
	_, err := FromRows([][]float64{{math.NaN()}}, [][]float64{{1}})
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected non-finite error, got %v", err)
	}
}

func TestBuiltinDatasets(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, name := range ListBuiltins() {
		data, err := Builtin(name, rng)
		if err != nil {
			t.Fatalf("builtin %s: %v", name, err)
		}
		if err := data.Validate(); err != nil {
			t.Fatalf("builtin %s invalid: %v", name, err)
		}
	}
	if _, err := Builtin("missing", rng); err == nil {
		t.Fatal("expected unknown dataset error")
	}
}

func TestRandomClassificationOneHot(t *testing.T) {
	data, err := RandomClassification(rand.New(rand.NewSource(7)), 50, 3, 4)
	if err != nil {
		t.Fatalf("random classification: %v", err)
	}
	for i := 0; i < data.Len(); i++ {
		_, target := data.Row(i)
		sum := 0.0
		for _, v := range target {
			sum += v
		}
		if sum != 1 {
			t.Fatalf("row %d target is not one-hot: %v", i, target)
		}
	}
}

func TestReadCSVSkipsHeader(t *testing.T) {
	in := strings.NewReader("a,b,y\n0,0,0\n0,1,1\n\n1,0,1\n1,1,0\n")
	data, err := ReadCSV(in, 1)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if data.Len() != 4 || data.Attributes() != 2 || data.Outputs() != 1 {
		t.Fatalf("unexpected csv shape: len=%d attrs=%d outs=%d", data.Len(), data.Attributes(), data.Outputs())
	}
	if data.Targets.At(3, 0) != 0 {
		t.Fatalf("unexpected last target: %f", data.Targets.At(3, 0))
	}
}

func TestReadCSVBadRow(t *testing.T) {
	in := strings.NewReader("0,0,0\n0,x,1\n")
	if _, err := ReadCSV(in, 1); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadCSVNamesDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte("1,2,3\n4,5,6\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	data, err := LoadCSV(path, 2)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if data.Name != "table" || data.Outputs() != 2 {
		t.Fatalf("unexpected dataset: name=%s outputs=%d", data.Name, data.Outputs())
	}
}
