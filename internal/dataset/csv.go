package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LoadCSV reads a numeric table whose trailing targetColumns fields are targets.
// A non-numeric first row is treated as a header and skipped.
func LoadCSV(path string, targetColumns int) (Dataset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Dataset{}, errors.New("csv path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "open csv %s", path)
	}
	defer f.Close()

	data, err := ReadCSV(f, targetColumns)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "load csv %s", path)
	}
	data.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return data, nil
}

func ReadCSV(in io.Reader, targetColumns int) (Dataset, error) {
	if targetColumns <= 0 {
		return Dataset{}, errors.Errorf("target columns must be > 0, got %d", targetColumns)
	}
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var inputs, targets [][]float64
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, errors.Wrapf(err, "read csv row %d", row+1)
		}
		row++
		if blankRecord(record) {
			continue
		}
		if len(record) <= targetColumns {
			return Dataset{}, errors.Errorf("csv row %d has %d fields, need more than %d", row, len(record), targetColumns)
		}

		values, err := parseRecord(record)
		if err != nil {
			if row == 1 {
				continue
			}
			return Dataset{}, errors.Wrapf(err, "parse csv row %d", row)
		}
		split := len(values) - targetColumns
		inputs = append(inputs, values[:split])
		targets = append(targets, values[split:])
	}
	if len(inputs) == 0 {
		return Dataset{}, ErrEmpty
	}
	return FromRows(inputs, targets)
}

func parseRecord(record []string) ([]float64, error) {
	values := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
