// Package report writes, reads and prints report tables.
package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/AustinArrington87/membrane/internal/model"
)

// DefaultDelimiter separates fields in report files.
const DefaultDelimiter = ','

// WriteError reports a report file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write report %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteDelimited writes the table with a header row and one line per period.
// The file is written next to its destination and renamed into place.
func WriteDelimited(path string, t model.Table, delim rune) error {
	if err := writeDelimited(path, t, delim); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func writeDelimited(path string, t model.Table, delim rune) error {
	if err := validDelimiter(delim); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	buffered := bufio.NewWriter(tmpFile)
	writer := csv.NewWriter(buffered)
	writer.Comma = delim
	if err := writer.Write(Header(t)); err != nil {
		return err
	}
	if err := writer.WriteAll(Cells(t)); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// ReadDelimited parses a report file written by WriteDelimited. Period bounds
// are restored at day precision.
func ReadDelimited(path string, delim rune) (model.Table, error) {
	if err := validDelimiter(delim); err != nil {
		return model.Table{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return model.Table{}, err
	}
	defer func() {
		_ = file.Close()
	}()

	reader := csv.NewReader(file)
	reader.Comma = delim
	records, err := reader.ReadAll()
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to read report: %w", err)
	}
	if len(records) == 0 {
		return model.Table{}, errors.New("report is empty")
	}
	header := records[0]
	if len(header) < 2 || header[0] != headerStartDate || header[1] != headerEndDate {
		return model.Table{}, fmt.Errorf("report header must start with %q and %q", headerStartDate, headerEndDate)
	}

	table := model.Table{Columns: append([]string(nil), header[2:]...)}
	for i, record := range records[1:] {
		line := i + 2
		start, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return model.Table{}, fmt.Errorf("line %d: invalid start date: %w", line, err)
		}
		end, err := time.Parse(dateLayout, record[1])
		if err != nil {
			return model.Table{}, fmt.Errorf("line %d: invalid end date: %w", line, err)
		}
		values := make([]int, 0, len(record)-2)
		for _, cell := range record[2:] {
			v, err := strconv.Atoi(cell)
			if err != nil {
				return model.Table{}, fmt.Errorf("line %d: invalid value %q", line, cell)
			}
			values = append(values, v)
		}
		table.Rows = append(table.Rows, model.Row{
			Period: model.Period{Start: start, End: end},
			Values: values,
		})
	}
	return table, nil
}

func validDelimiter(delim rune) error {
	switch delim {
	case 0, '\r', '\n', '"', utf8.RuneError:
		return fmt.Errorf("invalid delimiter %q", delim)
	}
	return nil
}
