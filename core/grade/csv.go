package grade

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/grading"
)

// csv columns; only "student" is required, missing score columns leave scores absent
const (
	colStudent = "student"
	colMAC     = "mac"
	colPP      = "pp"
	colPT      = "pt"
	colNotes   = "notes"
)

// RowError locates a malformed CSV line (1-based, header included).
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return "line " + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *RowError) Cause() error { return e.Err }

// ReadRows parses batch rows from CSV with a header line naming its columns:
// student,mac,pp,pt,notes in any order. Empty cells are absent scores.
func ReadRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("empty file")
		}
		return nil, errors.Wrap(err, "reading header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols[colStudent]; !ok {
		return nil, errors.Errorf("missing %q column", colStudent)
	}

	cell := func(record []string, col string) string {
		if i, ok := cols[col]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}

		studentID, err := strconv.Atoi(cell(record, colStudent))
		if err != nil {
			return nil, &RowError{Line: line, Err: errors.Wrap(err, "student")}
		}
		row := Row{StudentID: studentID, Notes: cell(record, colNotes)}
		for col, comp := range map[string]grading.Component{
			colMAC: grading.ContinuousAssessment,
			colPP:  grading.WrittenTest1,
			colPT:  grading.WrittenTest2,
		} {
			score, err := grading.ParseScore(cell(record, col))
			if err != nil {
				return nil, &RowError{Line: line, Err: err}
			}
			row.Scores = row.Scores.With(comp, score)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
