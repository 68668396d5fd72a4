package grade

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core/grading"
)

func TestReadRows(t *testing.T) {
	data := "student,mac,pp,pt,notes\n" +
		"1, 12, 14.5, 11,\n" +
		"2,,9,,absent for mac\n" +
		"3,20,20,20,top\n"

	rows, err := ReadRows(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].StudentID)
	assert.Equal(t, "14.50", grading.FormatScore(rows[0].Scores.WrittenTest1))
	assert.True(t, rows[0].Scores.Complete())

	assert.False(t, rows[1].Scores.ContinuousAssessment.Valid)
	assert.Equal(t, "9.00", grading.FormatScore(rows[1].Scores.WrittenTest1))
	assert.False(t, rows[1].Scores.WrittenTest2.Valid)
	assert.Equal(t, "absent for mac", rows[1].Notes)

	assert.Equal(t, "top", rows[2].Notes)
}

func TestReadRows_columnsInAnyOrder(t *testing.T) {
	rows, err := ReadRows(strings.NewReader("PT,Student,MAC\n10,7,15\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7, rows[0].StudentID)
	assert.Equal(t, "15.00", grading.FormatScore(rows[0].Scores.ContinuousAssessment))
	assert.False(t, rows[0].Scores.WrittenTest1.Valid)
	assert.Equal(t, "10.00", grading.FormatScore(rows[0].Scores.WrittenTest2))
}

func TestReadRows_errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantLine int // 0 = not a RowError
	}{
		{name: "empty file", data: ""},
		{name: "no student column", data: "mac,pp,pt\n1,2,3\n"},
		{name: "bad student", data: "student,mac\nabc,12\n", wantLine: 2},
		{name: "bad score", data: "student,mac\n1,12\n2,twelve\n", wantLine: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRows(strings.NewReader(tt.data))
			require.Error(t, err)
			rErr, ok := err.(*RowError)
			if tt.wantLine == 0 {
				assert.False(t, ok, "ReadRows() error = %v, want a file level error", err)
				return
			}
			if assert.True(t, ok, "ReadRows() error = %v, want *RowError", err) {
				assert.Equal(t, tt.wantLine, rErr.Line)
			}
		})
	}
}
