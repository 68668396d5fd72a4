package grading

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var none = decimal.NullDecimal{}

func scores(mac, pp, pt decimal.NullDecimal) SubScores {
	return SubScores{ContinuousAssessment: mac, WrittenTest1: pp, WrittenTest2: pt}
}

func TestComputePeriodResult(t *testing.T) {
	tests := []struct {
		name      string
		scores    SubScores
		wantAvg   string // "" = ungraded
		wantClass Classification
	}{
		{name: "mixed scores", scores: scores(Score(14), Score(13.5), Score(15)), wantAvg: "14.17", wantClass: VeryGood},
		{name: "all zero is graded", scores: scores(Score(0), Score(0), Score(0)), wantAvg: "0.00", wantClass: Insufficient},
		{name: "all twenty", scores: scores(Score(20), Score(20), Score(20)), wantAvg: "20.00", wantClass: Excellent},
		{name: "half rounds up", scores: scores(Score(14.995), Score(14.995), Score(14.995)), wantAvg: "15.00", wantClass: VeryGood},
		{name: "thirds round down", scores: scores(Score(10), Score(10), Score(11)), wantAvg: "10.33", wantClass: Sufficient},
		{name: "two thirds round up", scores: scores(Score(10), Score(11), Score(11)), wantAvg: "10.67", wantClass: Sufficient},
		{name: "missing mac", scores: scores(none, Score(12), Score(12))},
		{name: "missing pp", scores: scores(Score(12), none, Score(12))},
		{name: "missing pt", scores: scores(Score(12), Score(12), none)},
		{name: "nothing entered", scores: SubScores{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePeriodResult(tt.scores)
			require.NoError(t, err)
			if tt.wantAvg == "" {
				assert.False(t, got.Graded(), "ComputePeriodResult() should be ungraded")
				assert.Equal(t, Classification(""), got.Classification)
				return
			}
			assert.True(t, got.Graded())
			if s := got.Average.Decimal.StringFixed(Precision); s != tt.wantAvg {
				t.Errorf("ComputePeriodResult().Average = %v, want %v", s, tt.wantAvg)
			}
			assert.Equal(t, tt.wantClass, got.Classification)
		})
	}
}

func TestComputePeriodResult_range(t *testing.T) {
	tests := []struct {
		name      string
		scores    SubScores
		wantComp  Component
		wantValid bool
	}{
		{name: "negative mac", scores: scores(Score(-0.01), Score(10), Score(10)), wantComp: ContinuousAssessment},
		{name: "pp above max", scores: scores(Score(10), Score(20.01), Score(10)), wantComp: WrittenTest1},
		{name: "pt above max with others missing", scores: scores(none, none, Score(21)), wantComp: WrittenTest2},
		{name: "bounds are inclusive", scores: scores(Score(0), Score(20), Score(20)), wantValid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputePeriodResult(tt.scores)
			if tt.wantValid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidScoreRange), "ComputePeriodResult() error = %v, want %v", err, ErrInvalidScoreRange)
			var rErr *RangeError
			if assert.True(t, errors.As(err, &rErr)) {
				assert.Equal(t, tt.wantComp, rErr.Component)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		avg  string
		want Classification
	}{
		{"0", Insufficient},
		{"9.99", Insufficient},
		{"10", Sufficient},
		{"11.99", Sufficient},
		{"12", Good},
		{"13.99", Good},
		{"14", VeryGood},
		{"16.99", VeryGood},
		{"17", Excellent},
		{"20", Excellent},
	}
	for _, tt := range tests {
		t.Run(tt.avg, func(t *testing.T) {
			if got := Classify(decimal.RequireFromString(tt.avg)); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}

			// the same boundary reached through a full period
			v := decimal.NewNullDecimal(decimal.RequireFromString(tt.avg))
			res, err := ComputePeriodResult(scores(v, v, v))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Classification)
		})
	}
}

func TestComputeYearResult(t *testing.T) {
	tests := []struct {
		name        string
		averages    []decimal.NullDecimal
		wantAvg     string // "" = pending
		wantVerdict Verdict
		wantGraded  int
	}{
		{name: "no periods"},
		{name: "all ungraded", averages: []decimal.NullDecimal{none, none, none}},
		{name: "three periods", averages: []decimal.NullDecimal{Score(12), Score(8), Score(14)}, wantAvg: "11.33", wantVerdict: Approved, wantGraded: 3},
		{name: "ungraded excluded not zeroed", averages: []decimal.NullDecimal{Score(8), Score(9), none}, wantAvg: "8.50", wantVerdict: Failed, wantGraded: 2},
		{name: "single period", averages: []decimal.NullDecimal{none, Score(15.5), none}, wantAvg: "15.50", wantVerdict: Approved, wantGraded: 1},
		{name: "exactly pass mark", averages: []decimal.NullDecimal{Score(9), Score(11)}, wantAvg: "10.00", wantVerdict: Approved, wantGraded: 2},
		{name: "just below pass mark", averages: []decimal.NullDecimal{Score(9.99), Score(9.99), Score(9.99)}, wantAvg: "9.99", wantVerdict: Failed, wantGraded: 3},
		{name: "mean rounds half up", averages: []decimal.NullDecimal{Score(9.99), Score(10)}, wantAvg: "10.00", wantVerdict: Approved, wantGraded: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods := make([]PeriodResult, 0, len(tt.averages))
			for _, avg := range tt.averages {
				periods = append(periods, PeriodResult{Average: avg})
			}
			got := ComputeYearResult(periods)

			if tt.wantAvg == "" {
				assert.Equal(t, YearResult{}, got)
				return
			}
			if s := got.FinalAverage.Decimal.StringFixed(Precision); s != tt.wantAvg {
				t.Errorf("ComputeYearResult().FinalAverage = %v, want %v", s, tt.wantAvg)
			}
			assert.Equal(t, tt.wantVerdict, got.Verdict)
			assert.Equal(t, tt.wantGraded, got.PeriodsGraded)
			assert.Equal(t, Classify(got.FinalAverage.Decimal), got.Classification)
		})
	}
}

func TestComputeYearResult_orderIndependent(t *testing.T) {
	a := []PeriodResult{{Average: Score(12.25)}, {Average: none}, {Average: Score(7.5)}, {Average: Score(16)}}
	b := []PeriodResult{a[3], a[1], a[0], a[2]}

	ra, rb := ComputeYearResult(a), ComputeYearResult(b)
	assert.True(t, ra.FinalAverage.Decimal.Equal(rb.FinalAverage.Decimal))
	assert.Equal(t, ra.Verdict, rb.Verdict)
}

func TestComputePeriodResult_idempotent(t *testing.T) {
	in := scores(Score(13), Score(17.25), Score(9.5))
	before := in

	first, err := ComputePeriodResult(in)
	require.NoError(t, err)
	second, err := ComputePeriodResult(in)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, before, in, "input must not be mutated")
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"14.995", "15.00"},
		{"14.994", "14.99"},
		{"0.005", "0.01"},
		{"10.125", "10.13"},
		{"19.999", "20.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Round(decimal.RequireFromString(tt.in)).StringFixed(Precision); got != tt.want {
				t.Errorf("Round() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	got, err := ParseScore("")
	require.NoError(t, err)
	assert.False(t, got.Valid)

	got, err = ParseScore("12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.50", FormatScore(got))

	_, err = ParseScore("twelve")
	assert.Error(t, err)
}

func TestNullJSON(t *testing.T) {
	data, err := json.Marshal(PeriodResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"average": null, "classification": null}`, string(data))

	data, err = json.Marshal(YearResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"final_average": null, "classification": null, "verdict": null, "periods_graded": 0}`, string(data))
}
