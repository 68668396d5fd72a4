// Package grading turns raw period sub-scores into period averages, classifications
// and end-of-year verdicts. It has no I/O and is safe for concurrent use.
package grading

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept on every computed average.
const Precision int32 = 2

var (
	MinScore = decimal.Zero
	MaxScore = decimal.NewFromInt(20)
	PassMark = decimal.NewFromInt(10)

	ErrInvalidScoreRange = errors.New("score must be between 0 and 20")
)

// RangeError reports which sub-score fell outside [MinScore, MaxScore].
type RangeError struct {
	Component Component
	Value     decimal.Decimal
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Value, ErrInvalidScoreRange)
}

func (e *RangeError) Cause() error  { return ErrInvalidScoreRange }
func (e *RangeError) Unwrap() error { return ErrInvalidScoreRange }

// Component is one of the three assessments of a period.
type Component string

const (
	ContinuousAssessment Component = "MAC"
	WrittenTest1         Component = "PP"
	WrittenTest2         Component = "PT"
)

var Components = []Component{ContinuousAssessment, WrittenTest1, WrittenTest2}

func ParseComponent(s string) (Component, error) {
	for _, c := range Components {
		if string(c) == s {
			return c, nil
		}
	}
	return "", errors.Errorf("unknown assessment component %q", s)
}

// SubScores holds the raw scores of one student, subject and period.
// An invalid (unset) score means "not yet entered" and differs from 0.
type SubScores struct {
	ContinuousAssessment decimal.NullDecimal `json:"mac" validate:"omitempty,score"`
	WrittenTest1         decimal.NullDecimal `json:"pp" validate:"omitempty,score"`
	WrittenTest2         decimal.NullDecimal `json:"pt" validate:"omitempty,score"`
}

func (s SubScores) Get(c Component) decimal.NullDecimal {
	switch c {
	case ContinuousAssessment:
		return s.ContinuousAssessment
	case WrittenTest1:
		return s.WrittenTest1
	case WrittenTest2:
		return s.WrittenTest2
	}
	return decimal.NullDecimal{}
}

// With returns a copy of s where component c is set to v.
func (s SubScores) With(c Component, v decimal.NullDecimal) SubScores {
	switch c {
	case ContinuousAssessment:
		s.ContinuousAssessment = v
	case WrittenTest1:
		s.WrittenTest1 = v
	case WrittenTest2:
		s.WrittenTest2 = v
	}
	return s
}

// Complete reports whether all three scores are present.
func (s SubScores) Complete() bool {
	return s.ContinuousAssessment.Valid && s.WrittenTest1.Valid && s.WrittenTest2.Valid
}

// CheckRange returns a *RangeError for the first present score outside [0, 20].
func (s SubScores) CheckRange() error {
	for _, c := range Components {
		v := s.Get(c)
		if v.Valid && (v.Decimal.LessThan(MinScore) || v.Decimal.GreaterThan(MaxScore)) {
			return &RangeError{Component: c, Value: v.Decimal}
		}
	}
	return nil
}

// Classification is the qualitative band of an average. The zero value means "not graded".
type Classification string

const (
	Excellent    Classification = "Excellent"
	VeryGood     Classification = "Very Good"
	Good         Classification = "Good"
	Sufficient   Classification = "Sufficient"
	Insufficient Classification = "Insufficient"
)

// lower bounds are inclusive, highest first
var classBands = []struct {
	min   decimal.Decimal
	class Classification
}{
	{decimal.NewFromInt(17), Excellent},
	{decimal.NewFromInt(14), VeryGood},
	{decimal.NewFromInt(12), Good},
	{decimal.NewFromInt(10), Sufficient},
}

// Classify maps an average to its band.
func Classify(avg decimal.Decimal) Classification {
	for _, band := range classBands {
		if avg.GreaterThanOrEqual(band.min) {
			return band.class
		}
	}
	return Insufficient
}

func (c Classification) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// Verdict is the end-of-year outcome. The zero value means "pending".
type Verdict string

const (
	Approved Verdict = "Approved"
	Failed   Verdict = "Failed"
)

// VerdictFor returns Approved when avg reaches PassMark.
func VerdictFor(avg decimal.Decimal) Verdict {
	if avg.GreaterThanOrEqual(PassMark) {
		return Approved
	}
	return Failed
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

type PeriodResult struct {
	Average        decimal.NullDecimal `json:"average"`
	Classification Classification      `json:"classification"`
}

func (r PeriodResult) Graded() bool { return r.Average.Valid }

// Equal compares averages by value.
func (r PeriodResult) Equal(o PeriodResult) bool {
	if r.Average.Valid != o.Average.Valid || r.Classification != o.Classification {
		return false
	}
	return !r.Average.Valid || r.Average.Decimal.Equal(o.Average.Decimal)
}

type YearResult struct {
	FinalAverage   decimal.NullDecimal `json:"final_average"`
	Classification Classification      `json:"classification"`
	Verdict        Verdict             `json:"verdict"`
	PeriodsGraded  int                 `json:"periods_graded"`
}

// Round rounds d to Precision places, halves going up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

func mean(values []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}

// ComputePeriodResult averages the three sub-scores of a period.
// Missing scores yield an ungraded result; out of range scores yield a *RangeError.
func ComputePeriodResult(scores SubScores) (PeriodResult, error) {
	if err := scores.CheckRange(); err != nil {
		return PeriodResult{}, err
	}
	if !scores.Complete() {
		return PeriodResult{}, nil
	}

	avg := Round(mean([]decimal.Decimal{
		scores.ContinuousAssessment.Decimal,
		scores.WrittenTest1.Decimal,
		scores.WrittenTest2.Decimal,
	}))
	return PeriodResult{
		Average:        decimal.NewNullDecimal(avg),
		Classification: Classify(avg),
	}, nil
}

// ComputeYearResult averages the graded periods; ungraded periods are left out, not counted as 0.
func ComputeYearResult(periods []PeriodResult) YearResult {
	avgs := make([]decimal.NullDecimal, 0, len(periods))
	for _, p := range periods {
		avgs = append(avgs, p.Average)
	}
	return YearResultFromAverages(avgs...)
}

// YearResultFromAverages is ComputeYearResult over bare period averages.
func YearResultFromAverages(averages ...decimal.NullDecimal) YearResult {
	valid := make([]decimal.Decimal, 0, len(averages))
	for _, avg := range averages {
		if avg.Valid {
			valid = append(valid, avg.Decimal)
		}
	}
	if len(valid) == 0 {
		return YearResult{}
	}

	final := Round(mean(valid))
	return YearResult{
		FinalAverage:   decimal.NewNullDecimal(final),
		Classification: Classify(final),
		Verdict:        VerdictFor(final),
		PeriodsGraded:  len(valid),
	}
}

// Score is a shorthand for a present score.
func Score(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

// ParseScore parses s as a score; an empty s is an absent score.
func ParseScore(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, errors.Wrapf(err, "parsing score %q", s)
	}
	return decimal.NewNullDecimal(d), nil
}

// FormatScore renders a score with Precision decimals, or "-" when absent.
func FormatScore(s decimal.NullDecimal) string {
	if !s.Valid {
		return "-"
	}
	return s.Decimal.StringFixed(Precision)
}
