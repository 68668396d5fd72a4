package grade

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/gradebook/core/grading"
)

// Key identifies the one record a student has per subject, class, school year and trimester.
type Key struct {
	StudentID  int    `json:"student_id" validate:"required,gt=0"`
	SubjectID  int    `json:"subject_id" validate:"required,gt=0"`
	ClassID    int    `json:"class_id" validate:"required,gt=0"`
	SchoolYear string `json:"school_year" validate:"required,schoolyear"`
	Trimester  int    `json:"trimester" validate:"required,trimester"`
}

// Record holds the sub-scores of one Key and the result computed from them.
// Result is never written directly: it is derived from Scores on every save.
type Record struct {
	ID string `json:"id"`
	Key
	TeacherID int                  `json:"teacher_id"`
	Scores    grading.SubScores    `json:"scores"`
	Result    grading.PeriodResult `json:"result"`
	Notes     string               `json:"notes"`
	EnteredBy string               `json:"entered_by"` // user.User ID
	CreatedAt time.Time            `json:"created_at"` // UTC
	UpdatedAt time.Time            `json:"updated_at"` // UTC
}

// Change is one history row: a sub-score going from Previous to Current.
type Change struct {
	ID        string              `json:"id"`
	RecordID  string              `json:"record_id"`
	Component grading.Component   `json:"component"`
	Previous  decimal.NullDecimal `json:"previous"`
	Current   decimal.NullDecimal `json:"current"`
	ChangedBy string              `json:"changed_by"` // user.User ID
	ChangedAt time.Time           `json:"changed_at"` // UTC
}

// Entry creates or updates the record of Key.
// Present scores overwrite stored ones, absent scores leave them untouched, Retract clears them.
type Entry struct {
	Key
	TeacherID int                 `json:"teacher_id" validate:"omitempty,gt=0"`
	Scores    grading.SubScores   `json:"scores"`
	Retract   []grading.Component `json:"retract" validate:"omitempty,dive,component"`
	Notes     string              `json:"notes" validate:"max=500"`
}

// Batch enters the scores of many students sharing the same subject, class and period.
type Batch struct {
	SubjectID  int    `json:"subject_id" validate:"required,gt=0"`
	ClassID    int    `json:"class_id" validate:"required,gt=0"`
	TeacherID  int    `json:"teacher_id" validate:"omitempty,gt=0"`
	SchoolYear string `json:"school_year" validate:"required,schoolyear"`
	Trimester  int    `json:"trimester" validate:"required,trimester"`
	Rows       []Row  `json:"rows" validate:"required,min=1"`
}

type Row struct {
	StudentID int               `json:"student_id"`
	Scores    grading.SubScores `json:"scores"`
	Notes     string            `json:"notes"`
}

func (b Batch) entry(row Row) Entry {
	return Entry{
		Key: Key{
			StudentID:  row.StudentID,
			SubjectID:  b.SubjectID,
			ClassID:    b.ClassID,
			SchoolYear: b.SchoolYear,
			Trimester:  b.Trimester,
		},
		TeacherID: b.TeacherID,
		Scores:    row.Scores,
		Notes:     row.Notes,
	}
}

type BatchFailure struct {
	StudentID int   `json:"student_id"`
	Err       error `json:"-"`
}

type BatchResult struct {
	Saved    []Record       `json:"saved"`
	Failures []BatchFailure `json:"failures"`
}

// RecordFilter selects records; zero fields match everything.
type RecordFilter struct {
	StudentID  int
	SubjectID  int
	ClassID    int
	SchoolYear string
	Trimester  int
}

type RecalcStats struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// ClassSummary aggregates the period results of a class in one subject.
type ClassSummary struct {
	Total    int                 `json:"total"`
	Graded   int                 `json:"graded"`
	Pending  int                 `json:"pending"`
	Approved int                 `json:"approved"`
	Failed   int                 `json:"failed"`
	Mean     decimal.NullDecimal `json:"mean"`
	PassRate decimal.Decimal     `json:"pass_rate"` // % of Total
}

type ClassReport struct {
	Key     RecordFilter `json:"key"`
	Records []Record     `json:"records"`
	Summary ClassSummary `json:"summary"`
}

// SubjectTranscript is the year of one student in one subject.
type SubjectTranscript struct {
	SubjectID int                     `json:"subject_id"`
	Periods   [3]grading.PeriodResult `json:"periods"` // trimesters 1 to 3
	Scores    [3]grading.SubScores    `json:"scores"`
	Year      grading.YearResult      `json:"year"`
}

type Transcript struct {
	StudentID  int                 `json:"student_id"`
	SchoolYear string              `json:"school_year"`
	Subjects   []SubjectTranscript `json:"subjects"`
}

type ClassSheet struct {
	ClassID     int          `json:"class_id"`
	SchoolYear  string       `json:"school_year"`
	Transcripts []Transcript `json:"transcripts"`
}

// AssessmentPeriod is the window during which one component of a trimester may be entered.
type AssessmentPeriod struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Component  grading.Component `json:"component"`
	Trimester  int               `json:"trimester"`
	SchoolYear string            `json:"school_year"`
	StartsAt   time.Time         `json:"starts_at"` // UTC
	EndsAt     time.Time         `json:"ends_at"`   // UTC
	Notes      string            `json:"notes"`
	Active     bool              `json:"active"`
	CreatedAt  time.Time         `json:"created_at"` // UTC
}

// IsOpen reports whether t falls within the window of an active period. Both bounds are inclusive.
func (p AssessmentPeriod) IsOpen(t time.Time) bool {
	return p.Active && !t.Before(p.StartsAt) && !t.After(p.EndsAt)
}

type NewPeriod struct {
	Name       string            `json:"name" validate:"required,max=100"`
	Component  grading.Component `json:"component" validate:"required,component"`
	Trimester  int               `json:"trimester" validate:"required,trimester"`
	SchoolYear string            `json:"school_year" validate:"required,schoolyear"`
	StartsAt   time.Time         `json:"starts_at" validate:"required"`
	EndsAt     time.Time         `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Notes      string            `json:"notes" validate:"max=500"`
}

type PeriodFilter struct {
	SchoolYear string
	Trimester  int
	Component  grading.Component
	ActiveOnly bool
}
