package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/grading"
)

const (
	periodColumns    = `id, name, component, trimester, school_year, starts_at, ends_at, notes, active, created_at`
	periodActiveSlot = "assessment_period_active_slot"
)

type periodRow struct {
	ID         string      `db:"id"`
	Name       string      `db:"name"`
	Component  string      `db:"component"`
	Trimester  int         `db:"trimester"`
	SchoolYear string      `db:"school_year"`
	StartsAt   time.Time   `db:"starts_at"`
	EndsAt     time.Time   `db:"ends_at"`
	Notes      null.String `db:"notes"`
	Active     bool        `db:"active"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toPeriodRow(p grade.AssessmentPeriod) periodRow {
	return periodRow{
		ID:         p.ID,
		Name:       p.Name,
		Component:  string(p.Component),
		Trimester:  p.Trimester,
		SchoolYear: p.SchoolYear,
		StartsAt:   p.StartsAt.UTC(),
		EndsAt:     p.EndsAt.UTC(),
		Notes:      null.NewString(p.Notes, p.Notes != ""),
		Active:     p.Active,
		CreatedAt:  p.CreatedAt.UTC(),
	}
}

func (r periodRow) toPeriod() grade.AssessmentPeriod {
	return grade.AssessmentPeriod{
		ID:         r.ID,
		Name:       r.Name,
		Component:  grading.Component(r.Component),
		Trimester:  r.Trimester,
		SchoolYear: r.SchoolYear,
		StartsAt:   r.StartsAt.UTC(),
		EndsAt:     r.EndsAt.UTC(),
		Notes:      r.Notes.String,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type periodRepository struct {
	db core.DB
}

var _ grade.PeriodRepository = (*periodRepository)(nil) // interface compliance check

func NewPeriodRepository(db core.DB) *periodRepository {
	return &periodRepository{db: db}
}

func (repo periodRepository) CreatePeriod(ctx context.Context, p grade.AssessmentPeriod, exec ...core.DBExecutor) (grade.AssessmentPeriod, error) {
	p.ID = uuid.New().String()
	q := `INSERT INTO assessment_period (` + periodColumns + `)
		VALUES (:id, :name, :component, :trimester, :school_year, :starts_at, :ends_at, :notes, :active, :created_at)`
	if _, err := getExec(repo.db, exec).NamedExecContext(ctx, q, toPeriodRow(p)); err != nil {
		if isUniqueViolation(err, periodActiveSlot) {
			return grade.AssessmentPeriod{}, grade.ErrPeriodExists
		}
		return grade.AssessmentPeriod{}, errors.Wrap(err, "inserting assessment period")
	}
	return p, nil
}

func (repo periodRepository) GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (grade.AssessmentPeriod, error) {
	if _, err := uuid.Parse(id); err != nil {
		return grade.AssessmentPeriod{}, grade.ErrPeriodNotFound
	}
	var row periodRow
	q := `SELECT ` + periodColumns + ` FROM assessment_period WHERE id = $1`
	if err := getExec(repo.db, exec).GetContext(ctx, &row, q, id); err != nil {
		return grade.AssessmentPeriod{}, trapNoRowsErr(err, grade.ErrPeriodNotFound, "getting assessment period")
	}
	return row.toPeriod(), nil
}

func (repo periodRepository) QueryPeriods(ctx context.Context, filter grade.PeriodFilter, exec ...core.DBExecutor) ([]grade.AssessmentPeriod, error) {
	var w where
	if filter.SchoolYear != "" {
		w.add("school_year = $%d", filter.SchoolYear)
	}
	if filter.Trimester != 0 {
		w.add("trimester = $%d", filter.Trimester)
	}
	if filter.Component != "" {
		w.add("component = $%d", string(filter.Component))
	}
	if filter.ActiveOnly {
		w.add("active = $%d", true)
	}
	ordering := []core.DBOrdering{
		{Field: "school_year", Ascending: false},
		{Field: "trimester", Ascending: true},
		{Field: "component", Ascending: true},
	}

	var rows []periodRow
	q := `SELECT ` + periodColumns + ` FROM assessment_period` + w.String() + orderBy(ordering)
	if err := getExec(repo.db, exec).SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assessment periods")
	}
	periods := make([]grade.AssessmentPeriod, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.toPeriod())
	}
	return periods, nil
}

func (repo periodRepository) UpdatePeriod(ctx context.Context, p grade.AssessmentPeriod, exec ...core.DBExecutor) (grade.AssessmentPeriod, error) {
	q := `UPDATE assessment_period SET
			name = :name, component = :component, trimester = :trimester, school_year = :school_year,
			starts_at = :starts_at, ends_at = :ends_at, notes = :notes, active = :active
		WHERE id = :id`
	res, err := getExec(repo.db, exec).NamedExecContext(ctx, q, toPeriodRow(p))
	if err != nil {
		if isUniqueViolation(err, periodActiveSlot) {
			return grade.AssessmentPeriod{}, grade.ErrPeriodExists
		}
		return grade.AssessmentPeriod{}, errors.Wrap(err, "updating assessment period")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return grade.AssessmentPeriod{}, grade.ErrPeriodNotFound
	}
	return p, nil
}
