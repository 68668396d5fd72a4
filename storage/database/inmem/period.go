package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
)

type periodRepository struct {
	db *periodTable
}

var _ grade.PeriodRepository = (*periodRepository)(nil) // interface compliance check

func NewPeriodRepository(db *DB) *periodRepository {
	return &periodRepository{db: db.period}
}

// conflicts reports whether an active period other than p holds p's slot.
func (repo *periodRepository) conflicts(p grade.AssessmentPeriod) bool {
	if !p.Active {
		return false
	}
	for _, other := range repo.db.table {
		if other.ID != p.ID && other.Active &&
			other.Component == p.Component && other.Trimester == p.Trimester && other.SchoolYear == p.SchoolYear {
			return true
		}
	}
	return false
}

func (repo *periodRepository) CreatePeriod(_ context.Context, p grade.AssessmentPeriod, _ ...core.DBExecutor) (grade.AssessmentPeriod, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.conflicts(p) {
		return grade.AssessmentPeriod{}, grade.ErrPeriodExists
	}
	p.ID = uuid.New().String()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *periodRepository) GetPeriod(_ context.Context, id string, _ ...core.DBExecutor) (grade.AssessmentPeriod, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return grade.AssessmentPeriod{}, grade.ErrPeriodNotFound
}

func (repo *periodRepository) QueryPeriods(_ context.Context, f grade.PeriodFilter, _ ...core.DBExecutor) ([]grade.AssessmentPeriod, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	periods := make([]grade.AssessmentPeriod, 0)
	for _, p := range repo.db.table {
		if (f.SchoolYear == "" || p.SchoolYear == f.SchoolYear) &&
			(f.Trimester == 0 || p.Trimester == f.Trimester) &&
			(f.Component == "" || p.Component == f.Component) &&
			(!f.ActiveOnly || p.Active) {
			periods = append(periods, *p)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		a, b := periods[i], periods[j]
		if a.SchoolYear != b.SchoolYear {
			return a.SchoolYear > b.SchoolYear
		}
		if a.Trimester != b.Trimester {
			return a.Trimester < b.Trimester
		}
		return a.Component < b.Component
	})
	return periods, nil
}

func (repo *periodRepository) UpdatePeriod(_ context.Context, p grade.AssessmentPeriod, _ ...core.DBExecutor) (grade.AssessmentPeriod, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[p.ID]; !ok {
		return grade.AssessmentPeriod{}, grade.ErrPeriodNotFound
	}
	if repo.conflicts(p) {
		return grade.AssessmentPeriod{}, grade.ErrPeriodExists
	}
	repo.db.table[p.ID] = &p
	return p, nil
}
