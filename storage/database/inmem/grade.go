package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/grading"
)

type gradeRepository struct {
	db *gradeTable
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db.grade}
}

func (repo *gradeRepository) UpsertRecord(_ context.Context, key grade.Key, merge grade.MergeFunc, _ ...core.DBExecutor) (grade.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var existing *grade.Record
	if id, ok := repo.db.byKey[key]; ok {
		rec := *repo.db.table[id]
		existing = &rec
	}

	rec, changes, err := merge(existing)
	if err != nil {
		return grade.Record{}, err
	}
	rec.Key = key
	if existing == nil {
		rec.ID = uuid.New().String()
	}
	repo.db.table[rec.ID] = &rec
	repo.db.byKey[key] = rec.ID

	for _, ch := range changes {
		ch.ID = uuid.New().String()
		ch.RecordID = rec.ID
		repo.db.changes[rec.ID] = append(repo.db.changes[rec.ID], ch)
	}
	return rec, nil
}

func (repo *gradeRepository) GetRecord(_ context.Context, id string, _ ...core.DBExecutor) (grade.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return grade.Record{}, grade.ErrRecordNotFound
}

func (repo *gradeRepository) GetRecordByKey(_ context.Context, key grade.Key, _ ...core.DBExecutor) (grade.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if id, ok := repo.db.byKey[key]; ok {
		return *repo.db.table[id], nil
	}
	return grade.Record{}, grade.ErrRecordNotFound
}

func matches(rec *grade.Record, f grade.RecordFilter) bool {
	return (f.StudentID == 0 || rec.StudentID == f.StudentID) &&
		(f.SubjectID == 0 || rec.SubjectID == f.SubjectID) &&
		(f.ClassID == 0 || rec.ClassID == f.ClassID) &&
		(f.SchoolYear == "" || rec.SchoolYear == f.SchoolYear) &&
		(f.Trimester == 0 || rec.Trimester == f.Trimester)
}

func (repo *gradeRepository) QueryRecords(_ context.Context, filter grade.RecordFilter, _ ...core.DBExecutor) ([]grade.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]grade.Record, 0)
	for _, rec := range repo.db.table {
		if matches(rec, filter) {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.Trimester < b.Trimester
	})
	return recs, nil
}

func (repo *gradeRepository) SaveResult(_ context.Context, key grade.Key, result grading.PeriodResult, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	id, ok := repo.db.byKey[key]
	if !ok {
		return grade.ErrRecordNotFound
	}
	repo.db.table[id].Result = result
	return nil
}

func (repo *gradeRepository) QueryChanges(_ context.Context, recordID string, _ ...core.DBExecutor) ([]grade.Change, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stored := repo.db.changes[recordID]
	changes := make([]grade.Change, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		changes = append(changes, stored[i])
	}
	return changes, nil
}

// SetScores overwrites the sub-scores of key without recomputing its result.
// Only meant to simulate drifted data in tests.
func (repo *gradeRepository) SetScores(key grade.Key, scores grading.SubScores) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	id, ok := repo.db.byKey[key]
	if !ok {
		return grade.ErrRecordNotFound
	}
	repo.db.table[id].Scores = scores
	return nil
}
