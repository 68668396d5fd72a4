package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/grading"
)

const recordColumns = `id, student_id, subject_id, class_id, school_year, trimester, teacher_id,
	continuous_assessment, written_test_1, written_test_2, average, classification,
	notes, entered_by, created_at, updated_at`

const keyCondition = `student_id = $1 AND subject_id = $2 AND class_id = $3 AND school_year = $4 AND trimester = $5`

type recordRow struct {
	ID                   string              `db:"id"`
	StudentID            int                 `db:"student_id"`
	SubjectID            int                 `db:"subject_id"`
	ClassID              int                 `db:"class_id"`
	SchoolYear           string              `db:"school_year"`
	Trimester            int                 `db:"trimester"`
	TeacherID            null.Int            `db:"teacher_id"`
	ContinuousAssessment decimal.NullDecimal `db:"continuous_assessment"`
	WrittenTest1         decimal.NullDecimal `db:"written_test_1"`
	WrittenTest2         decimal.NullDecimal `db:"written_test_2"`
	Average              decimal.NullDecimal `db:"average"`
	Classification       null.String         `db:"classification"`
	Notes                null.String         `db:"notes"`
	EnteredBy            null.String         `db:"entered_by"`
	CreatedAt            time.Time           `db:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at"`
}

func toRecordRow(rec grade.Record) recordRow {
	class := string(rec.Result.Classification)
	return recordRow{
		ID:                   rec.ID,
		StudentID:            rec.StudentID,
		SubjectID:            rec.SubjectID,
		ClassID:              rec.ClassID,
		SchoolYear:           rec.SchoolYear,
		Trimester:            rec.Trimester,
		TeacherID:            null.NewInt(rec.TeacherID, rec.TeacherID != 0),
		ContinuousAssessment: rec.Scores.ContinuousAssessment,
		WrittenTest1:         rec.Scores.WrittenTest1,
		WrittenTest2:         rec.Scores.WrittenTest2,
		Average:              rec.Result.Average,
		Classification:       null.NewString(class, class != ""),
		Notes:                null.NewString(rec.Notes, rec.Notes != ""),
		EnteredBy:            null.NewString(rec.EnteredBy, rec.EnteredBy != ""),
		CreatedAt:            rec.CreatedAt.UTC(),
		UpdatedAt:            rec.UpdatedAt.UTC(),
	}
}

func (r recordRow) toRecord() grade.Record {
	return grade.Record{
		ID: r.ID,
		Key: grade.Key{
			StudentID:  r.StudentID,
			SubjectID:  r.SubjectID,
			ClassID:    r.ClassID,
			SchoolYear: r.SchoolYear,
			Trimester:  r.Trimester,
		},
		TeacherID: r.TeacherID.Int,
		Scores: grading.SubScores{
			ContinuousAssessment: r.ContinuousAssessment,
			WrittenTest1:         r.WrittenTest1,
			WrittenTest2:         r.WrittenTest2,
		},
		Result: grading.PeriodResult{
			Average:        r.Average,
			Classification: grading.Classification(r.Classification.String),
		},
		Notes:     r.Notes.String,
		EnteredBy: r.EnteredBy.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type changeRow struct {
	ID            string              `db:"id"`
	RecordID      string              `db:"record_id"`
	Component     string              `db:"component"`
	PreviousValue decimal.NullDecimal `db:"previous_value"`
	CurrentValue  decimal.NullDecimal `db:"current_value"`
	ChangedBy     null.String         `db:"changed_by"`
	ChangedAt     time.Time           `db:"changed_at"`
}

type gradeRepository struct {
	db core.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db core.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func keyArgs(key grade.Key) []interface{} {
	return []interface{}{key.StudentID, key.SubjectID, key.ClassID, key.SchoolYear, key.Trimester}
}

// lockRecord returns the record of key locked for update, creating an empty one when missing.
// created is true when the row was inserted by this call.
func (repo gradeRepository) lockRecord(ctx context.Context, exec core.DBExecutor, key grade.Key) (rec grade.Record, created bool, err error) {
	now := time.Now().UTC()
	var id string
	err = exec.QueryRowxContext(ctx,
		`INSERT INTO grade_record (id, student_id, subject_id, class_id, school_year, trimester, created_at, updated_at)
		VALUES ($6, $1, $2, $3, $4, $5, $7, $7)
		ON CONFLICT ON CONSTRAINT grade_record_key DO NOTHING
		RETURNING id`,
		append(keyArgs(key), uuid.New().String(), now)...,
	).Scan(&id)
	switch {
	case err == nil:
		created = true
	case err != sql.ErrNoRows:
		return grade.Record{}, false, errors.Wrap(err, "inserting grade record")
	}

	var row recordRow
	q := `SELECT ` + recordColumns + ` FROM grade_record WHERE ` + keyCondition + ` FOR UPDATE`
	if err = exec.GetContext(ctx, &row, q, keyArgs(key)...); err != nil {
		return grade.Record{}, false, errors.Wrap(err, "locking grade record")
	}
	return row.toRecord(), created, nil
}

func (repo gradeRepository) UpsertRecord(ctx context.Context, key grade.Key, merge grade.MergeFunc, exec ...core.DBExecutor) (grade.Record, error) {
	var saved grade.Record
	err := inTx(ctx, repo.db, exec, func(tx core.DBExecutor) error {
		locked, created, err := repo.lockRecord(ctx, tx, key)
		if err != nil {
			return err
		}

		var existing *grade.Record
		if !created {
			existing = &locked
		}
		rec, changes, err := merge(existing)
		if err != nil {
			return err
		}
		rec.ID = locked.ID
		rec.Key = key

		q := `UPDATE grade_record SET
				teacher_id = :teacher_id, continuous_assessment = :continuous_assessment,
				written_test_1 = :written_test_1, written_test_2 = :written_test_2,
				average = :average, classification = :classification, notes = :notes,
				entered_by = :entered_by, created_at = :created_at, updated_at = :updated_at
			WHERE id = :id`
		if _, err = tx.NamedExecContext(ctx, q, toRecordRow(rec)); err != nil {
			return errors.Wrap(err, "updating grade record")
		}

		for _, ch := range changes {
			row := changeRow{
				ID:            uuid.New().String(),
				RecordID:      rec.ID,
				Component:     string(ch.Component),
				PreviousValue: ch.Previous,
				CurrentValue:  ch.Current,
				ChangedBy:     null.NewString(ch.ChangedBy, ch.ChangedBy != ""),
				ChangedAt:     ch.ChangedAt.UTC(),
			}
			q := `INSERT INTO grade_change (id, record_id, component, previous_value, current_value, changed_by, changed_at)
				VALUES (:id, :record_id, :component, :previous_value, :current_value, :changed_by, :changed_at)`
			if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
				return errors.Wrap(err, "inserting grade change")
			}
		}
		saved = rec
		return nil
	})
	if err != nil {
		return grade.Record{}, err
	}
	return saved, nil
}

func (repo gradeRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return grade.Record{}, grade.ErrRecordNotFound
	}
	var row recordRow
	q := `SELECT ` + recordColumns + ` FROM grade_record WHERE id = $1`
	if err := getExec(repo.db, exec).GetContext(ctx, &row, q, id); err != nil {
		return grade.Record{}, trapNoRowsErr(err, grade.ErrRecordNotFound, "getting grade record")
	}
	return row.toRecord(), nil
}

func (repo gradeRepository) GetRecordByKey(ctx context.Context, key grade.Key, exec ...core.DBExecutor) (grade.Record, error) {
	var row recordRow
	q := `SELECT ` + recordColumns + ` FROM grade_record WHERE ` + keyCondition
	if err := getExec(repo.db, exec).GetContext(ctx, &row, q, keyArgs(key)...); err != nil {
		return grade.Record{}, trapNoRowsErr(err, grade.ErrRecordNotFound, "getting grade record")
	}
	return row.toRecord(), nil
}

func (repo gradeRepository) QueryRecords(ctx context.Context, filter grade.RecordFilter, exec ...core.DBExecutor) ([]grade.Record, error) {
	var w where
	if filter.StudentID != 0 {
		w.add("student_id = $%d", filter.StudentID)
	}
	if filter.SubjectID != 0 {
		w.add("subject_id = $%d", filter.SubjectID)
	}
	if filter.ClassID != 0 {
		w.add("class_id = $%d", filter.ClassID)
	}
	if filter.SchoolYear != "" {
		w.add("school_year = $%d", filter.SchoolYear)
	}
	if filter.Trimester != 0 {
		w.add("trimester = $%d", filter.Trimester)
	}
	ordering := []core.DBOrdering{
		{Field: "student_id", Ascending: true},
		{Field: "subject_id", Ascending: true},
		{Field: "trimester", Ascending: true},
	}

	var rows []recordRow
	q := `SELECT ` + recordColumns + ` FROM grade_record` + w.String() + orderBy(ordering)
	if err := getExec(repo.db, exec).SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying grade records")
	}
	recs := make([]grade.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toRecord())
	}
	return recs, nil
}

func (repo gradeRepository) SaveResult(ctx context.Context, key grade.Key, result grading.PeriodResult, exec ...core.DBExecutor) error {
	class := string(result.Classification)
	q := `UPDATE grade_record SET average = $6, classification = $7 WHERE ` + keyCondition
	args := append(keyArgs(key), result.Average, null.NewString(class, class != ""))
	res, err := getExec(repo.db, exec).ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "saving grade result")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return grade.ErrRecordNotFound
	}
	return nil
}

func (repo gradeRepository) QueryChanges(ctx context.Context, recordID string, exec ...core.DBExecutor) ([]grade.Change, error) {
	if _, err := uuid.Parse(recordID); err != nil {
		return nil, grade.ErrRecordNotFound
	}
	var rows []changeRow
	q := `SELECT id, record_id, component, previous_value, current_value, changed_by, changed_at
		FROM grade_change WHERE record_id = $1
		ORDER BY changed_at DESC, id`
	if err := getExec(repo.db, exec).SelectContext(ctx, &rows, q, recordID); err != nil {
		return nil, errors.Wrap(err, "querying grade changes")
	}
	changes := make([]grade.Change, 0, len(rows))
	for _, r := range rows {
		changes = append(changes, grade.Change{
			ID:        r.ID,
			RecordID:  r.RecordID,
			Component: grading.Component(r.Component),
			Previous:  r.PreviousValue,
			Current:   r.CurrentValue,
			ChangedBy: r.ChangedBy.String,
			ChangedAt: r.ChangedAt.UTC(),
		})
	}
	return changes, nil
}
