// Package grade stores the sub-scores of students and derives every average from them
// through the grading package: entry, batch entry, recalculation, history and reports.
package grade

import (
	"context"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/user"
)

var (
	// errors
	ErrRecordNotFound    = errors.New("grade record not found")
	ErrPeriodNotFound    = errors.New("assessment period not found")
	ErrPeriodExists      = errors.New("an active assessment period already exists for this component, trimester and school year")
	ErrEntryWindowClosed = errors.New("no assessment period is open for this component")

	nowFunc = time.Now // mockable
)

type (
	// MergeFunc receives the stored record of a key (nil when there is none) and returns
	// the record to store along with the history of the changed sub-scores.
	MergeFunc func(existing *Record) (Record, []Change, error)

	Repository interface {
		// UpsertRecord runs merge and stores its result atomically: no other write to the same key
		// may happen between reading existing and storing the merged record.
		// New records and changes get their IDs assigned here.
		UpsertRecord(ctx context.Context, key Key, merge MergeFunc, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		GetRecordByKey(ctx context.Context, key Key, exec ...core.DBExecutor) (Record, error)
		// QueryRecords returns matching records ordered by student, subject and trimester.
		QueryRecords(ctx context.Context, filter RecordFilter, exec ...core.DBExecutor) ([]Record, error)
		// SaveResult overwrites the cached result of key, leaving its sub-scores alone.
		SaveResult(ctx context.Context, key Key, result grading.PeriodResult, exec ...core.DBExecutor) error
		// QueryChanges returns the history of a record, newest first.
		QueryChanges(ctx context.Context, recordID string, exec ...core.DBExecutor) ([]Change, error)
	}

	PeriodRepository interface {
		// CreatePeriod returns ErrPeriodExists when an active period overlaps p's component, trimester and year.
		CreatePeriod(ctx context.Context, p AssessmentPeriod, exec ...core.DBExecutor) (AssessmentPeriod, error)
		GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (AssessmentPeriod, error)
		// QueryPeriods returns matching periods ordered by school year (newest first), trimester and component.
		QueryPeriods(ctx context.Context, filter PeriodFilter, exec ...core.DBExecutor) ([]AssessmentPeriod, error)
		UpdatePeriod(ctx context.Context, p AssessmentPeriod, exec ...core.DBExecutor) (AssessmentPeriod, error)
	}

	Service struct {
		repo           Repository
		periodRepo     PeriodRepository
		validate       *validator.Validate
		translator     ut.Translator
		logger         core.Logger
		enforceWindows bool
	}
)

func NewService(
	repo Repository,
	periodRepo PeriodRepository,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	conf *core.Config,
) *Service {
	InitValidators(validate, translator)
	return &Service{
		repo:           repo,
		periodRepo:     periodRepo,
		validate:       validate,
		translator:     translator,
		logger:         logger,
		enforceWindows: conf.Grading.EnforceEntryWindows,
	}
}

func (svc *Service) validateStruct(s interface{}) error {
	return core.TranslateValidationErrors(svc.validate.Struct(s), svc.translator)
}

// applyEntry returns the sub-scores of current once e is applied, and the history of what changed.
func applyEntry(current grading.SubScores, e Entry) (grading.SubScores, []grading.Component) {
	updated := current
	for _, c := range grading.Components {
		if v := e.Scores.Get(c); v.Valid {
			updated = updated.With(c, v)
		}
	}
	for _, c := range e.Retract {
		updated = updated.With(c, decimal.NullDecimal{})
	}

	var changed []grading.Component
	for _, c := range grading.Components {
		if !sameScore(current.Get(c), updated.Get(c)) {
			changed = append(changed, c)
		}
	}
	return updated, changed
}

func sameScore(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

// touchedComponents lists the components e writes to.
func touchedComponents(e Entry) []grading.Component {
	touched := make([]grading.Component, 0, len(grading.Components))
	for _, c := range grading.Components {
		if e.Scores.Get(c).Valid {
			touched = append(touched, c)
		}
	}
	for _, c := range e.Retract {
		if !e.Scores.Get(c).Valid {
			touched = append(touched, c)
		}
	}
	return touched
}

func (svc *Service) checkEntryWindows(ctx context.Context, e Entry) error {
	if !svc.enforceWindows {
		return nil
	}
	now := nowFunc().UTC()
	for _, c := range touchedComponents(e) {
		periods, err := svc.periodRepo.QueryPeriods(ctx, PeriodFilter{
			SchoolYear: e.SchoolYear,
			Trimester:  e.Trimester,
			Component:  c,
			ActiveOnly: true,
		})
		if err != nil {
			return err
		}
		var open bool
		for _, p := range periods {
			if p.IsOpen(now) {
				open = true
				break
			}
		}
		if !open {
			return errors.Wrapf(ErrEntryWindowClosed, "%s, trimester %d, %s", c, e.Trimester, e.SchoolYear)
		}
	}
	return nil
}

// Enter creates or updates the record of e.Key and recomputes its result.
func (svc *Service) Enter(ctx context.Context, e Entry, actor user.User) (Record, error) {
	e.SchoolYear = core.CleanString(e.SchoolYear)
	e.Notes = core.CleanString(e.Notes)
	if err := svc.validateStruct(e); err != nil {
		return Record{}, err
	}
	if err := svc.checkEntryWindows(ctx, e); err != nil {
		return Record{}, err
	}

	merge := func(existing *Record) (Record, []Change, error) {
		now := nowFunc().UTC()
		rec := Record{Key: e.Key, CreatedAt: now}
		if existing != nil {
			rec = *existing
		}

		scores, changed := applyEntry(rec.Scores, e)
		result, err := grading.ComputePeriodResult(scores)
		if err != nil {
			return Record{}, nil, err
		}

		var changes []Change
		if existing != nil {
			changes = make([]Change, 0, len(changed))
			for _, c := range changed {
				changes = append(changes, Change{
					RecordID:  rec.ID,
					Component: c,
					Previous:  rec.Scores.Get(c),
					Current:   scores.Get(c),
					ChangedBy: actor.ID,
					ChangedAt: now,
				})
			}
		}

		rec.Scores = scores
		rec.Result = result
		if e.TeacherID != 0 {
			rec.TeacherID = e.TeacherID
		}
		if e.Notes != "" {
			rec.Notes = e.Notes
		}
		rec.EnteredBy = actor.ID
		rec.UpdatedAt = now
		return rec, changes, nil
	}

	rec, err := svc.repo.UpsertRecord(ctx, e.Key, merge)
	if err != nil {
		return Record{}, errors.Wrap(err, "entering grade")
	}
	return rec, nil
}

// EnterBatch enters every row independently; a failing row is reported and does not stop the others.
func (svc *Service) EnterBatch(ctx context.Context, b Batch, actor user.User) (BatchResult, error) {
	b.SchoolYear = core.CleanString(b.SchoolYear)
	if err := svc.validateStruct(b); err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{Saved: make([]Record, 0, len(b.Rows))}
	for _, row := range b.Rows {
		rec, err := svc.Enter(ctx, b.entry(row), actor)
		if err != nil {
			res.Failures = append(res.Failures, BatchFailure{StudentID: row.StudentID, Err: err})
			continue
		}
		res.Saved = append(res.Saved, rec)
	}
	if len(res.Failures) > 0 {
		svc.logger.Warn("batch entry had failures", map[string]interface{}{
			"subject_id": b.SubjectID,
			"class_id":   b.ClassID,
			"trimester":  b.Trimester,
			"failed":     len(res.Failures),
			"saved":      len(res.Saved),
		}, actor)
	}
	return res, nil
}

func (svc *Service) GetRecord(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, id)
}

// SubScores returns the stored sub-scores of key, all absent when nothing was entered yet.
func (svc *Service) SubScores(ctx context.Context, key Key) (grading.SubScores, error) {
	rec, err := svc.repo.GetRecordByKey(ctx, key)
	if err != nil {
		if errors.Cause(err) == ErrRecordNotFound {
			return grading.SubScores{}, nil
		}
		return grading.SubScores{}, err
	}
	return rec.Scores, nil
}

// History returns the sub-score changes of a record, newest first.
func (svc *Service) History(ctx context.Context, recordID string) ([]Change, error) {
	if _, err := svc.repo.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	return svc.repo.QueryChanges(ctx, recordID)
}

// Recalculate recomputes the cached result of every matching record and saves those that drifted.
// Records whose stored scores are out of range are logged and skipped.
func (svc *Service) Recalculate(ctx context.Context, filter RecordFilter) (RecalcStats, error) {
	recs, err := svc.repo.QueryRecords(ctx, filter)
	if err != nil {
		return RecalcStats{}, err
	}

	var stats RecalcStats
	for _, rec := range recs {
		stats.Scanned++
		result, err := grading.ComputePeriodResult(rec.Scores)
		if err != nil {
			svc.logger.Error("stored scores out of range", err, map[string]interface{}{"record_id": rec.ID})
			continue
		}
		if result.Equal(rec.Result) {
			continue
		}
		if err := svc.repo.SaveResult(ctx, rec.Key, result); err != nil {
			return stats, errors.Wrapf(err, "saving result of record %s", rec.ID)
		}
		stats.Updated++
	}
	svc.logger.Info("results recalculated", map[string]interface{}{"scanned": stats.Scanned, "updated": stats.Updated})
	return stats, nil
}

var hundred = decimal.NewFromInt(100)

// Summarize counts the graded, pending, approved and failed records and averages the graded ones.
func Summarize(recs []Record) ClassSummary {
	sum := ClassSummary{Total: len(recs), PassRate: decimal.Zero}
	avgs := make([]decimal.NullDecimal, 0, len(recs))
	for _, rec := range recs {
		if !rec.Result.Graded() {
			sum.Pending++
			continue
		}
		sum.Graded++
		avgs = append(avgs, rec.Result.Average)
		if grading.VerdictFor(rec.Result.Average.Decimal) == grading.Approved {
			sum.Approved++
		} else {
			sum.Failed++
		}
	}
	sum.Mean = grading.YearResultFromAverages(avgs...).FinalAverage
	if sum.Total > 0 {
		sum.PassRate = grading.Round(decimal.NewFromInt(int64(sum.Approved)).Mul(hundred).Div(decimal.NewFromInt(int64(sum.Total))))
	}
	return sum
}

// ClassReport lists the records of a class in one subject and trimester with their summary.
func (svc *Service) ClassReport(ctx context.Context, classID, subjectID int, schoolYear string, trimester int) (ClassReport, error) {
	filter := RecordFilter{ClassID: classID, SubjectID: subjectID, SchoolYear: schoolYear, Trimester: trimester}
	recs, err := svc.repo.QueryRecords(ctx, filter)
	if err != nil {
		return ClassReport{}, err
	}
	return ClassReport{Key: filter, Records: recs, Summary: Summarize(recs)}, nil
}

// transcripts groups records by student then subject; year results go through the aggregator.
func transcripts(recs []Record, schoolYear string) []Transcript {
	type subjects map[int]*SubjectTranscript
	byStudent := make(map[int]subjects)
	for _, rec := range recs {
		if rec.Trimester < 1 || rec.Trimester > 3 {
			continue
		}
		subs, ok := byStudent[rec.StudentID]
		if !ok {
			subs = make(subjects)
			byStudent[rec.StudentID] = subs
		}
		st, ok := subs[rec.SubjectID]
		if !ok {
			st = &SubjectTranscript{SubjectID: rec.SubjectID}
			subs[rec.SubjectID] = st
		}
		st.Periods[rec.Trimester-1] = rec.Result
		st.Scores[rec.Trimester-1] = rec.Scores
	}

	out := make([]Transcript, 0, len(byStudent))
	for studentID, subs := range byStudent {
		t := Transcript{StudentID: studentID, SchoolYear: schoolYear, Subjects: make([]SubjectTranscript, 0, len(subs))}
		for _, st := range subs {
			st.Year = grading.ComputeYearResult(st.Periods[:])
			t.Subjects = append(t.Subjects, *st)
		}
		sort.Slice(t.Subjects, func(i, j int) bool { return t.Subjects[i].SubjectID < t.Subjects[j].SubjectID })
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// Transcript returns the per-subject year results of a student.
func (svc *Service) Transcript(ctx context.Context, studentID int, schoolYear string) (Transcript, error) {
	recs, err := svc.repo.QueryRecords(ctx, RecordFilter{StudentID: studentID, SchoolYear: schoolYear})
	if err != nil {
		return Transcript{}, err
	}
	ts := transcripts(recs, schoolYear)
	if len(ts) == 0 {
		return Transcript{StudentID: studentID, SchoolYear: schoolYear, Subjects: []SubjectTranscript{}}, nil
	}
	return ts[0], nil
}

// ClassSheet returns the transcripts of every student with records in a class.
func (svc *Service) ClassSheet(ctx context.Context, classID int, schoolYear string) (ClassSheet, error) {
	recs, err := svc.repo.QueryRecords(ctx, RecordFilter{ClassID: classID, SchoolYear: schoolYear})
	if err != nil {
		return ClassSheet{}, err
	}
	return ClassSheet{ClassID: classID, SchoolYear: schoolYear, Transcripts: transcripts(recs, schoolYear)}, nil
}

// CreatePeriod opens a new entry window; only one may be active per component, trimester and year.
func (svc *Service) CreatePeriod(ctx context.Context, np NewPeriod) (AssessmentPeriod, error) {
	np.Name = core.CleanString(np.Name)
	np.SchoolYear = core.CleanString(np.SchoolYear)
	np.Notes = core.CleanString(np.Notes)
	if err := svc.validateStruct(np); err != nil {
		return AssessmentPeriod{}, err
	}

	p := AssessmentPeriod{
		Name:       np.Name,
		Component:  np.Component,
		Trimester:  np.Trimester,
		SchoolYear: np.SchoolYear,
		StartsAt:   np.StartsAt.UTC(),
		EndsAt:     np.EndsAt.UTC(),
		Notes:      np.Notes,
		Active:     true,
		CreatedAt:  nowFunc().UTC(),
	}
	p, err := svc.periodRepo.CreatePeriod(ctx, p)
	if err != nil {
		if errors.Cause(err) == ErrPeriodExists {
			return AssessmentPeriod{}, core.NewValidationError(ErrPeriodExists,
				core.FieldError{Field: "component", Error: ErrPeriodExists.Error()})
		}
		return AssessmentPeriod{}, err
	}
	return p, nil
}

// ClosePeriod deactivates a period, freeing its slot for a new one.
func (svc *Service) ClosePeriod(ctx context.Context, id string) (AssessmentPeriod, error) {
	p, err := svc.periodRepo.GetPeriod(ctx, id)
	if err != nil {
		return AssessmentPeriod{}, err
	}
	p.Active = false
	return svc.periodRepo.UpdatePeriod(ctx, p)
}

func (svc *Service) ListPeriods(ctx context.Context, filter PeriodFilter) ([]AssessmentPeriod, error) {
	return svc.periodRepo.QueryPeriods(ctx, filter)
}

// OpenPeriods returns the active periods whose window contains now.
func (svc *Service) OpenPeriods(ctx context.Context, schoolYear string) ([]AssessmentPeriod, error) {
	periods, err := svc.periodRepo.QueryPeriods(ctx, PeriodFilter{SchoolYear: schoolYear, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	now := nowFunc().UTC()
	open := make([]AssessmentPeriod, 0, len(periods))
	for _, p := range periods {
		if p.IsOpen(now) {
			open = append(open, p)
		}
	}
	return open, nil
}
