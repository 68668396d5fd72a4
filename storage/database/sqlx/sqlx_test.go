package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/user"
	"github.com/trezcool/gradebook/storage/database/sqlx"
	"github.com/trezcool/gradebook/tests"
)

var ctx = context.Background()

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)

	usr := testutil.CreateUser(t, repo, "Kalala", "kalala", "kalala@school.cd", "pass-word1", user.RoleTeacher, true)
	assert.NotEmpty(t, usr.ID)

	tests := []struct {
		name    string
		filter  user.GetFilter
		wantErr error
	}{
		{name: "by id", filter: user.GetFilter{ID: usr.ID}},
		{name: "by malformed id", filter: user.GetFilter{ID: "lol"}, wantErr: user.ErrNotFound},
		{name: "by username", filter: user.GetFilter{Username: "kalala"}},
		{name: "by email", filter: user.GetFilter{Email: "kalala@school.cd"}},
		{name: "by username or email", filter: user.GetFilter{UsernameOrEmail: []string{"kalala@school.cd"}}},
		{name: "unknown", filter: user.GetFilter{Username: "nobody"}, wantErr: user.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetUser(ctx, tt.filter)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("GetUser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, usr.ID, got.ID)
				assert.Equal(t, user.RoleTeacher, got.Role)
			}
		})
	}

	err := repo.CheckUsernameUniqueness(ctx, "kalala", "", nil)
	assert.Equal(t, user.ErrUserExists, err)
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "kalala", "", []user.User{usr}))

	usr.Role = user.RoleDirector
	usr.LastLogin = time.Now().UTC()
	_, err = repo.UpdateUser(ctx, usr)
	require.NoError(t, err)
	directors, err := repo.QueryUsers(ctx, user.RoleDirector)
	require.NoError(t, err)
	require.Len(t, directors, 1)
	assert.False(t, directors[0].LastLogin.IsZero())
}

func newGradeService(t *testing.T) (*grade.Service, grade.Repository, user.User) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Mwamba", "mwamba", "mwamba@school.cd", "pass-word1", user.RoleTeacher, true)
	repo := sqlxrepos.NewGradeRepository(db)
	validate, translator := testutil.NewValidator()
	svc := grade.NewService(repo, sqlxrepos.NewPeriodRepository(db), validate, translator, testutil.NewLogger(), &core.Config{})
	return svc, repo, usr
}

func TestGradeRepository(t *testing.T) {
	svc, repo, teacher := newGradeService(t)
	key := grade.Key{StudentID: 1, SubjectID: 10, ClassID: 7, SchoolYear: "2024/2025", Trimester: 1}

	rec, err := svc.Enter(ctx, grade.Entry{Key: key, Scores: grading.SubScores{
		ContinuousAssessment: grading.Score(14),
		WrittenTest1:         grading.Score(13.5),
	}}, teacher)
	require.NoError(t, err)
	assert.False(t, rec.Result.Graded())

	rec, err = svc.Enter(ctx, grade.Entry{Key: key, Scores: grading.SubScores{WrittenTest2: grading.Score(15)}, Notes: "retook the test"}, teacher)
	require.NoError(t, err)

	got, err := repo.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "14.17", grading.FormatScore(got.Result.Average))
	assert.Equal(t, grading.VeryGood, got.Result.Classification)
	assert.Equal(t, "13.50", grading.FormatScore(got.Scores.WrittenTest1))
	assert.Equal(t, "retook the test", got.Notes)
	assert.Equal(t, teacher.ID, got.EnteredBy)

	changes, err := svc.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, grading.WrittenTest2, changes[0].Component)
	assert.False(t, changes[0].Previous.Valid)

	// drift the cached result, then recalculate
	require.NoError(t, repo.SaveResult(ctx, key, grading.PeriodResult{}))
	stats, err := svc.Recalculate(ctx, grade.RecordFilter{ClassID: 7})
	require.NoError(t, err)
	assert.Equal(t, grade.RecalcStats{Scanned: 1, Updated: 1}, stats)

	_, err = repo.GetRecord(ctx, "not-a-uuid")
	assert.Equal(t, grade.ErrRecordNotFound, err)
	err = repo.SaveResult(ctx, grade.Key{StudentID: 2, SubjectID: 10, ClassID: 7, SchoolYear: "2024/2025", Trimester: 1}, grading.PeriodResult{})
	assert.Equal(t, grade.ErrRecordNotFound, err)
}

func TestGradeRepository_concurrentUpserts(t *testing.T) {
	svc, repo, teacher := newGradeService(t)
	key := grade.Key{StudentID: 3, SubjectID: 10, ClassID: 7, SchoolYear: "2024/2025", Trimester: 2}

	var wg sync.WaitGroup
	for _, scores := range []grading.SubScores{
		{ContinuousAssessment: grading.Score(12)},
		{WrittenTest1: grading.Score(15)},
		{WrittenTest2: grading.Score(18)},
	} {
		wg.Add(1)
		go func(scores grading.SubScores) {
			defer wg.Done()
			_, err := svc.Enter(ctx, grade.Entry{Key: key, Scores: scores}, teacher)
			assert.NoError(t, err)
		}(scores)
	}
	wg.Wait()

	rec, err := repo.GetRecordByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, rec.Scores.Complete())
	assert.Equal(t, "15.00", grading.FormatScore(rec.Result.Average))

	changes, err := repo.QueryChanges(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, changes, 2, "the first write creates the record, the others change it")
}

func TestPeriodRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewPeriodRepository(db)
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	p := grade.AssessmentPeriod{
		Name:       "First test",
		Component:  grading.WrittenTest1,
		Trimester:  1,
		SchoolYear: "2024/2025",
		StartsAt:   from,
		EndsAt:     from.AddDate(0, 0, 14),
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	created, err := repo.CreatePeriod(ctx, p)
	require.NoError(t, err)

	_, err = repo.CreatePeriod(ctx, p)
	assert.Equal(t, grade.ErrPeriodExists, err)

	active, err := repo.QueryPeriods(ctx, grade.PeriodFilter{Component: grading.WrittenTest1, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].StartsAt.Equal(from))

	created.Active = false
	_, err = repo.UpdatePeriod(ctx, created)
	require.NoError(t, err)
	_, err = repo.CreatePeriod(ctx, p)
	assert.NoError(t, err, "a closed period frees its slot")

	_, err = repo.GetPeriod(ctx, "nope")
	assert.Equal(t, grade.ErrPeriodNotFound, err)
}
