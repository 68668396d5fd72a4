package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
	"github.com/trezcool/gradebook/storage/database/inmem"
	"github.com/trezcool/gradebook/tests"
)

var ctx = context.Background()

func setup(t *testing.T) (*user.Service, user.Repository) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	validate, translator := testutil.NewValidator()
	return user.NewService(repo, validate, translator, testutil.NewLogger()), repo
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *core.ValidationError", err)
	}
	flds := make(map[string]string, len(vErr.Fields))
	for _, fe := range vErr.Fields {
		flds[fe.Field] = fe.Error
	}
	return flds
}

func TestService_Create(t *testing.T) {
	svc, _ := setup(t)

	usr, err := svc.Create(ctx, user.NewUser{
		Name:            "Mama Ngalula",
		Username:        " Ngalula ",
		Email:           "Ngalula@School.cd",
		Role:            user.RoleTeacher,
		Password:        "chalkboard42",
		PasswordConfirm: "chalkboard42",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "ngalula", usr.Username)
	assert.Equal(t, "ngalula@school.cd", usr.Email)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("chalkboard42"))

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
		wantMsg   string
	}{
		{
			name:      "taken username",
			nu:        user.NewUser{Name: "X", Username: "ngalula", Role: user.RoleTeacher, Password: "whiteboard7", PasswordConfirm: "whiteboard7"},
			wantField: "username",
			wantMsg:   user.ErrUserExists.Error(),
		},
		{
			name:      "unknown role",
			nu:        user.NewUser{Name: "X", Username: "xavier", Role: "janitor", Password: "whiteboard7", PasswordConfirm: "whiteboard7"},
			wantField: "role",
			wantMsg:   "invalid role",
		},
		{
			name:      "no username nor email",
			nu:        user.NewUser{Name: "X", Role: user.RoleStudent, Password: "whiteboard7", PasswordConfirm: "whiteboard7"},
			wantField: "email",
			wantMsg:   "one of username or email is required",
		},
		{
			name:      "short password",
			nu:        user.NewUser{Name: "X", Username: "xavier", Role: user.RoleStudent, Password: "short1", PasswordConfirm: "short1"},
			wantField: "password",
			wantMsg:   "password must contain at least 8 characters",
		},
		{
			name:      "numeric password",
			nu:        user.NewUser{Name: "X", Username: "xavier", Role: user.RoleStudent, Password: "12345678", PasswordConfirm: "12345678"},
			wantField: "password",
			wantMsg:   "password cannot be entirely numeric",
		},
		{
			name:      "password with spaces",
			nu:        user.NewUser{Name: "X", Username: "xavier", Role: user.RoleStudent, Password: "open sesame", PasswordConfirm: "open sesame"},
			wantField: "password",
			wantMsg:   "password must not contain whitespace",
		},
		{
			name:      "password like username",
			nu:        user.NewUser{Name: "X", Username: "kalambayi", Role: user.RoleStudent, Password: "kalambayi1", PasswordConfirm: "kalambayi1"},
			wantField: "password",
			wantMsg:   "password cannot be similar to user attributes",
		},
		{
			name:      "confirmation mismatch",
			nu:        user.NewUser{Name: "X", Username: "xavier", Role: user.RoleStudent, Password: "whiteboard7", PasswordConfirm: "whiteboard8"},
			wantField: "password_confirm",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nu)
			flds := fieldErrors(t, err)
			msg, ok := flds[tt.wantField]
			if !ok {
				t.Fatalf("Create() field errors = %v, want one on %q", flds, tt.wantField)
			}
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			}
		})
	}
}

func TestService_UpdateOrCreate(t *testing.T) {
	svc, repo := setup(t)
	existing := testutil.CreateUser(t, repo, "Old", "mukendi", "mukendi@school.cd", "oldpass99", user.RoleTeacher, false)

	usr, err := svc.UpdateOrCreate(ctx, user.NewUser{
		Name:            "Mukendi",
		Username:        "mukendi",
		Email:           "mukendi@school.cd",
		Role:            user.RoleDirector,
		Password:        "blackboard9",
		PasswordConfirm: "blackboard9",
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, usr.ID)
	assert.Equal(t, user.RoleDirector, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("blackboard9"))

	created, err := svc.UpdateOrCreate(ctx, user.NewUser{
		Name: "Tshala", Email: "tshala@school.cd", Role: user.RoleSecretary,
		Password: "blackboard9", PasswordConfirm: "blackboard9",
	})
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, created.ID)

	users, err := svc.QueryByRole(ctx, "")
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := setup(t)
	active := testutil.CreateUser(t, repo, "Ilunga", "ilunga", "ilunga@school.cd", "goodpass1", user.RoleTeacher, true)
	testutil.CreateUser(t, repo, "Banza", "banza", "banza@school.cd", "goodpass1", user.RoleTeacher, false)

	tests := []struct {
		name    string
		login   string
		pwd     string
		wantErr error
	}{
		{name: "by username", login: "ilunga", pwd: "goodpass1"},
		{name: "by email, any case", login: " Ilunga@School.cd", pwd: "goodpass1"},
		{name: "wrong password", login: "ilunga", pwd: "badpass1", wantErr: user.ErrAuthenticationFailed},
		{name: "unknown user", login: "nobody", pwd: "goodpass1", wantErr: user.ErrAuthenticationFailed},
		{name: "deactivated", login: "banza", pwd: "goodpass1", wantErr: user.ErrAccountDeactivated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.login, tt.pwd)
			if err != tt.wantErr {
				t.Fatalf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, active.ID, usr.ID)
				assert.False(t, usr.LastLogin.IsZero())
			}
		})
	}
}

func TestService_Authorize(t *testing.T) {
	svc, _ := setup(t)

	teacher := user.User{Username: "t", Role: user.RoleTeacher, IsActive: true}
	assert.NoError(t, svc.Authorize(teacher, user.CapGradeEntry))

	err := svc.Authorize(teacher, user.CapPeriodsCreate)
	assert.Equal(t, user.ErrPermissionDenied, errors.Cause(err))

	teacher.IsActive = false
	err = svc.Authorize(teacher, user.CapGradeEntry)
	assert.Equal(t, user.ErrPermissionDenied, errors.Cause(err))
}

func TestService_ResetPassword(t *testing.T) {
	svc, repo := setup(t)
	usr := testutil.CreateUser(t, repo, "Kasongo", "kasongo", "kasongo@school.cd", "firstpass1", user.RoleOperator, true)

	tests := []struct {
		name    string
		rp      user.ResetUserPassword
		wantErr error
	}{
		{name: "unknown login", rp: user.ResetUserPassword{Login: "nobody", Password: "newpass12", PasswordConfirm: "newpass12"}, wantErr: user.ErrNotFound},
		{name: "by username", rp: user.ResetUserPassword{Login: "kasongo", Password: "newpass12", PasswordConfirm: "newpass12"}},
		{name: "by email", rp: user.ResetUserPassword{Login: "KASONGO@school.cd", Password: "otherpass3", PasswordConfirm: "otherpass3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := svc.ResetPassword(ctx, tt.rp)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("ResetPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, usr.ID, updated.ID)
				assert.NoError(t, updated.CheckPassword(tt.rp.Password))
			}
		})
	}

	_, err := svc.ResetPassword(ctx, user.ResetUserPassword{Login: "kasongo", Password: "newpass12", PasswordConfirm: "nope"})
	assert.Contains(t, fieldErrors(t, err), "password_confirm")
}
