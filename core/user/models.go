package user

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Role is the kind of account; the set is closed.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleSecretary     Role = "secretary"
	RoleDirector      Role = "director"
	RoleTeacher       Role = "teacher"
	RoleStudent       Role = "student"
	RoleOperator      Role = "operator"
)

var AllRoles = []Role{RoleAdministrator, RoleSecretary, RoleDirector, RoleTeacher, RoleStudent, RoleOperator}

func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", errors.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Capability is a permission tag checked before an operation runs.
type Capability string

const (
	CapDashboardView Capability = "dashboard:view"

	CapAcademicsView   Capability = "academics:view"
	CapAcademicsCreate Capability = "academics:create"
	CapAcademicsEdit   Capability = "academics:edit"
	CapAcademicsDelete Capability = "academics:delete"
	CapGradeEntry      Capability = "academics:grade-entry"
	CapOwnGradesView   Capability = "academics:own-grades"

	CapStudentsView   Capability = "students:view"
	CapStudentsCreate Capability = "students:create"
	CapStudentsEdit   Capability = "students:edit"
	CapStudentsDelete Capability = "students:delete"

	CapTeachersView   Capability = "teachers:view"
	CapTeachersCreate Capability = "teachers:create"
	CapTeachersEdit   Capability = "teachers:edit"
	CapTeachersDelete Capability = "teachers:delete"

	CapSettingsView   Capability = "settings:view"
	CapSettingsCreate Capability = "settings:create"
	CapSettingsEdit   Capability = "settings:edit"
	CapSettingsDelete Capability = "settings:delete"

	CapUsersView   Capability = "users:view"
	CapUsersCreate Capability = "users:create"
	CapUsersEdit   Capability = "users:edit"
	CapUsersDelete Capability = "users:delete"

	CapPeriodsView   Capability = "periods:view"
	CapPeriodsCreate Capability = "periods:create"
	CapPeriodsEdit   Capability = "periods:edit"
	CapPeriodsDelete Capability = "periods:delete"

	CapProfileView Capability = "profile:view"
	CapProfileEdit Capability = "profile:edit"
)

func caps(cs ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(cs))
	for _, c := range cs {
		set[c] = struct{}{}
	}
	return set
}

// Permissions maps each role to the capabilities it holds.
var Permissions = map[Role]map[Capability]struct{}{
	RoleAdministrator: caps(
		CapDashboardView,
		CapAcademicsView, CapAcademicsCreate, CapAcademicsEdit, CapAcademicsDelete, CapGradeEntry,
		CapStudentsView, CapStudentsCreate, CapStudentsEdit, CapStudentsDelete,
		CapTeachersView, CapTeachersCreate, CapTeachersEdit, CapTeachersDelete,
		CapSettingsView, CapSettingsCreate, CapSettingsEdit, CapSettingsDelete,
		CapUsersView, CapUsersCreate, CapUsersEdit, CapUsersDelete,
		CapPeriodsView, CapPeriodsCreate, CapPeriodsEdit, CapPeriodsDelete,
	),
	RoleSecretary: caps(
		CapDashboardView,
		CapAcademicsView, CapAcademicsCreate, CapAcademicsEdit,
		CapStudentsView, CapStudentsCreate, CapStudentsEdit, CapStudentsDelete,
	),
	RoleDirector: caps(
		CapDashboardView,
		CapAcademicsView, CapAcademicsCreate, CapAcademicsEdit, CapAcademicsDelete, CapGradeEntry,
		CapStudentsView, CapStudentsCreate, CapStudentsEdit, CapStudentsDelete,
		CapTeachersView, CapTeachersCreate, CapTeachersEdit, CapTeachersDelete,
		CapSettingsView,
		CapPeriodsView, CapPeriodsCreate, CapPeriodsEdit, CapPeriodsDelete,
	),
	RoleTeacher: caps(
		CapDashboardView,
		CapAcademicsView, CapGradeEntry,
		CapProfileView, CapProfileEdit,
	),
	RoleStudent: caps(
		CapOwnGradesView,
		CapProfileView, CapProfileEdit,
	),
	RoleOperator: caps(
		CapDashboardView,
		CapAcademicsView,
		CapStudentsView,
		CapTeachersView,
		CapSettingsView,
		CapUsersView,
	),
}

// Can reports whether the role holds capability c. Unknown roles hold nothing.
func (r Role) Can(c Capability) bool {
	_, ok := Permissions[r][c]
	return ok
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Role         Role      `json:"role"`
	StudentID    int       `json:"student_id,omitempty"` // set for student accounts
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) Can(c Capability) bool {
	return u.IsActive && u.Role.Can(c)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            Role   `json:"role" validate:"required,role"`
	StudentID       int    `json:"student_id" validate:"omitempty,gt=0"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// ResetUserPassword sets a new password for the user found by Login (username or email).
type ResetUserPassword struct {
	Login           string `json:"login" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string // [username, email]; matches either
}
