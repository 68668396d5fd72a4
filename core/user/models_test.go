package user

import "testing"

func TestRole_Can(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleAdministrator, CapUsersCreate, true},
		{RoleAdministrator, CapGradeEntry, true},
		{RoleAdministrator, CapOwnGradesView, false},
		{RoleDirector, CapPeriodsCreate, true},
		{RoleDirector, CapUsersCreate, false},
		{RoleSecretary, CapStudentsDelete, true},
		{RoleSecretary, CapGradeEntry, false},
		{RoleTeacher, CapGradeEntry, true},
		{RoleTeacher, CapPeriodsCreate, false},
		{RoleStudent, CapOwnGradesView, true},
		{RoleStudent, CapAcademicsView, false},
		{RoleOperator, CapUsersView, true},
		{RoleOperator, CapUsersEdit, false},
		{Role("janitor"), CapDashboardView, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.cap), func(t *testing.T) {
			if got := tt.role.Can(tt.cap); got != tt.want {
				t.Errorf("Role.Can() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_Can(t *testing.T) {
	usr := User{Role: RoleAdministrator, IsActive: true}
	if !usr.Can(CapUsersView) {
		t.Error("active administrator should view users")
	}
	usr.IsActive = false
	if usr.Can(CapUsersView) {
		t.Error("deactivated users should hold no capability")
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles {
		got, err := ParseRole(string(r))
		if err != nil || got != r {
			t.Errorf("ParseRole(%q) = %v, %v, want %v", r, got, err, r)
		}
	}
	if _, err := ParseRole("Teacher"); err == nil {
		t.Error("ParseRole() should be case sensitive")
	}

	var r Role
	if err := r.UnmarshalText([]byte("student")); err != nil || r != RoleStudent {
		t.Errorf("UnmarshalText() = %v, %v, want %v", r, err, RoleStudent)
	}
	if err := r.UnmarshalText([]byte("dean")); err == nil {
		t.Error("UnmarshalText() should reject unknown roles")
	}
}

func TestUser_CheckPassword(t *testing.T) {
	var usr User
	if err := usr.SetPassword("s3cret-pass"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if err := usr.CheckPassword("s3cret-pass"); err != nil {
		t.Errorf("CheckPassword() error = %v, want nil", err)
	}
	if err := usr.CheckPassword("wrong"); err == nil {
		t.Error("CheckPassword() should fail on a wrong password")
	}
}
