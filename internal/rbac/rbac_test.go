package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleCrew, ActionRead, true},
		{RoleCrew, ActionWrite, false},
		{RoleInstructor, ActionRead, true},
		{RoleInstructor, ActionWrite, true},
		{RoleInstructor, ActionAdmin, false},
		{RoleAdmin, ActionWrite, true},
		{RoleAdmin, ActionAdmin, true},
		{Role("unknown"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("instructor") != RoleInstructor {
		t.Errorf("expected instructor to normalize to itself")
	}
	if Normalize("superuser") != RoleCrew {
		t.Errorf("unknown roles should normalize to crew")
	}
}
