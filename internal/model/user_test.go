package model

import "testing"

func TestNormalizeRole(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want Role
	}{
		{name: "admin", raw: "admin", want: RoleAdmin},
		{name: "client", raw: "client", want: RoleClient},
		{name: "absent", raw: "", want: RoleClient},
		{name: "unrecognized", raw: "superuser", want: RoleClient},
		{name: "case sensitive", raw: "Admin", want: RoleClient},
		{name: "whitespace", raw: " admin", want: RoleClient},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeRole(tc.raw); got != tc.want {
				t.Errorf("NormalizeRole(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestRole_IsValid(t *testing.T) {
	if !RoleAdmin.IsValid() || !RoleClient.IsValid() {
		t.Error("recognized roles must be valid")
	}
	if Role("superuser").IsValid() {
		t.Error("unrecognized role must not be valid")
	}
}
