package models

import "testing"

func TestUserCanAccess(t *testing.T) {
	cases := []struct {
		role  string
		level string
		want  bool
	}{
		{RoleUser, AccessFree, true},
		{RoleUser, AccessPro, false},
		{RolePro, AccessPro, true},
		{RoleAdmin, AccessPro, true},
		{"", "", true},
	}
	for _, tc := range cases {
		if got := (User{Role: tc.role}).CanAccess(tc.level); got != tc.want {
			t.Fatalf("role %q level %q: got %v want %v", tc.role, tc.level, got, tc.want)
		}
	}
}

func TestPlaylistContains(t *testing.T) {
	p := Playlist{VideoIDs: []string{"a", "b"}}
	if !p.Contains("b") || p.Contains("c") {
		t.Fatalf("unexpected membership result for %v", p.VideoIDs)
	}
}
