package identity

import "testing"

func TestUserCollapsesGuestConventions(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		isGuest bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"guest literal", "guest", true},
		{"guest prefixed", "guest-1234", true},
		{"anon prefixed", "anon_8fa2", true},
		{"local prefixed", "local_device", true},
		{"uppercase guest", "GUEST-99", true},
		{"real uuid", "c7a1f2d4-9b0e-4f6a-8d3c-2e5b7a901234", false},
		{"plain id", "user-42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := User(tt.id)
			if id.IsGuest() != tt.isGuest {
				t.Errorf("User(%q).IsGuest() = %v, want %v", tt.id, id.IsGuest(), tt.isGuest)
			}
		})
	}
}

func TestZeroValueIsGuest(t *testing.T) {
	var id Identity
	if !id.IsGuest() {
		t.Error("zero value should be guest")
	}
	if id.Token() != GuestToken {
		t.Errorf("Token() = %q, want %q", id.Token(), GuestToken)
	}
	if _, ok := id.UserID(); ok {
		t.Error("guest should have no user id")
	}
}

func TestScopedKey(t *testing.T) {
	guest := Guest()
	if got := guest.ScopedKey("personalInfo"); got != "personalInfo_guest" {
		t.Errorf("ScopedKey = %q, want personalInfo_guest", got)
	}

	user := User("abc-123")
	if got := user.ScopedKey("fitnessGoals"); got != "fitnessGoals_abc-123" {
		t.Errorf("ScopedKey = %q, want fitnessGoals_abc-123", got)
	}

	if got := ScopedKeyFor("dietPreferences", "abc-123"); got != "dietPreferences_abc-123" {
		t.Errorf("ScopedKeyFor = %q", got)
	}
}

func TestUserIDRoundTrip(t *testing.T) {
	id := User("abc-123")
	uid, ok := id.UserID()
	if !ok || uid != "abc-123" {
		t.Errorf("UserID() = %q, %v", uid, ok)
	}
}
