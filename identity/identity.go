// Package identity models the active storage identity. An identity is decided
// once at authentication time and carried as a typed value, instead of
// re-deriving "is this a guest?" from string patterns all over the codebase.
package identity

import "strings"

// GuestToken is the literal key suffix used for unauthenticated sessions.
const GuestToken = "guest"

// id prefixes that older client builds issued for unauthenticated sessions
var guestPrefixes = []string{"guest", "anon_", "local_"}

// Identity is the active session identity. The zero value is a guest.
type Identity struct {
	userID string
}

// Guest returns the guest identity.
func Guest() Identity {
	return Identity{}
}

// User returns an identity for the given user id. Empty ids and ids matching
// a recognized guest convention collapse to the guest identity, so a guest id
// can never masquerade as a real account downstream.
func User(id string) Identity {
	if isGuestID(id) {
		return Identity{}
	}
	return Identity{userID: id}
}

func isGuestID(id string) bool {
	if strings.TrimSpace(id) == "" {
		return true
	}
	lower := strings.ToLower(id)
	for _, p := range guestPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// IsGuest reports whether this identity is unauthenticated.
func (i Identity) IsGuest() bool {
	return i.userID == ""
}

// UserID returns the concrete user id and true, or "" and false for guests.
// Guest identities have no server-side id and must never reach the remote
// store as a foreign key.
func (i Identity) UserID() (string, bool) {
	if i.userID == "" {
		return "", false
	}
	return i.userID, true
}

// Token returns the storage key suffix for this identity: the user id, or
// the literal "guest".
func (i Identity) Token() string {
	if i.userID == "" {
		return GuestToken
	}
	return i.userID
}

// ScopedKey builds the identity-scoped storage key for an entity base name:
// "<entityBase>_<token>". At most one identity is active per session, so a
// scoped key isolates one identity's data from another's.
func (i Identity) ScopedKey(entityBase string) string {
	return entityBase + "_" + i.Token()
}

// ScopedKeyFor builds a scoped key for an arbitrary token. Used by guest
// migration, which addresses both the guest and the user namespaces at once.
func ScopedKeyFor(entityBase, token string) string {
	return entityBase + "_" + token
}

func (i Identity) String() string {
	if i.IsGuest() {
		return "guest"
	}
	return "user:" + i.userID
}
