package manager

import (
	"context"
	"fmt"

	vaultErrors "github.com/fitvault/fitvault/errors"
	"github.com/fitvault/fitvault/identity"
	"github.com/fitvault/fitvault/record"
)

// HasLocalData reports whether any guest profile record exists locally. The
// sign-in flow uses this to decide whether to offer a migration at all.
func (m *Manager) HasLocalData(ctx context.Context) (bool, error) {
	guest := identity.Guest()
	for _, kind := range record.ProfileKinds() {
		ok, err := m.store.HasKey(ctx, guest.ScopedKey(kind.BaseKey()))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// MigrateGuestDataToUser moves every guest profile record into the namespace
// of the given user. Each base key migrates independently: copy, verify the
// copy exists, then remove the guest original. A key that fails is reported
// and skipped; its guest data stays in place so a retry can pick it up.
//
// The pass is idempotent. Keys with no guest data are skipped, and a guest
// key whose user-side copy already exists is treated as previously migrated:
// the guest original is removed without overwriting the user's record.
func (m *Manager) MigrateGuestDataToUser(ctx context.Context, userID string) (MigrationResult, error) {
	ident := identity.User(userID)
	uid, ok := ident.UserID()
	if !ok {
		return MigrationResult{}, vaultErrors.New(vaultErrors.OpMigrate,
			fmt.Errorf("cannot migrate guest data to a guest id %q", userID))
	}

	result := MigrationResult{
		Success:      true,
		MigratedKeys: []string{},
		Errors:       []string{},
	}

	guest := identity.Guest()
	for _, kind := range record.ProfileKinds() {
		base := kind.BaseKey()
		src := guest.ScopedKey(base)
		dst := identity.ScopedKeyFor(base, uid)

		mu := m.lockKey(dst)
		mu.Lock()
		migrated, err := m.migrateKey(ctx, src, dst)
		mu.Unlock()

		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", base, err))
			m.logger.LogError(ctx, err, "guest key migration failed")
			continue
		}
		if migrated {
			result.MigratedKeys = append(result.MigratedKeys, base)
		}
	}

	if result.Success {
		if err := m.recordActiveIdentity(ctx, uid); err != nil {
			m.logger.LogError(ctx, err, "failed to record active identity")
		}
	}

	m.logger.Info("guest migration finished",
		"user_migrated", len(result.MigratedKeys),
		"errors", len(result.Errors))
	return result, nil
}

// migrateKey moves one base key from the guest to the user namespace. Returns
// whether any guest data was moved or cleaned up.
func (m *Manager) migrateKey(ctx context.Context, src, dst string) (bool, error) {
	hasGuest, err := m.store.HasKey(ctx, src)
	if err != nil {
		return false, err
	}
	if !hasGuest {
		return false, nil
	}

	hasUser, err := m.store.HasKey(ctx, dst)
	if err != nil {
		return false, err
	}
	if !hasUser {
		if err := m.store.CopyKey(ctx, src, dst); err != nil {
			return false, err
		}
		// verify before destroying the source
		ok, err := m.store.HasKey(ctx, dst)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("copy of %q did not land", src)
		}
	}

	if err := m.store.RemoveData(ctx, src); err != nil {
		return false, err
	}
	return true, nil
}

// recordActiveIdentity persists the signed-in identity token on the schema so
// a restart can tell whose namespace was last active.
func (m *Manager) recordActiveIdentity(ctx context.Context, token string) error {
	schema, err := m.store.Schema(ctx)
	if err != nil {
		return err
	}
	if schema.User.ActiveIdentityToken == token {
		return nil
	}
	schema.User.ActiveIdentityToken = token
	schema.UpdatedAt = m.now()
	return m.store.SaveSchema(ctx, schema)
}
