package storage

import (
	"context"
	"testing"

	"account_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStorageSuite exercises the behaviour every Storage implementation must
// share. st must be empty.
func runStorageSuite(t *testing.T, st Storage, unknownID string) {
	ctx := context.Background()

	ana := models.User{
		Names:        "Ana",
		Surname:      "Lopez",
		Email:        "ana@x.com",
		PasswordHash: "hash-1",
		Role:         models.RoleStandard,
	}

	created, err := st.CreateUser(ctx, ana)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	t.Run("duplicate email", func(t *testing.T) {
		_, err := st.CreateUser(ctx, ana)
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("get by id and email", func(t *testing.T) {
		byID, err := st.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana@x.com", byID.Email)
		assert.Equal(t, "hash-1", byID.PasswordHash)
		assert.Equal(t, models.RoleStandard, byID.Role)
		assert.False(t, byID.Deleted)

		byEmail, err := st.GetUserByEmail(ctx, "ana@x.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := st.GetUserByEmail(ctx, "ghost@x.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = st.GetUserByID(ctx, unknownID)
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = st.GetUserByID(ctx, "not-an-id")
		assert.ErrorIs(t, err, ErrUserNotFound)

		assert.ErrorIs(t, st.UpdateRole(ctx, unknownID, models.RoleAdmin), ErrUserNotFound)
		assert.ErrorIs(t, st.SoftDelete(ctx, unknownID), ErrUserNotFound)
	})

	t.Run("updates", func(t *testing.T) {
		require.NoError(t, st.UpdatePassword(ctx, created.ID, "hash-2"))
		require.NoError(t, st.UpdateProfile(ctx, created.ID, models.ProfileUpdate{Surname: "Perez", Avatar: "a.png"}))
		require.NoError(t, st.UpdateRole(ctx, created.ID, models.RoleAdmin))

		got, err := st.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash-2", got.PasswordHash)
		assert.Equal(t, "Ana", got.Names, "empty fields are left untouched")
		assert.Equal(t, "Perez", got.Surname)
		assert.Equal(t, "a.png", got.Avatar)
		assert.Equal(t, models.RoleAdmin, got.Role)
	})

	t.Run("soft delete keeps the record", func(t *testing.T) {
		require.NoError(t, st.SoftDelete(ctx, created.ID))

		got, err := st.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, got.Deleted)
	})

	t.Run("list", func(t *testing.T) {
		_, err := st.CreateUser(ctx, models.User{
			Names: "Bob", Surname: "Diaz", Email: "bob@x.com", PasswordHash: "h", Role: models.RoleStandard,
		})
		require.NoError(t, err)

		users, err := st.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)

		emails := []string{users[0].Email, users[1].Email}
		assert.ElementsMatch(t, []string{"ana@x.com", "bob@x.com"}, emails)
	})
}

func TestMemoryStorage(t *testing.T) {
	st := NewMemoryStorage()
	defer st.Close()

	runStorageSuite(t, st, "00000000-0000-0000-0000-000000000000")
}
