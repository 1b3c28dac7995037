package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/testfixtures"
)

func TestUserService_EnsureAdmin(t *testing.T) {
	t.Parallel()

	t.Run("creates a new administrator", func(t *testing.T) {
		t.Parallel()
		harness := testfixtures.NewSQLiteHarness(t)
		svc := testfixtures.NewServiceFactory().NewUserService(harness.Store)

		user, created, err := svc.EnsureAdmin(context.Background(), application.EnsureAdminParams{
			Email:    "Root@Example.com",
			Password: "admin-password",
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, application.RoleAdmin, user.Role)
		assert.Equal(t, "root@example.com", user.Email)
		assert.Equal(t, "Administrator", user.Name)
	})

	t.Run("promotes an existing account", func(t *testing.T) {
		t.Parallel()
		harness := testfixtures.NewSQLiteHarness(t)
		svc := testfixtures.NewServiceFactory().NewUserService(harness.Store)
		member := harness.SeedUser(testfixtures.WithUserEmail("member@example.com"))

		user, created, err := svc.EnsureAdmin(context.Background(), application.EnsureAdminParams{Email: "member@example.com"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, member.ID, user.ID)

		stored, err := harness.Repos.Users.GetUser(context.Background(), member.ID)
		require.NoError(t, err)
		assert.Equal(t, application.RoleAdmin, stored.Role)
		assert.Equal(t, member.PasswordHash, stored.PasswordHash)
	})

	t.Run("requires a valid password for new accounts", func(t *testing.T) {
		t.Parallel()
		harness := testfixtures.NewSQLiteHarness(t)
		svc := testfixtures.NewServiceFactory().NewUserService(harness.Store)

		_, _, err := svc.EnsureAdmin(context.Background(), application.EnsureAdminParams{Email: "new@example.com", Password: "short"})
		var vErr *application.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "password")
	})
}
