package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/pkg/enums"
	"github.com/bookhive/bookhive-backend/pkg/errors"
)

const usersDDL = `
CREATE TABLE users (
  id TEXT PRIMARY KEY,
  role TEXT NOT NULL,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  phone_number TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func newTestRepo(t *testing.T) Repository {
	t.Helper()

	dsn := fmt.Sprintf("file:users_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(usersDDL).Error)
	return NewRepository(conn)
}

func TestCreateAndFindUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := CreateUserInput{
		Role:        enums.UserRoleOwner,
		FullName:    "Dana Whitfield",
		Email:       "dana@example.com",
		PhoneNumber: "+15550000001",
	}.ToModel()
	require.NoError(t, repo.Create(ctx, user))

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, enums.UserRoleOwner, byID.Role)

	byEmail, err := repo.FindByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := CreateUserInput{
		Role:        enums.UserRoleProvider,
		FullName:    "Sam Ortiz",
		Email:       "sam@example.com",
		PhoneNumber: "+15550000002",
	}.ToModel()
	require.NoError(t, repo.Create(ctx, first))

	dup := CreateUserInput{
		Role:        enums.UserRoleOwner,
		FullName:    "Sam Imposter",
		Email:       "sam@example.com",
		PhoneNumber: "+15550000003",
	}.ToModel()
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	require.Equal(t, errors.CodeConflict, errors.CodeOf(err))
}

func TestFindMissingUserIsNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, errors.CodeNotFound, errors.CodeOf(err))
}
