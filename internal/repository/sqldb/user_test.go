package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test a fresh database that disappears on Close.
// t.Cleanup closes it when the test (and its subtests) finish.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, SQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// createTestUser inserts a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$hash",
		IsActive:     true,
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Username:     "alice",
		Email:        "  Alice@Example.COM ",
		FirstName:    "Alice",
		PasswordHash: "$2a$04$hash",
		IsActive:     true,
	}
	err := db.Users().Create(context.Background(), user)
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, "alice@example.com", user.Email, "email should be normalised")
}

func TestUserCreate_Duplicates(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	tests := []struct {
		name      string
		user      *model.User
		wantField string
	}{
		{
			name:      "same email different case",
			user:      &model.User{Username: "alice2", Email: "ALICE@example.com", PasswordHash: "x"},
			wantField: "email",
		},
		{
			name:      "same username",
			user:      &model.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"},
			wantField: "username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Users().Create(context.Background(), tt.user)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrConflict), "want ErrConflict, got %v", err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestUserLookups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	byEmail, err := db.Users().GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	byName, err := db.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)
	assert.True(t, byName.IsActive)
	assert.Nil(t, byName.GitHubID)

	_, err = db.Users().GetByID(ctx, "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = db.Users().GetByGitHubID(ctx, 42)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUserUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	ghID := int64(777)
	alice.FirstName = "Alice"
	alice.LastName = "Liddell"
	alice.GitHubID = &ghID
	require.NoError(t, db.Users().Update(ctx, alice))

	got, err := db.Users().GetByGitHubID(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, "Liddell", got.LastName)

	t.Run("taking another user's email is a conflict", func(t *testing.T) {
		alice.Email = "bob@example.com"
		err := db.Users().Update(ctx, alice)
		assert.True(t, errors.Is(err, apperror.ErrConflict))
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		err := db.Users().Update(ctx, &model.User{ID: "missing", Username: "x", Email: "x@example.com"})
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}

func TestUserSetPassword(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	require.NoError(t, db.Users().SetPassword(ctx, alice.ID, "$2a$04$newhash"))

	got, err := db.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$04$newhash", got.PasswordHash)

	err = db.Users().SetPassword(ctx, "missing", "x")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUserListAndSummary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	createTestUser(t, db, "carol")

	first := createTestSnippet(t, db, alice.ID, "one", "print(1)")
	second := createTestSnippet(t, db, alice.ID, "two", "print(2)")
	createTestSnippet(t, db, bob.ID, "three", "print(3)")

	users, total, err := db.Users().List(ctx, repository.Page{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, users[0].SnippetIDs)
	assert.Len(t, users[1].SnippetIDs, 1)

	page2, _, err := db.Users().List(ctx, repository.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "carol", page2[0].Username)
	assert.NotNil(t, page2[0].SnippetIDs, "users without snippets get an empty list, not nil")
	assert.Empty(t, page2[0].SnippetIDs)

	summary, err := db.Users().GetSummary(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", summary.Username)
	assert.Len(t, summary.SnippetIDs, 1)

	_, err = db.Users().GetSummary(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
