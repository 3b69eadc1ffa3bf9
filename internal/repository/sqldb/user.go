package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore reads and writes the users table.
type UserStore struct {
	db *DB
}

const userColumns = `id, username, email, first_name, last_name, password_hash,
	github_id, is_active, is_staff, is_superuser, created_at, updated_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&githubID, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}

// Create inserts a new user. ID and timestamps are filled in place.
// A duplicate username or email comes back as a Conflict with Field set.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := s.db.now()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		nullableInt64(user.GitHubID), user.IsActive, user.IsStaff, user.IsSuperuser,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return s.translateWriteError(err, "creating user")
	}
	return nil
}

// GetByID retrieves a user by internal ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.getOne(ctx, "id", id, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail looks a user up case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.getOne(ctx, "email", email, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByUsername retrieves a user by exact username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getOne(ctx, "username", username, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetByGitHubID retrieves the user linked to a GitHub account.
func (s *UserStore) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	key := fmt.Sprintf("%d", githubID)
	return s.getOne(ctx, "github_id", key, `SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID)
}

func (s *UserStore) getOne(ctx context.Context, by, key, query string, arg any) (*model.User, error) {
	u, err := scanUser(s.db.queryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqldb: getting user by %s: %w", by, err)
	}
	return u, nil
}

// Update writes the profile and flag columns. The password has its own
// method so a profile edit can never clobber a concurrent reset.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.UpdatedAt = s.db.now()

	result, err := s.db.exec(ctx,
		`UPDATE users
		 SET username = ?, email = ?, first_name = ?, last_name = ?, github_id = ?,
		     is_active = ?, is_staff = ?, is_superuser = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username, user.Email, user.FirstName, user.LastName, nullableInt64(user.GitHubID),
		user.IsActive, user.IsStaff, user.IsSuperuser, user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return s.translateWriteError(err, "updating user "+user.ID)
	}
	return rowsAffectedOrNotFound(result, "user", user.ID)
}

// SetPassword replaces the stored password hash.
func (s *UserStore) SetPassword(ctx context.Context, userID, hash string) error {
	result, err := s.db.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, s.db.now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqldb: setting password for %s: %w", userID, err)
	}
	return rowsAffectedOrNotFound(result, "user", userID)
}

// List returns one page of users in sign-up order together with the
// total user count. Each summary carries the IDs of the user's snippets.
func (s *UserStore) List(ctx context.Context, page repository.Page) ([]model.UserSummary, int, error) {
	var total int
	if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqldb: counting users: %w", err)
	}

	rows, err := s.db.query(ctx,
		`SELECT id, username FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqldb: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.UserSummary, 0, page.Limit)
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, 0, fmt.Errorf("sqldb: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqldb: iterating users: %w", err)
	}

	if err := s.attachSnippetIDs(ctx, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetSummary returns one user with their snippet IDs.
func (s *UserStore) GetSummary(ctx context.Context, id string) (*model.UserSummary, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	summaries := []model.UserSummary{{ID: u.ID, Username: u.Username}}
	if err := s.attachSnippetIDs(ctx, summaries); err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

// attachSnippetIDs fills SnippetIDs for every user with a single IN query.
func (s *UserStore) attachSnippetIDs(ctx context.Context, users []model.UserSummary) error {
	if len(users) == 0 {
		return nil
	}

	args := make([]any, len(users))
	index := make(map[string]int, len(users))
	for i, u := range users {
		args[i] = u.ID
		index[u.ID] = i
		users[i].SnippetIDs = []string{}
	}

	rows, err := s.db.query(ctx,
		`SELECT owner_id, id FROM snippets
		 WHERE owner_id IN (`+placeholders(len(users))+`)
		 ORDER BY created_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqldb: listing snippet ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID, snippetID string
		if err := rows.Scan(&ownerID, &snippetID); err != nil {
			return fmt.Errorf("sqldb: scanning snippet id: %w", err)
		}
		i := index[ownerID]
		users[i].SnippetIDs = append(users[i].SnippetIDs, snippetID)
	}
	return rows.Err()
}

func (s *UserStore) translateWriteError(err error, action string) error {
	if isUniqueViolation(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "email"):
			return conflictOn("user", "email")
		case strings.Contains(msg, "username"):
			return conflictOn("user", "username")
		case strings.Contains(msg, "github_id"):
			return conflictOn("user", "github_id")
		}
		return apperror.Conflict("user", "")
	}
	return fmt.Errorf("sqldb: %s: %w", action, err)
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
