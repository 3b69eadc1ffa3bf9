package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/mail"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory repositories. They follow the same contract as the
// sqldb stores (IDs assigned on Create, NotFound for missing rows, Conflict
// with Field set on duplicates) so the services can't tell the difference.

var (
	_ repository.UserRepository       = (*fakeUserRepo)(nil)
	_ repository.SnippetRepository    = (*fakeSnippetRepo)(nil)
	_ repository.ResetTokenRepository = (*fakeResetRepo)(nil)
	_ repository.RevokedTokenStore    = (*fakeRevokedStore)(nil)
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  []*model.User
	nextID int
	// set to simulate a database failure on every call
	err error
	// snippetIDs feeds List/GetSummary
	snippetIDs map[string][]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{snippetIDs: map[string][]string{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := f.checkUnique(user); err != nil {
		return err
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users = append(f.users, &copied)
	return nil
}

func (f *fakeUserRepo) checkUnique(user *model.User) error {
	for _, u := range f.users {
		if u.ID == user.ID {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate email", Field: "email"}
		}
		if u.Username == user.Username {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate username", Field: "username"}
		}
	}
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool, what string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", what)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username }, username)
}

func (f *fakeUserRepo) GetByGitHubID(_ context.Context, id int64) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.GitHubID != nil && *u.GitHubID == id }, fmt.Sprint(id))
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := f.checkUnique(user); err != nil {
		return err
	}
	for i, u := range f.users {
		if u.ID == user.ID {
			copied := *user
			copied.PasswordHash = u.PasswordHash
			f.users[i] = &copied
			return nil
		}
	}
	return apperror.NotFound("user", user.ID)
}

func (f *fakeUserRepo) SetPassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return apperror.NotFound("user", userID)
}

func (f *fakeUserRepo) List(_ context.Context, page repository.Page) ([]model.UserSummary, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []model.UserSummary
	for i := page.Offset; i < len(f.users) && len(out) < page.Limit; i++ {
		u := f.users[i]
		out = append(out, model.UserSummary{ID: u.ID, Username: u.Username, SnippetIDs: f.snippetIDs[u.ID]})
	}
	return out, len(f.users), nil
}

func (f *fakeUserRepo) GetSummary(ctx context.Context, id string) (*model.UserSummary, error) {
	u, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.UserSummary{ID: u.ID, Username: u.Username, SnippetIDs: f.snippetIDs[u.ID]}, nil
}

// add stores a user directly, bypassing the services.
func (f *fakeUserRepo) add(t *testing.T, u model.User) *model.User {
	t.Helper()
	require.NoError(t, f.Create(context.Background(), &u))
	return &u
}

type fakeSnippetRepo struct {
	mu       sync.Mutex
	snippets []*model.Snippet
	nextID   int
	users    *fakeUserRepo // resolves OwnerUsername like the JOIN does
	clock    time.Time
}

func newFakeSnippetRepo(users *fakeUserRepo) *fakeSnippetRepo {
	return &fakeSnippetRepo{users: users, clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeSnippetRepo) owner(id string) string {
	if u, err := f.users.GetByID(context.Background(), id); err == nil {
		return u.Username
	}
	return ""
}

func (f *fakeSnippetRepo) Create(_ context.Context, sn *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.clock = f.clock.Add(time.Minute)
	sn.ID = fmt.Sprintf("snip-%d", f.nextID)
	sn.CreatedAt = f.clock
	sn.UpdatedAt = f.clock
	copied := *sn
	f.snippets = append(f.snippets, &copied)
	return nil
}

func (f *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sn := range f.snippets {
		if sn.ID == id {
			copied := *sn
			copied.OwnerUsername = f.owner(sn.OwnerID)
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("snippet", id)
}

func (f *fakeSnippetRepo) List(_ context.Context, filter model.SnippetFilter, page repository.Page) ([]model.Snippet, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []model.Snippet
	for _, sn := range f.snippets {
		if filter.OwnerID != "" && sn.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Language != "" && !strings.EqualFold(sn.Language, filter.Language) {
			continue
		}
		if filter.TitleContains != "" && !strings.Contains(strings.ToLower(sn.Title), strings.ToLower(filter.TitleContains)) {
			continue
		}
		if filter.CodeContains != "" && !strings.Contains(strings.ToLower(sn.Code), strings.ToLower(filter.CodeContains)) {
			continue
		}
		if filter.CreatedAfter != nil && sn.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && sn.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		copied := *sn
		copied.OwnerUsername = f.owner(sn.OwnerID)
		matched = append(matched, copied)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if page.Offset >= total {
		return []model.Snippet{}, total, nil
	}
	end := min(page.Offset+page.Limit, total)
	return matched[page.Offset:end], total, nil
}

func (f *fakeSnippetRepo) Update(_ context.Context, sn *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.snippets {
		if existing.ID == sn.ID {
			copied := *sn
			f.snippets[i] = &copied
			return nil
		}
	}
	return apperror.NotFound("snippet", sn.ID)
}

func (f *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sn := range f.snippets {
		if sn.ID == id {
			f.snippets = append(f.snippets[:i], f.snippets[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("snippet", id)
}

type fakeResetRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.PasswordResetToken // keyed by ID
	nextID int
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{tokens: map[string]*model.PasswordResetToken{}}
}

func (f *fakeResetRepo) Create(_ context.Context, t *model.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = fmt.Sprintf("reset-%d", f.nextID)
	copied := *t
	f.tokens[t.ID] = &copied
	return nil
}

func (f *fakeResetRepo) GetByHash(_ context.Context, hash string) (*model.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == hash {
			copied := *t
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("reset token", "(redacted)")
}

func (f *fakeResetRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, id)
	return nil
}

func (f *fakeResetRepo) DeleteForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, id)
		}
	}
	return nil
}

func (f *fakeResetRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, t := range f.tokens {
		if t.Expired(now) {
			delete(f.tokens, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeResetRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakeRevokedStore struct {
	mu      sync.Mutex
	revoked map[string]model.RevokedToken
}

func newFakeRevokedStore() *fakeRevokedStore {
	return &fakeRevokedStore{revoked: map[string]model.RevokedToken{}}
}

func (f *fakeRevokedStore) Revoke(_ context.Context, t model.RevokedToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[t.JTI] = t
	return nil
}

func (f *fakeRevokedStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

// recordingQueue captures queued mail instead of sending it.
type recordingQueue struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (q *recordingQueue) Enqueue(msg mail.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return true
}

func (q *recordingQueue) sent() []mail.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]mail.Message(nil), q.msgs...)
}

// recordingSender is a mail.Sender for the synchronous contact path.
type recordingSender struct {
	msgs []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRenderer(t *testing.T) *mail.Renderer {
	t.Helper()
	r, err := mail.NewRenderer("Code Snippets", "http://localhost:3000")
	require.NoError(t, err)
	return r
}

// authFixture bundles an AuthService with handles on its fakes.
type authFixture struct {
	svc     *AuthService
	users   *fakeUserRepo
	resets  *fakeResetRepo
	revoked *fakeRevokedStore
	tokens  *auth.TokenService
	queue   *recordingQueue
	now     time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-32-characters!!")
	require.NoError(t, err)

	f := &authFixture{
		users:   newFakeUserRepo(),
		resets:  newFakeResetRepo(),
		revoked: newFakeRevokedStore(),
		tokens:  tokens,
		queue:   &recordingQueue{},
		now:     time.Now(),
	}
	f.svc = NewAuthService(AuthDeps{
		Users:   f.users,
		Resets:  f.resets,
		Revoked: f.revoked,
		Tokens:  tokens,
		// Cost 4 is the bcrypt minimum and keeps the tests fast.
		Passwords: auth.NewPasswordServiceForTest(4),
		Renderer:  testRenderer(t),
		Mail:      f.queue,
		Logger:    testLogger(),
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

// registerAlice creates an active user through the service.
func (f *authFixture) registerAlice(t *testing.T) *model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "correct-horse-battery",
		Password2: "correct-horse-battery",
	})
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// fieldErrors extracts the field map of a validation error.
func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	require.ErrorIs(t, err, apperror.ErrValidation)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Detail()
}
