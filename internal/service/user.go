package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
	"github.com/sakif/snippetshare/internal/validate"
)

// UserService covers the profile endpoints, the public user listing and
// the account administration done from the management CLI.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

// GetProfile returns the account behind userID.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ProfileUpdate is the body of PUT/PATCH /auth/user. A nil field was not
// sent.
type ProfileUpdate struct {
	Username  *string `json:"username" validate:"omitnil,max=150,username"`
	Email     *string `json:"email" validate:"omitnil,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string `json:"last_name" validate:"omitnil,max=150"`
}

func (p *ProfileUpdate) trim() {
	for _, f := range []*string{p.Username, p.FirstName, p.LastName} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if p.Email != nil {
		*p.Email = normalizeEmail(*p.Email)
	}
}

// UpdateProfile edits the caller's own account. partial=false is PUT,
// where username and email must both be present.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate, partial bool) (*model.User, error) {
	in.trim()

	errs := validate.Check(in, nil)
	if !partial {
		if in.Username == nil {
			errs.Add("username", "This field is required.")
		}
		if in.Email == nil {
			errs.Add("email", "This field is required.")
		}
	}
	if in.Username != nil && *in.Username == "" {
		errs["username"] = []string{"This field may not be blank."}
	}
	if in.Email != nil && *in.Email == "" {
		errs["email"] = []string{"This field may not be blank."}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	} else if !partial {
		user.FirstName = ""
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	} else if !partial {
		user.LastName = ""
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, conflictAsFieldError(err)
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))
	return user, nil
}

// List returns one page of users in sign-up order.
func (s *UserService) List(ctx context.Context, pr PageRequest) (*Page[model.UserSummary], error) {
	pr = pr.normalize()
	if !pr.inRange() {
		return nil, errInvalidPage()
	}

	items, total, err := s.users.List(ctx, pr.window())
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	if err := checkPageInRange(pr, total); err != nil {
		return nil, err
	}
	return &Page[model.UserSummary]{Items: items, Total: total, Page: pr.Page, PageSize: pr.PageSize}, nil
}

// Get returns the public summary of one user.
func (s *UserService) Get(ctx context.Context, id string) (*model.UserSummary, error) {
	return s.users.GetSummary(ctx, strings.TrimSpace(id))
}

// SuperuserInput describes the bootstrap administrator account.
type SuperuserInput struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateSuperuser creates an active staff superuser. It is idempotent:
// when the username or email already exists nothing changes and created is
// false, so deploys can run it every time.
func (s *UserService) CreateSuperuser(ctx context.Context, in SuperuserInput) (user *model.User, created bool, err error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if err := validate.Struct(in); err != nil {
		return nil, false, err
	}

	for _, lookup := range []func() (*model.User, error){
		func() (*model.User, error) { return s.users.GetByUsername(ctx, in.Username) },
		func() (*model.User, error) { return s.users.GetByEmail(ctx, in.Email) },
	} {
		existing, err := lookup()
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, false, fmt.Errorf("service/user: looking up superuser: %w", err)
		}
	}

	if problems := auth.CheckStrength(in.Password, in.Username, in.Email); len(problems) > 0 {
		return nil, false, apperror.ValidationFields(map[string][]string{"password": problems})
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, false, fmt.Errorf("service/user: hashing password: %w", err)
	}

	user = &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("service/user: creating superuser: %w", conflictAsFieldError(err))
	}

	s.logger.Info("superuser created", slog.String("userID", user.ID), slog.String("username", user.Username))
	return user, true, nil
}

// SetActive enables or disables an account. ident is an email address when
// it contains "@", otherwise a username.
func (s *UserService) SetActive(ctx context.Context, ident string, active bool) (*model.User, error) {
	ident = strings.TrimSpace(ident)

	var (
		user *model.User
		err  error
	)
	if strings.Contains(ident, "@") {
		user, err = s.users.GetByEmail(ctx, ident)
	} else {
		user, err = s.users.GetByUsername(ctx, ident)
	}
	if err != nil {
		return nil, err
	}

	if user.IsActive == active {
		return user, nil
	}
	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating %s: %w", user.ID, err)
	}

	s.logger.Info("account status changed", slog.String("userID", user.ID), slog.Bool("active", active))
	return user, nil
}
