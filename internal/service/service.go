// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services accept plain Go values and return domain errors from apperror.
// They never see an *http.Request, so the same rules apply whether the
// caller is a handler, the management CLI or a test.
//
// DEPENDENCY INJECTION:
// Services take repository interfaces, not *sqldb.DB. Tests pass in-memory
// fakes (see fakes_test.go); production passes the sqldb stores.
package service

import (
	"errors"
	"math"
	"strings"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/mail"
	"github.com/sakif/snippetshare/internal/repository"
)

// Pagination limits.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// MailQueue accepts messages for background delivery. *mail.Dispatcher
// implements it; Enqueue never blocks.
type MailQueue interface {
	Enqueue(msg mail.Message) bool
}

// PageRequest is a 1-based page number and a page size.
type PageRequest struct {
	Page     int
	PageSize int
}

// normalize applies the defaults and clamps the page size.
func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// window is the LIMIT/OFFSET for p. Callers check inRange first so the
// offset cannot overflow.
func (p PageRequest) window() repository.Page {
	return repository.Page{Limit: p.PageSize, Offset: (p.Page - 1) * p.PageSize}
}

// inRange reports whether the offset of p fits in an int.
func (p PageRequest) inRange() bool {
	return p.Page-1 <= math.MaxInt/p.PageSize
}

// Page is one page of a listing.
type Page[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
}

// pageCount is the number of pages needed for total items, at least 1.
func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total-1)/size + 1
}

func (p *Page[T]) HasNext() bool     { return p.Page < pageCount(p.Total, p.PageSize) }
func (p *Page[T]) HasPrevious() bool { return p.Page > 1 }

func errInvalidPage() error {
	return &apperror.AppError{Err: apperror.ErrNotFound, Message: "Invalid page."}
}

// checkPageInRange rejects a page past the end. Page 1 is always valid,
// even for an empty listing.
func checkPageInRange(p PageRequest, total int) error {
	if p.Page > pageCount(total, p.PageSize) {
		return errInvalidPage()
	}
	return nil
}

// conflictAsFieldError turns a unique-constraint Conflict from the
// repository into the 400 field error the API reports for duplicates.
// Other errors pass through unchanged.
func conflictAsFieldError(err error) error {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrConflict) {
		return err
	}
	switch appErr.Field {
	case "email":
		return apperror.ValidationFields(map[string][]string{
			"email": {"This email is already registered. Please use a different email address."},
		})
	case "username":
		return apperror.ValidationFields(map[string][]string{
			"username": {"This username is already taken. Please choose a different username."},
		})
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
