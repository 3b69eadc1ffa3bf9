package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/snippetshare/internal/apperror"
	"github.com/sakif/snippetshare/internal/highlight"
	"github.com/sakif/snippetshare/internal/metrics"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/repository"
	"github.com/sakif/snippetshare/internal/validate"
)

// Validation limits.
const (
	MaxTitleLength = 100
	MaxCodeLength  = 100000 // ~100KB of code
)

// SnippetService handles business logic for code snippets.
//
// VISIBILITY:
// viewerID is the authenticated user's ID, or "" for an anonymous caller.
// A signed-in user works inside their own collection: someone else's
// snippet looks exactly like a missing one (404), so IDs cannot be probed.
// Anonymous callers may read everything but write nothing; the HTTP layer
// rejects anonymous writes before they get here.
type SnippetService struct {
	repo    repository.SnippetRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSnippetService creates a new SnippetService. m may be nil.
func NewSnippetService(repo repository.SnippetRepository, m *metrics.Metrics, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

// SnippetInput carries the writable fields. A nil pointer means "not
// sent", which matters for PATCH: only the fields present are changed.
type SnippetInput struct {
	Title    *string `json:"title" validate:"omitnil,max=100"`
	Code     *string `json:"code"`
	LineNos  *bool   `json:"linenos"`
	Language *string `json:"language" validate:"omitnil,language"`
	Style    *string `json:"style" validate:"omitnil,style"`
}

// check validates in. partial=false (create, PUT) requires code.
func (in SnippetInput) check(partial bool) error {
	errs := validate.Check(in, nil)

	switch {
	case in.Code == nil:
		if !partial {
			errs.Add("code", "This field is required.")
		}
	case strings.TrimSpace(*in.Code) == "":
		errs.Add("code", "This field may not be blank.")
	case utf8.RuneCountInString(*in.Code) > MaxCodeLength:
		errs.Add("code", fmt.Sprintf("Ensure this field has no more than %d characters.", MaxCodeLength))
	}

	return errs.Err()
}

// apply copies the fields present in in onto sn. Language and style are
// stored lower-cased so filters and the highlighter agree on the name.
func (in SnippetInput) apply(sn *model.Snippet) {
	if in.Title != nil {
		sn.Title = strings.TrimSpace(*in.Title)
	}
	if in.Code != nil {
		sn.Code = *in.Code
	}
	if in.LineNos != nil {
		sn.LineNos = *in.LineNos
	}
	if in.Language != nil {
		sn.Language = strings.ToLower(*in.Language)
	}
	if in.Style != nil {
		sn.Style = strings.ToLower(*in.Style)
	}
}

// Create validates and saves a new snippet owned by ownerID.
func (s *SnippetService) Create(ctx context.Context, ownerID string, in SnippetInput) (*model.Snippet, error) {
	if err := in.check(false); err != nil {
		return nil, err
	}

	sn := &model.Snippet{
		OwnerID:  ownerID,
		Language: highlight.DefaultLanguage,
		Style:    highlight.DefaultStyle,
	}
	in.apply(sn)

	if err := s.render(sn); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, sn); err != nil {
		return nil, fmt.Errorf("service/snippet: creating snippet: %w", err)
	}

	// Re-read so OwnerUsername (a JOIN) is filled for the response.
	created, err := s.repo.GetByID(ctx, sn.ID)
	if err != nil {
		return nil, fmt.Errorf("service/snippet: reloading snippet %s: %w", sn.ID, err)
	}

	s.metrics.SnippetCreated()
	s.logger.Info("snippet created",
		slog.String("id", created.ID),
		slog.String("owner", ownerID),
		slog.String("language", created.Language),
	)
	return created, nil
}

// Get returns a snippet visible to viewerID.
func (s *SnippetService) Get(ctx context.Context, viewerID, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.NotFound("snippet", id)
	}

	sn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && sn.OwnerID != viewerID {
		return nil, apperror.NotFound("snippet", id)
	}
	return sn, nil
}

// List returns one page of the snippets visible to viewerID, newest first.
func (s *SnippetService) List(ctx context.Context, viewerID string, filter model.SnippetFilter, pr PageRequest) (*Page[model.Snippet], error) {
	pr = pr.normalize()
	filter.OwnerID = viewerID
	if !pr.inRange() {
		return nil, errInvalidPage()
	}

	items, total, err := s.repo.List(ctx, filter, pr.window())
	if err != nil {
		return nil, fmt.Errorf("service/snippet: listing snippets: %w", err)
	}
	if err := checkPageInRange(pr, total); err != nil {
		return nil, err
	}

	return &Page[model.Snippet]{Items: items, Total: total, Page: pr.Page, PageSize: pr.PageSize}, nil
}

// Update changes a snippet owned by viewerID. partial=true is PATCH:
// absent fields keep their value. partial=false is PUT: code is required
// and every other absent field goes back to its default.
func (s *SnippetService) Update(ctx context.Context, viewerID, id string, in SnippetInput, partial bool) (*model.Snippet, error) {
	sn, err := s.Get(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	if sn.OwnerID != viewerID {
		return nil, apperror.Forbidden("You do not have permission to perform this action.")
	}

	if err := in.check(partial); err != nil {
		return nil, err
	}

	if !partial {
		sn.Title = ""
		sn.LineNos = false
		sn.Language = highlight.DefaultLanguage
		sn.Style = highlight.DefaultStyle
	}
	in.apply(sn)

	if err := s.render(sn); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, sn); err != nil {
		return nil, fmt.Errorf("service/snippet: updating snippet %s: %w", id, err)
	}

	s.logger.Info("snippet updated", slog.String("id", sn.ID), slog.Bool("partial", partial))
	return sn, nil
}

// Delete removes a snippet owned by viewerID.
func (s *SnippetService) Delete(ctx context.Context, viewerID, id string) error {
	sn, err := s.Get(ctx, viewerID, id)
	if err != nil {
		return err
	}
	if sn.OwnerID != viewerID {
		return apperror.Forbidden("You do not have permission to perform this action.")
	}

	if err := s.repo.Delete(ctx, sn.ID); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", sn.ID))
	return nil
}

// Highlight returns the stored HTML document for a snippet. Rows written
// before highlighting existed (empty Highlighted) are rendered on the fly.
func (s *SnippetService) Highlight(ctx context.Context, viewerID, id string) (string, error) {
	sn, err := s.Get(ctx, viewerID, id)
	if err != nil {
		return "", err
	}
	if sn.Highlighted != "" {
		return sn.Highlighted, nil
	}
	if err := s.render(sn); err != nil {
		return "", err
	}
	return sn.Highlighted, nil
}

// render refreshes sn.Highlighted from its current fields.
func (s *SnippetService) render(sn *model.Snippet) error {
	start := time.Now()
	doc, err := highlight.Render(sn.Code, highlight.Options{
		Language: sn.Language,
		Style:    sn.Style,
		LineNos:  sn.LineNos,
		Title:    sn.Title,
	})
	s.metrics.ObserveHighlight(time.Since(start))
	if err != nil {
		if errors.Is(err, highlight.ErrUnknownLanguage) {
			return apperror.ValidationFailed("language", fmt.Sprintf("%q is not a valid choice.", sn.Language))
		}
		if errors.Is(err, highlight.ErrUnknownStyle) {
			return apperror.ValidationFailed("style", fmt.Sprintf("%q is not a valid choice.", sn.Style))
		}
		return fmt.Errorf("service/snippet: highlighting: %w", err)
	}
	sn.Highlighted = doc
	return nil
}
