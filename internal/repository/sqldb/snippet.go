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

// compile-time check that *SnippetStore implements repository.SnippetRepository
var _ repository.SnippetRepository = (*SnippetStore)(nil)

// SnippetStore reads and writes the snippets table.
type SnippetStore struct {
	db *DB
}

// Every read joins users so OwnerUsername comes back with the row.
const snippetSelect = `SELECT s.id, s.owner_id, u.username, s.title, s.code, s.linenos,
	s.language, s.style, s.highlighted, s.created_at, s.updated_at
	FROM snippets s JOIN users u ON u.id = s.owner_id`

func scanSnippet(row scanner) (*model.Snippet, error) {
	var sn model.Snippet
	err := row.Scan(
		&sn.ID, &sn.OwnerID, &sn.OwnerUsername, &sn.Title, &sn.Code, &sn.LineNos,
		&sn.Language, &sn.Style, &sn.Highlighted, &sn.CreatedAt, &sn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sn, nil
}

// Create inserts a snippet. ID and timestamps are generated here.
//
// xid IDs start with a timestamp, so ordering by (created_at, id) is stable
// even when two snippets land in the same clock tick.
func (s *SnippetStore) Create(ctx context.Context, snippet *model.Snippet) error {
	now := s.db.now()
	snippet.ID = xid.New().String()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	_, err := s.db.exec(ctx,
		`INSERT INTO snippets (id, owner_id, title, code, linenos, language, style, highlighted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID, snippet.OwnerID, snippet.Title, snippet.Code, snippet.LineNos,
		snippet.Language, snippet.Style, snippet.Highlighted,
		snippet.CreatedAt, snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqldb: creating snippet: %w", err)
	}
	return nil
}

// GetByID retrieves a single snippet. sql.ErrNoRows becomes NotFound.
func (s *SnippetStore) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	sn, err := scanSnippet(s.db.queryRow(ctx, snippetSelect+` WHERE s.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqldb: getting snippet %s: %w", id, err)
	}
	return sn, nil
}

// List returns one page of snippets matching filter, newest first, plus
// the total number of matches (for pagination).
func (s *SnippetStore) List(ctx context.Context, filter model.SnippetFilter, page repository.Page) ([]model.Snippet, int, error) {
	where, args := snippetWhere(filter)

	var total int
	if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM snippets s`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqldb: counting snippets: %w", err)
	}

	rows, err := s.db.query(ctx,
		snippetSelect+where+` ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqldb: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, page.Limit)
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqldb: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *sn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqldb: iterating snippets: %w", err)
	}

	return snippets, total, nil
}

// snippetWhere builds the WHERE clause for a filter. Values always travel
// as arguments; only the fixed condition strings are concatenated.
func snippetWhere(f model.SnippetFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		conds = append(conds, "s.owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Language != "" {
		conds = append(conds, "LOWER(s.language) = ?")
		args = append(args, strings.ToLower(f.Language))
	}
	if f.CreatedAfter != nil {
		conds = append(conds, "s.created_at >= ?")
		args = append(args, f.CreatedAfter.UTC())
	}
	if f.CreatedBefore != nil {
		conds = append(conds, "s.created_at <= ?")
		args = append(args, f.CreatedBefore.UTC())
	}
	if f.TitleContains != "" {
		conds = append(conds, `LOWER(s.title) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.TitleContains))
	}
	if f.CodeContains != "" {
		conds = append(conds, `LOWER(s.code) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.CodeContains))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Update writes the editable columns. Owner and created_at never change.
func (s *SnippetStore) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = s.db.now()

	result, err := s.db.exec(ctx,
		`UPDATE snippets
		 SET title = ?, code = ?, linenos = ?, language = ?, style = ?, highlighted = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title, snippet.Code, snippet.LineNos, snippet.Language, snippet.Style,
		snippet.Highlighted, snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqldb: updating snippet %s: %w", snippet.ID, err)
	}
	return rowsAffectedOrNotFound(result, "snippet", snippet.ID)
}

// Delete removes a snippet by ID.
func (s *SnippetStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.exec(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqldb: deleting snippet %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(result, "snippet", id)
}
