package model

import "time"

// Snippet represents a saved code snippet.
//
// Highlighted is the rendered HTML document for the snippet. It is derived
// from Code/Language/Style/LineNos/Title and recomputed on every write, so
// the highlight endpoint never has to call the highlighter on a read.
//
// OwnerUsername is not a column: repositories fill it from a JOIN on users
// so the API can show "owner": "alice" without a second query.
type Snippet struct {
	ID            string
	OwnerID       string
	OwnerUsername string
	Title         string
	Code          string
	LineNos       bool
	Language      string
	Style         string
	Highlighted   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SnippetFilter narrows a snippet listing. Zero values mean "no filter".
type SnippetFilter struct {
	OwnerID       string // restrict to one owner (authenticated callers)
	Language      string // case-insensitive exact match
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	TitleContains string // case-insensitive substring
	CodeContains  string // case-insensitive substring
}
