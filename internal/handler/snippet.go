package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/service"
)

// SnippetHandler exposes the snippet CRUD endpoints and the highlighted
// HTML view.
//
//	GET    /snippets                 list (optional auth)
//	POST   /snippets                 create (auth)
//	GET    /snippets/{id}            retrieve (optional auth)
//	PUT    /snippets/{id}            replace (owner)
//	PATCH  /snippets/{id}            partial update (owner)
//	DELETE /snippets/{id}            delete (owner)
//	GET    /snippets/{id}/highlight  text/html (optional auth)
//
// The handler only translates HTTP to service calls; who may see what is
// decided in service.SnippetService.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// snippetResponse is the public JSON shape of a snippet.
type snippetResponse struct {
	URL       string    `json:"url"`
	ID        string    `json:"id"`
	Highlight string    `json:"highlight"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Code      string    `json:"code"`
	LineNos   bool      `json:"linenos"`
	Language  string    `json:"language"`
	Style     string    `json:"style"`
	Created   time.Time `json:"created"`
}

func snippetPath(id string) string {
	return "/snippets/" + url.PathEscape(id)
}

func toSnippetResponse(r *http.Request, sn *model.Snippet) snippetResponse {
	return snippetResponse{
		URL:       absoluteURL(r, snippetPath(sn.ID)),
		ID:        sn.ID,
		Highlight: absoluteURL(r, snippetPath(sn.ID)+"/highlight"),
		Owner:     sn.OwnerUsername,
		Title:     sn.Title,
		Code:      sn.Code,
		LineNos:   sn.LineNos,
		Language:  sn.Language,
		Style:     sn.Style,
		Created:   sn.CreatedAt.UTC(),
	}
}

// viewer is the caller's user ID, "" when anonymous.
func viewer(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// HandleList returns one page of snippets.
//
// HTTP: GET /snippets?page=2&page_size=20&language=go&search_title=sort
//
// Filter values that do not parse (a malformed date) are ignored rather
// than rejected.
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pr, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.snippets.List(r.Context(), viewer(r), snippetFilter(r.URL.Query()), pr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newPageResponse(r, page, func(sn model.Snippet) snippetResponse {
		return toSnippetResponse(r, &sn)
	}))
}

// snippetFilter reads the listing filters from the query string.
func snippetFilter(q url.Values) model.SnippetFilter {
	f := model.SnippetFilter{
		Language:      strings.TrimSpace(q.Get("language")),
		TitleContains: strings.TrimSpace(q.Get("search_title")),
		CodeContains:  strings.TrimSpace(q.Get("search_code")),
	}
	if t, ok := parseFilterTime(q.Get("created_after"), false); ok {
		f.CreatedAfter = &t
	}
	if t, ok := parseFilterTime(q.Get("created_before"), true); ok {
		f.CreatedBefore = &t
	}
	return f
}

// parseFilterTime accepts RFC 3339 or a bare YYYY-MM-DD date. A bare date
// used as an upper bound means the end of that day, so
// created_before=2025-01-31 includes snippets created on the 31st.
func parseFilterTime(raw string, endOfDay bool) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, true
	}
	return time.Time{}, false
}

// HandleCreate saves a new snippet owned by the caller.
//
// HTTP: POST /snippets
// REQUEST BODY: {"title": "Quicksort", "code": "...", "language": "python", "style": "monokai", "linenos": true}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	sn, err := h.snippets.Create(r.Context(), viewer(r), in)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := toSnippetResponse(r, sn)
	w.Header().Set("Location", resp.URL)
	writeJSON(w, http.StatusCreated, resp)
}

// HandleGet returns a single snippet.
//
// HTTP: GET /snippets/{id}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sn, err := h.snippets.Get(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnippetResponse(r, sn))
}

// HandleUpdate serves both PUT (full replacement) and PATCH (only the
// fields sent).
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	partial := r.Method == http.MethodPatch
	sn, err := h.snippets.Update(r.Context(), viewer(r), r.PathValue("id"), in, partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnippetResponse(r, sn))
}

// HandleDelete removes a snippet.
//
// HTTP: DELETE /snippets/{id} → 204 No Content
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.snippets.Delete(r.Context(), viewer(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHighlight returns the rendered HTML document, not JSON.
//
// HTTP: GET /snippets/{id}/highlight
func (h *SnippetHandler) HandleHighlight(w http.ResponseWriter, r *http.Request) {
	doc, err := h.snippets.Highlight(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		h.logger.Debug("writing highlight response", slog.String("error", err.Error()))
	}
}
