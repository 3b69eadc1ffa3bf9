package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/snippetshare/internal/model"
	"github.com/sakif/snippetshare/internal/service"
)

// UserHandler is the read-only user directory.
//
//	GET /users       paginated list (auth)
//	GET /users/{id}  one user (auth)
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// userSummaryResponse links a user to their snippets by URL.
type userSummaryResponse struct {
	URL      string   `json:"url"`
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Snippets []string `json:"snippets"`
}

func toUserSummaryResponse(r *http.Request, u *model.UserSummary) userSummaryResponse {
	snippets := make([]string, 0, len(u.SnippetIDs))
	for _, id := range u.SnippetIDs {
		snippets = append(snippets, absoluteURL(r, snippetPath(id)))
	}
	return userSummaryResponse{
		URL:      absoluteURL(r, "/users/"+url.PathEscape(u.ID)),
		ID:       u.ID,
		Username: u.Username,
		Snippets: snippets,
	}
}

// HandleList returns one page of users.
//
// HTTP: GET /users?page=1&page_size=10
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pr, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.users.List(r.Context(), pr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newPageResponse(r, page, func(u model.UserSummary) userSummaryResponse {
		return toUserSummaryResponse(r, &u)
	}))
}

// HandleGet returns one user.
//
// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserSummaryResponse(r, u))
}
