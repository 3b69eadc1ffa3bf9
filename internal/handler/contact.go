package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippetshare/internal/service"
)

// ContactHandler accepts the public contact form.
type ContactHandler struct {
	contact *service.ContactService
	logger  *slog.Logger
}

func NewContactHandler(contact *service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contact: contact, logger: logger}
}

// HandleSubmit forwards the form to the site owner.
//
// HTTP: POST /contact {"name","email","subject","message"}
// RESPONSE: 200 {"detail": "Your message has been sent."}
func (h *ContactHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var in service.ContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.contact.Submit(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Your message has been sent."})
}
