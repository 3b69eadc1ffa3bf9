package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mssola/user_agent"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names, one per file under templates/.
const (
	TemplateWelcome              = "welcome"
	TemplatePasswordReset        = "password_reset"
	TemplatePasswordResetConfirm = "password_reset_confirmation"
	TemplateContact              = "contact"
)

var templateNames = []string{
	TemplateWelcome,
	TemplatePasswordReset,
	TemplatePasswordResetConfirm,
	TemplateContact,
}

// Renderer builds Messages from the embedded templates.
//
// Each page template is parsed together with layout.html into its own
// *template.Template, because every page defines the same "title" and
// "content" blocks and would overwrite the others in a shared set.
type Renderer struct {
	pages       map[string]*template.Template
	siteName    string
	frontendURL string
}

// NewRenderer parses every template up front so a broken template fails at
// startup rather than on the first registration.
func NewRenderer(siteName, frontendURL string) (*Renderer, error) {
	r := &Renderer{
		pages:       make(map[string]*template.Template, len(templateNames)),
		siteName:    siteName,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
	for _, name := range templateNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("mail: parsing template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// FrontendURL is the base URL links in emails point at, without a trailing
// slash.
func (r *Renderer) FrontendURL() string { return r.frontendURL }

// Render executes a page template. data is merged over the common fields
// (SiteName, FrontendURL).
func (r *Renderer) Render(name string, data map[string]any) (htmlBody, textBody string, err error) {
	t, ok := r.pages[name]
	if !ok {
		return "", "", fmt.Errorf("mail: unknown template %q", name)
	}

	merged := map[string]any{
		"SiteName":    r.siteName,
		"FrontendURL": r.frontendURL,
	}
	for k, v := range data {
		merged[k] = v
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", merged); err != nil {
		return "", "", fmt.Errorf("mail: rendering %s: %w", name, err)
	}
	htmlBody = buf.String()
	return htmlBody, HTMLToText(htmlBody), nil
}

func (r *Renderer) message(to, subject, name string, data map[string]any) (Message, error) {
	htmlBody, textBody, err := r.Render(name, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: subject, HTML: htmlBody, Text: textBody}, nil
}

// Welcome is sent after registration.
func (r *Renderer) Welcome(to, username string) (Message, error) {
	return r.message(to, "Welcome to "+r.siteName+"!", TemplateWelcome, map[string]any{
		"Username": username,
	})
}

// ResetRequest describes who asked for a password reset and from where.
type ResetRequest struct {
	Username  string
	ResetURL  string
	IPAddress string
	UserAgent string
	ExpiresIn time.Duration
}

// PasswordReset carries the single-use reset link.
func (r *Renderer) PasswordReset(to string, req ResetRequest) (Message, error) {
	return r.message(to, "Password reset for "+r.siteName, TemplatePasswordReset, map[string]any{
		"Username":  req.Username,
		"ResetURL":  req.ResetURL,
		"IPAddress": req.IPAddress,
		"Device":    DescribeUserAgent(req.UserAgent),
		"ExpiresIn": humanDuration(req.ExpiresIn),
	})
}

// PasswordResetConfirmation tells the user their password changed.
func (r *Renderer) PasswordResetConfirmation(to, username string, changedAt time.Time) (Message, error) {
	return r.message(to, "Your "+r.siteName+" password has been changed", TemplatePasswordResetConfirm, map[string]any{
		"Username":  username,
		"ChangedAt": changedAt.UTC().Format("January 2, 2006 at 15:04 UTC"),
	})
}

// ContactForm is a message submitted through the public contact endpoint.
type ContactForm struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Contact forwards a contact form to the site owner. Replies go to the
// sender, not to our own address.
func (r *Renderer) Contact(to string, form ContactForm) (Message, error) {
	msg, err := r.message(to, "[Contact] "+form.Subject, TemplateContact, map[string]any{
		"Name":    form.Name,
		"Email":   form.Email,
		"Subject": form.Subject,
		"Message": form.Message,
	})
	if err != nil {
		return Message{}, err
	}
	msg.ReplyTo = form.Email
	return msg, nil
}

// DescribeUserAgent turns a User-Agent header into "Firefox 120.0 on Linux
// x86_64" for the reset email.
func DescribeUserAgent(header string) string {
	if strings.TrimSpace(header) == "" {
		return "an unknown device"
	}
	ua := user_agent.New(header)
	name, version := ua.Browser()
	if name == "" {
		return "an unknown device"
	}

	desc := name
	if version != "" {
		desc += " " + version
	}
	if os := ua.OS(); os != "" {
		desc += " on " + os
	}
	return desc
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		m := int(d.Round(time.Minute) / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
}
