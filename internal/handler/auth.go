package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/service"
)

// GitHubAuthenticator is the part of auth.GitHubProvider the handler uses.
// Tests substitute a fake so no request ever reaches github.com.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler manages accounts and tokens.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin / HandleRefresh / HandleLogout
//   - HandleProfile / HandleUpdateProfile  → the caller's own account
//   - HandlePasswordReset*                 → the emailed reset flow
//   - HandleGitHubLogin / HandleGitHubCallback → "Sign in with GitHub"
type AuthHandler struct {
	auth        *service.AuthService
	users       *service.UserService
	github      GitHubAuthenticator // nil when GitHub login is not configured
	frontendURL string
	secure      bool // mark cookies Secure (production, HTTPS)
	logger      *slog.Logger
}

// AuthHandlerConfig holds the optional parts of an AuthHandler.
type AuthHandlerConfig struct {
	GitHub        GitHubAuthenticator
	FrontendURL   string
	SecureCookies bool
}

func NewAuthHandler(authSvc *service.AuthService, users *service.UserService, cfg AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        authSvc,
		users:       users,
		github:      cfg.GitHub,
		frontendURL: cfg.FrontendURL,
		secure:      cfg.SecureCookies,
		logger:      logger,
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"username","email","password","password2","first_name","last_name"}
// RESPONSE: 201 {"message": "User registered successfully.", "user": {...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully.",
		"user":    user,
	})
}

// HandleLogin exchanges email + password for an access/refresh pair.
//
// HTTP: POST /auth/login {"email","password"} → 200 {"access","refresh"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	pair, _, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// HandleRefresh issues a new access token.
//
// HTTP: POST /auth/login/refresh {"refresh"} → 200 {"access"}
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	access, err := h.auth.Refresh(r.Context(), in.Refresh)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// HandleLogout revokes the caller's tokens.
//
// HTTP: POST /auth/logout {"refresh"?}
// Auth: Required
//
// JWTs are stateless, so "logout" means putting the token ids on a
// denylist until the tokens would have expired anyway. The auth middleware
// and Refresh both consult it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		// Only reachable if the route is mounted without RequireAuth.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Authentication credentials were not provided."})
		return
	}

	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.Logout(r.Context(), claims, in.Refresh); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out."})
}

// HandleProfile returns the caller's account.
//
// HTTP: GET /auth/user
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetProfile(r.Context(), viewer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateProfile edits the caller's account.
//
// HTTP: PUT /auth/user (username and email required) or PATCH /auth/user
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), viewer(r), in, r.Method == http.MethodPatch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

var statusOK = map[string]string{"status": "OK"}

// HandlePasswordReset emails a reset link.
//
// HTTP: POST /auth/password-reset {"email"} → 200 {"status": "OK"}
func (h *AuthHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	err := h.auth.RequestPasswordReset(r.Context(), service.ResetRequestInput{
		Email:     in.Email,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}

// HandlePasswordResetValidate checks a reset token without using it.
//
// HTTP: POST /auth/password-reset/validate_token {"token"}
func (h *AuthHandler) HandlePasswordResetValidate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ValidateResetToken(r.Context(), in.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}

// HandlePasswordResetConfirm sets a new password.
//
// HTTP: POST /auth/password-reset/confirm {"token","password","password2"?}
//
// password2 is optional here; when omitted the password is not
// double-checked.
func (h *AuthHandler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in service.ConfirmResetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.Password2 == "" {
		in.Password2 = in.Password
	}

	if err := h.auth.ConfirmPasswordReset(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}

const oauthStateCookie = "oauth_state"

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find, link or create the local account
//  4. Redirect to the frontend with the token pair in the URL fragment
//
// The fragment (#...) is never sent to any server, so the tokens do not
// end up in access logs or Referer headers.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: invalid OAuth state")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid OAuth state."})
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/auth/github",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(errParam), http.StatusTemporaryRedirect)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Missing OAuth code."})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: "GitHub authentication failed."})
		return
	}

	pair, _, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	fragment := url.Values{"access": {pair.Access}, "refresh": {pair.Refresh}}.Encode()
	http.Redirect(w, r, h.frontendURL+"/auth/callback#"+fragment, http.StatusTemporaryRedirect)
}
