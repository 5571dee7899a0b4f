package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/auth"
	"github.com/sakif/houseplant-tracker/internal/form"
	"github.com/sakif/houseplant-tracker/internal/service"
)

// AuthHandler manages registration, login, logout and the account itself.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginPage / HandleRegisterPage → render the HTML forms
//   - HandleLogin    → verify credentials, open a session, set the token cookie
//   - HandleRegister → create the account
//   - HandleLogout   → end the session and clear the cookie
//   - HandleMe       → return the signed-in user's profile
//   - HandleDeleteAccount → delete the user and everything they own
//
// Every POST accepts either a form body or JSON. Browsers get HTML or a
// redirect back; API clients get JSON.
type AuthHandler struct {
	auth          *service.AuthService
	pages         *Pages
	flashes       *FlashStore
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	authService *service.AuthService,
	pages *Pages,
	flashes *FlashStore,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:          authService,
		pages:         pages,
		flashes:       flashes,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleLoginPage renders the login form.
//
// HTTP: GET /login?next=/api/plants/xyz
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, ListingPath, http.StatusSeeOther)
		return
	}
	h.pages.render(w, r, http.StatusOK, "login", pageData{
		Title: "Log in",
		Next:  auth.SafeNext(r.URL.Query().Get("next")),
	})
}

// HandleRegisterPage renders the registration form.
//
// HTTP: GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, ListingPath, http.StatusSeeOther)
		return
	}
	h.pages.render(w, r, http.StatusOK, "register", pageData{Title: "Register"})
}

// HandleLogin signs a user in.
//
// HTTP: POST /login
// BODY: username, password, next (optional)
//
// FLOW:
//  1. Validate the form
//  2. AuthService.Authenticate: verify the password, create a session row,
//     sign a token that names the session
//  3. Store the token in the HttpOnly cookie
//  4. Resume `next` if it is a local path, otherwise go to the plant listing
//
// An unknown username and a wrong password produce the same response.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in form.Login
	if err := bind(r, &in); err != nil {
		h.loginFailed(w, r, in, err)
		return
	}
	if err := form.Check(&in); err != nil {
		h.loginFailed(w, r, in, err)
		return
	}

	result, err := h.auth.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		h.loginFailed(w, r, in, err)
		return
	}

	auth.SetTokenCookie(w, result.Token, result.Session.ExpiresAt.Sub(result.Session.CreatedAt), h.secureCookies)
	h.flashes.Add(w, r, FlashSuccess, "Login successful!")

	next := auth.SafeNext(in.Next)
	if next == "" {
		next = ListingPath
	}
	finish(w, r, http.StatusOK, struct {
		User     any    `json:"user"`
		Redirect string `json:"redirect"`
	}{result.User, next}, next)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, in form.Login, err error) {
	if !auth.WantsHTML(r) {
		writeError(w, err)
		return
	}
	status, _ := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("login failed", slog.String("error", err.Error()))
	}
	data := pageData{
		Title:  "Log in",
		Next:   auth.SafeNext(in.Next),
		Values: map[string]string{"username": in.Username},
		Errors: fieldMessages(err),
	}
	if errors.Is(err, apperror.ErrInvalidCredentials) {
		data.Flashes = []Flash{{Category: FlashDanger, Message: "Invalid username or password"}}
	}
	h.pages.render(w, r, status, "login", data)
}

// HandleRegister creates an account.
//
// HTTP: POST /register
// BODY: username, email, password, password2
//
// The password confirmation and email format are checked by the form; the
// service checks that username and email are free and the database UNIQUE
// constraints settle any race.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in form.Register
	if err := bind(r, &in); err != nil {
		h.registerFailed(w, r, in, err)
		return
	}
	if err := form.Check(&in); err != nil {
		h.registerFailed(w, r, in, err)
		return
	}

	user, err := h.auth.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		h.registerFailed(w, r, in, err)
		return
	}

	h.flashes.Add(w, r, FlashSuccess, "Congratulations, you are now registered!")
	finish(w, r, http.StatusCreated, user, auth.LoginPath)
}

func (h *AuthHandler) registerFailed(w http.ResponseWriter, r *http.Request, in form.Register, err error) {
	if !auth.WantsHTML(r) {
		writeError(w, err)
		return
	}
	status, _ := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("registration failed", slog.String("error", err.Error()))
	}
	h.pages.render(w, r, status, "register", pageData{
		Title:  "Register",
		Values: map[string]string{"username": in.Username, "email": in.Email},
		Errors: fieldMessages(err),
	})
}

// HandleLogout ends the current session.
//
// HTTP: POST /logout
// Auth: Required
//
// The session row is deleted, so the token stops working immediately even
// if a copy of the cookie survives somewhere.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := h.auth.EndSession(r.Context(), p.SessionID); err != nil {
		writeError(w, err)
		return
	}
	auth.ClearTokenCookie(w)
	h.flashes.Add(w, r, FlashInfo, "You have been logged out.")
	finish(w, r, http.StatusOK, MessageResponse{Message: "logged out", Redirect: auth.LoginPath}, auth.LoginPath)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, principal(r).User)
}

// HandleDeleteAccount deletes the signed-in user with all their plants,
// care events, journal entries and sessions.
//
// HTTP: DELETE /api/account
// Auth: Required
func (h *AuthHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := h.auth.DeleteAccount(r.Context(), p.User.ID); err != nil {
		writeError(w, err)
		return
	}
	auth.ClearTokenCookie(w)
	h.flashes.Add(w, r, FlashInfo, "Your account has been deleted.")
	finish(w, r, http.StatusOK, MessageResponse{Message: "account deleted", Redirect: "/"}, "/")
}

// fieldMessages flattens an error's field list for the HTML forms.
func fieldMessages(err error) map[string]string {
	out := map[string]string{}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return out
	}
	for _, f := range appErr.Fields {
		if _, seen := out[f.Field]; !seen {
			out[f.Field] = f.Message
		}
	}
	if len(appErr.Fields) == 0 && appErr.Field != "" {
		out[appErr.Field] = appErr.Message
	}
	return out
}
