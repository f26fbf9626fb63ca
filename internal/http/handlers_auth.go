package httpx

import (
	"net/http"
	"strings"

	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	apperrors "github.com/faqdesk/faqdesk/internal/errors"
	"github.com/faqdesk/faqdesk/internal/ports"
)

// LoginPage renders the login form. A role rejection arrives here with
// reason=forbidden and gets its own message.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	flash := PopFlash(w, r)
	if flash == nil && r.URL.Query().Get("reason") == "forbidden" {
		flash = &Flash{Level: "error", Message: "You don't have permission to access that page."}
	}
	data := AuthPageData{BaseData: h.base("Log in", domainsession.Anonymous, flash)}
	h.render(w, r, "page-login", data)
}

// LoginSubmit forwards credentials upstream. On success the upstream
// Set-Cookie headers are relayed untouched; the browser now holds the ambient
// credential and the user lands on their role's page.
func (h *Handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		h.renderLoginError(w, r, "Email and password required", email)
		return
	}

	grant, err := h.Accounts.Login(r.Context(), email, password)
	if err != nil {
		h.renderLoginError(w, r, apperrors.UserMessage(err), email)
		return
	}

	for _, sc := range grant.SetCookies {
		w.Header().Add("Set-Cookie", sc)
	}

	// The relayed cookie is also the credential for deciding where to land.
	landing := "/"
	if cred := credentialFromSetCookies(grant.SetCookies, h.CookieName); cred != "" {
		if sess := h.Oracle.Resolve(r.Context(), cred); sess.Authenticated {
			landing = sess.LandingPath()
		}
	}
	http.Redirect(w, r, landing, http.StatusSeeOther)
}

func (h *Handlers) renderLoginError(w http.ResponseWriter, r *http.Request, message, email string) {
	data := AuthPageData{
		BaseData: h.base("Log in", domainsession.Anonymous, &Flash{Level: "error", Message: message}),
		Email:    email,
	}
	h.render(w, r, "page-login", data)
}

// SignupPage renders the signup form.
func (h *Handlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	data := AuthPageData{BaseData: h.base("Sign up", domainsession.Anonymous, PopFlash(w, r))}
	h.render(w, r, "page-signup", data)
}

// SignupSubmit validates the form locally, then forwards it upstream. The
// confirm-password check never leaves the client.
func (h *Handlers) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	in := ports.SignupInput{
		Name:            strings.TrimSpace(r.FormValue("name")),
		Email:           strings.TrimSpace(r.FormValue("email")),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}

	if in.Name == "" || in.Email == "" || in.Password == "" {
		h.renderSignupError(w, r, "All fields are required", in)
		return
	}
	if in.Password != in.ConfirmPassword {
		h.renderSignupError(w, r, "Passwords don't match", in)
		return
	}

	notice, err := h.Accounts.Signup(r.Context(), in)
	if err != nil {
		h.renderSignupError(w, r, apperrors.UserMessage(err), in)
		return
	}

	if notice == "" {
		notice = "Account created. Please log in."
	}
	SetFlash(w, "success", notice)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handlers) renderSignupError(w http.ResponseWriter, r *http.Request, message string, in ports.SignupInput) {
	data := AuthPageData{
		BaseData: h.base("Sign up", domainsession.Anonymous, &Flash{Level: "error", Message: message}),
		Email:    in.Email,
		Name:     in.Name,
	}
	h.render(w, r, "page-signup", data)
}

// Logout tells the upstream service to end the session and clears the cookie
// locally either way. A dead upstream must not trap the user logged in.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.CookieName); err == nil && c.Value != "" {
		if err := h.Accounts.Logout(r.Context(), domainsession.Credential(c.Value)); err != nil {
			h.Logger.WarnContext(r.Context(), "upstream logout failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// credentialFromSetCookies extracts the session cookie value from relayed
// Set-Cookie headers.
func credentialFromSetCookies(setCookies []string, name string) domainsession.Credential {
	header := http.Header{}
	for _, sc := range setCookies {
		header.Add("Set-Cookie", sc)
	}
	resp := http.Response{Header: header}
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return domainsession.Credential(c.Value)
		}
	}
	return ""
}
