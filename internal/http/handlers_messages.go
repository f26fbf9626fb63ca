package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	apperrors "github.com/faqdesk/faqdesk/internal/errors"
	"github.com/faqdesk/faqdesk/internal/export"
	"github.com/faqdesk/faqdesk/internal/ports"
	"github.com/faqdesk/faqdesk/internal/service"
)

// Handlers holds the dependencies shared by all UI handlers.
type Handlers struct {
	Store      *service.MessageStore
	Accounts   ports.AccountService
	Oracle     ports.SessionOracle
	Exporter   *export.Service
	Renderer   *TemplateRenderer
	Logger     *slog.Logger
	CookieName string
}

func (h *Handlers) base(title string, sess domainsession.Session, flash *Flash) BaseData {
	return BaseData{
		Title:         title,
		Authenticated: sess.Authenticated,
		IsManager:     sess.Role == domainsession.RoleManager,
		Flash:         flash,
	}
}

// resolveView reuses the mounted view named in the query string when it still
// belongs to this credential and scope; any other case mounts fresh. The view
// id round-trips through redirects so the POST/redirect/GET cycle stays on
// one view instance, while a plain navigation starts a new one.
func (h *Handlers) resolveView(r *http.Request, cred domainsession.Credential, scope service.ViewScope) (service.ViewState, error) {
	if viewID := r.URL.Query().Get("view"); viewID != "" {
		if state, ok := h.Store.Snapshot(viewID, cred); ok && state.Scope == scope {
			return state, nil
		}
	}
	return h.Store.Mount(r.Context(), cred, scope)
}

// HomePage renders the user's own messages.
func (h *Handlers) HomePage(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	cred := CredentialFromContext(r.Context())

	state, err := h.resolveView(r, cred, service.ScopeHome)
	flash := PopFlash(w, r)
	if err != nil && flash == nil {
		flash = &Flash{Level: "error", Message: apperrors.UserMessage(err)}
	}

	data := HomeData{BaseData: h.base("Your messages", sess, flash), View: state}
	h.render(w, r, "page-home", data)
}

// AdminPage renders all users' messages grouped by owner, with the compose
// form.
func (h *Handlers) AdminPage(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	cred := CredentialFromContext(r.Context())

	state, err := h.resolveView(r, cred, service.ScopeAdmin)
	flash := PopFlash(w, r)
	if err != nil && flash == nil {
		flash = &Flash{Level: "error", Message: apperrors.UserMessage(err)}
	}

	data := AdminData{BaseData: h.base("All messages", sess, flash), View: state}
	h.render(w, r, "page-admin", data)
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	if err := h.Renderer.RenderPage(w, page, data); err != nil {
		h.Logger.ErrorContext(r.Context(), "rendering page failed", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// sanitizeReturn restricts the post-mutation redirect to the two gated pages.
func sanitizeReturn(from string) string {
	if from == "/admin" {
		return "/admin"
	}
	return "/"
}

func withView(base, viewID string) string {
	if viewID == "" {
		return base
	}
	return base + "?view=" + url.QueryEscape(viewID)
}

// mutation applies a store operation and finishes the POST/redirect/GET
// cycle. A stale view id redirects to a fresh mount; a dropped duplicate
// trigger redirects silently; an upstream session or role rejection resolves
// into the login redirect, never into visible error text; any other failure
// carries its message in a flash. The redirect itself keeps the current view
// mounted.
func (h *Handlers) mutation(w http.ResponseWriter, r *http.Request, op func(viewID string, cred domainsession.Credential) error, successFlash string) {
	viewID := r.FormValue("view")
	from := sanitizeReturn(r.FormValue("from"))
	cred := CredentialFromContext(r.Context())

	err := op(viewID, cred)
	switch {
	case err == nil:
		if successFlash != "" {
			SetFlash(w, "success", successFlash)
		}
	case errors.Is(err, service.ErrViewNotMounted):
		http.Redirect(w, r, from, http.StatusSeeOther)
		return
	case errors.Is(err, service.ErrActionPending):
		// Duplicate trigger: drop it, the original request is still running.
	case apperrors.IsUnauthorized(err):
		// Session expired between the gate check and the upstream call.
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	case apperrors.IsForbidden(err):
		http.Redirect(w, r, ForbiddenLoginPath, http.StatusSeeOther)
		return
	default:
		SetFlash(w, "error", apperrors.UserMessage(err))
	}
	http.Redirect(w, r, withView(from, viewID), http.StatusSeeOther)
}

// EditMessage opens the edit form for a message.
func (h *Handlers) EditMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mutation(w, r, func(viewID string, cred domainsession.Credential) error {
		return h.Store.BeginEdit(viewID, cred, id)
	}, "")
}

// UpdateMessage saves the in-progress edit.
func (h *Handlers) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	body := r.FormValue("message")
	h.mutation(w, r, func(viewID string, cred domainsession.Credential) error {
		return h.Store.SaveEdit(r.Context(), viewID, cred, body)
	}, "Message updated")
}

// CancelEdit discards the in-progress edit.
func (h *Handlers) CancelEdit(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, func(viewID string, cred domainsession.Credential) error {
		return h.Store.CancelEdit(viewID, cred)
	}, "")
}

// DeleteMessage records a delete awaiting confirmation. Nothing is deleted
// until the user confirms.
func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mutation(w, r, func(viewID string, cred domainsession.Credential) error {
		return h.Store.RequestDelete(viewID, cred, id)
	}, "")
}

// ConfirmDelete performs the previously requested delete.
func (h *Handlers) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, func(viewID string, cred domainsession.Credential) error {
		return h.Store.ConfirmDelete(r.Context(), viewID, cred)
	}, "Message deleted")
}

// CancelDelete clears the pending delete confirmation.
func (h *Handlers) CancelDelete(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, func(viewID string, cred domainsession.Credential) error {
		return h.Store.CancelDelete(viewID, cred)
	}, "")
}

// SendMessage broadcasts a new message to a user (manager only). On a
// validation failure the admin page re-renders with the entered values intact.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	cred := CredentialFromContext(r.Context())
	viewID := r.FormValue("view")
	email := r.FormValue("email")
	body := r.FormValue("message")

	err := h.Store.Broadcast(r.Context(), viewID, cred, email, body)
	switch {
	case err == nil:
		SetFlash(w, "success", "Message sent")
	case errors.Is(err, service.ErrViewNotMounted):
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	case errors.Is(err, service.ErrActionPending):
	case apperrors.IsUnauthorized(err):
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	case apperrors.IsForbidden(err):
		http.Redirect(w, r, ForbiddenLoginPath, http.StatusSeeOther)
		return
	case apperrors.IsValidation(err):
		state, ok := h.Store.Snapshot(viewID, cred)
		if !ok {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		data := AdminData{
			BaseData:     h.base("All messages", sess, &Flash{Level: "error", Message: apperrors.UserMessage(err)}),
			View:         state,
			ComposeEmail: email,
			ComposeBody:  body,
		}
		h.render(w, r, "page-admin", data)
		return
	default:
		SetFlash(w, "error", apperrors.UserMessage(err))
	}
	http.Redirect(w, r, withView("/admin", viewID), http.StatusSeeOther)
}

// ExportMessages downloads the current view's collection as CSV or PDF.
func (h *Handlers) ExportMessages(w http.ResponseWriter, r *http.Request) {
	cred := CredentialFromContext(r.Context())
	viewID := r.URL.Query().Get("view")

	state, ok := h.Store.Snapshot(viewID, cred)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	from := "/"
	if state.Scope == service.ScopeAdmin {
		from = "/admin"
	}

	if len(state.Messages) == 0 && len(state.Groups) == 0 {
		SetFlash(w, "error", "There are no messages to export.")
		http.Redirect(w, r, withView(from, viewID), http.StatusSeeOther)
		return
	}

	req := export.Request{
		Format:   export.Format(r.PathValue("format")),
		Messages: state.Messages,
		Groups:   state.Groups,
		Title:    "Your messages",
	}
	if state.Scope == service.ScopeAdmin {
		req.Title = "All messages"
	}

	res, err := h.Exporter.Export(r.Context(), req)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			SetFlash(w, "error", "PDF export is not available on this server.")
		} else {
			h.Logger.ErrorContext(r.Context(), "export failed", "format", req.Format, "error", err)
			SetFlash(w, "error", "Export failed. Please try again.")
		}
		http.Redirect(w, r, withView(from, viewID), http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	if _, err := w.Write(res.Data); err != nil {
		h.Logger.ErrorContext(r.Context(), "writing export failed", "error", err)
	}
}
