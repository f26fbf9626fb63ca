package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"

	faqdesk "github.com/faqdesk/faqdesk"
	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	"github.com/faqdesk/faqdesk/internal/export"
	"github.com/faqdesk/faqdesk/internal/ports"
	"github.com/faqdesk/faqdesk/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Store      *service.MessageStore
	Accounts   ports.AccountService
	Oracle     ports.SessionOracle
	Exporter   *export.Service
	Renderer   *TemplateRenderer
	CookieName string
	Logger     *slog.Logger
}

// NewRouter creates and configures the HTTP router. Gated pages run their
// handlers only after the session verdict; the login and signup pages bounce
// authenticated visitors to their landing page.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handlers{
		Store:      services.Store,
		Accounts:   services.Accounts,
		Oracle:     services.Oracle,
		Exporter:   services.Exporter,
		Renderer:   services.Renderer,
		Logger:     logger,
		CookieName: services.CookieName,
	}
	gates := Gates{Oracle: services.Oracle, CookieName: services.CookieName}

	private := gates.Private()
	managerOnly := gates.Private(domainsession.RoleManager)
	public := gates.Public()

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", private(http.HandlerFunc(h.HomePage)))
	mux.Handle("GET /admin", managerOnly(http.HandlerFunc(h.AdminPage)))

	// Message mutations and exports belong to the manager surface; the home
	// view is a read-only listing.
	mux.Handle("POST /messages/{id}/edit", managerOnly(http.HandlerFunc(h.EditMessage)))
	mux.Handle("POST /messages/update", managerOnly(http.HandlerFunc(h.UpdateMessage)))
	mux.Handle("POST /messages/cancel-edit", managerOnly(http.HandlerFunc(h.CancelEdit)))
	mux.Handle("POST /messages/{id}/delete", managerOnly(http.HandlerFunc(h.DeleteMessage)))
	mux.Handle("POST /messages/confirm-delete", managerOnly(http.HandlerFunc(h.ConfirmDelete)))
	mux.Handle("POST /messages/cancel-delete", managerOnly(http.HandlerFunc(h.CancelDelete)))
	mux.Handle("POST /messages/send", managerOnly(http.HandlerFunc(h.SendMessage)))

	mux.Handle("GET /export/{format}", managerOnly(http.HandlerFunc(h.ExportMessages)))

	mux.Handle("GET /login", public(http.HandlerFunc(h.LoginPage)))
	mux.Handle("POST /login", public(http.HandlerFunc(h.LoginSubmit)))
	mux.Handle("GET /signup", public(http.HandlerFunc(h.SignupPage)))
	mux.Handle("POST /signup", public(http.HandlerFunc(h.SignupSubmit)))
	mux.Handle("POST /logout", http.HandlerFunc(h.Logout))

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	mux.Handle("GET /static/", staticHandler(logger))

	var handler http.Handler = mux
	handler = Compression(logger)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func staticHandler(logger *slog.Logger) http.Handler {
	sub, err := fs.Sub(faqdesk.StaticFS, "frontend/static")
	if err != nil {
		logger.Error("embedded static assets unavailable", slog.Any("error", err))
		return http.NotFoundHandler()
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
