package httpx

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/faqdesk/faqdesk/internal/domain/model"
)

//go:embed templates
var templateFS embed.FS

// TemplateFS exposes the embedded templates, mainly for tests.
func TemplateFS() fs.FS {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// TemplateRenderer renders HTML pages for UI responses.
type TemplateRenderer struct {
	t      *template.Template
	logger *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing templates; defaults to the embedded set
	Logger     *slog.Logger // Logger for template errors (optional)
}

var templateFuncs = template.FuncMap{
	"sentimentLabel": func(s model.Sentiment) string {
		return s.Label()
	},
	"sentimentClass": func(s model.Sentiment) string {
		return "sentiment-" + string(s.Display())
	},
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
}

// NewTemplateRenderer constructs a renderer by parsing templates from the
// provided config.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	fsys := cfg.TemplateFS
	if fsys == nil {
		fsys = TemplateFS()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t, err := template.New("root").Funcs(templateFuncs).ParseFS(fsys,
		"*.tmpl",
		"pages/*.tmpl",
		"partials/*.tmpl",
	)
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err))
		return nil, err
	}
	return &TemplateRenderer{t: t, logger: logger}, nil
}

// RenderPage renders the named page inside the layout. The page template must
// define a "content" block; data flows through unchanged.
func (r *TemplateRenderer) RenderPage(w http.ResponseWriter, page string, data any) error {
	content := r.t.Lookup(page)
	if content == nil {
		return errors.New("unknown page template: " + page)
	}

	layout, err := r.t.Clone()
	if err != nil {
		return err
	}
	if _, err := layout.AddParseTree("content", content.Tree); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := layout.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("template", page),
			slog.Any("error", err),
		)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Error("failed to write rendered template",
			slog.String("template", page),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}
