package httpx

import (
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

var gzipPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

var compressibleTypes = map[string]bool{
	"text/html":              true,
	"text/css":               true,
	"text/plain":             true,
	"text/javascript":        true,
	"application/javascript": true,
	"application/json":       true,
	"image/svg+xml":          true,
}

// Compression returns a middleware that gzips responses with compressible
// content types for clients that accept gzip. HEAD requests and responses
// that already carry a Content-Encoding pass through untouched.
func Compression(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{ResponseWriter: w}
			w.Header().Add("Vary", "Accept-Encoding")
			next.ServeHTTP(gzw, r)
			if gzw.gz != nil {
				if err := gzw.gz.Close(); err != nil {
					logger.ErrorContext(r.Context(), "closing gzip writer failed", "error", err)
				}
				gzw.gz.Reset(io.Discard)
				gzipPool.Put(gzw.gz)
			}
		})
	}
}

func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		encoding, q, hasQ := strings.Cut(part, ";")
		if strings.TrimSpace(encoding) != "gzip" {
			continue
		}
		if hasQ && strings.TrimSpace(q) == "q=0" {
			return false
		}
		return true
	}
	return false
}

// gzipResponseWriter decides at WriteHeader time whether the response is
// worth compressing.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz            *gzip.Writer
	headerWritten bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.headerWritten = true

	skip := statusCode < 200 ||
		statusCode == http.StatusNoContent ||
		statusCode == http.StatusNotModified ||
		w.Header().Get("Content-Encoding") != ""
	if !skip {
		ct := w.Header().Get("Content-Type")
		if idx := strings.Index(ct, ";"); idx != -1 {
			ct = ct[:idx]
		}
		skip = !compressibleTypes[strings.TrimSpace(strings.ToLower(ct))]
	}
	if skip {
		w.ResponseWriter.WriteHeader(statusCode)
		return
	}

	gz, _ := gzipPool.Get().(*gzip.Writer)
	if gz == nil {
		gz = gzip.NewWriter(io.Discard)
	}
	gz.Reset(w.ResponseWriter)
	w.gz = gz
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *gzipResponseWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
