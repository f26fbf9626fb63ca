package httpx

import (
	"net/http"
	"net/url"
	"strings"
)

// flashCookieName carries a one-shot notification across the POST/redirect/GET
// cycle. It is set on the redirect response and cleared when the next page
// reads it.
const flashCookieName = "faqdesk_flash"

// Flash is a one-shot user notification.
type Flash struct {
	Level   string // "success" or "error"
	Message string
}

// SetFlash attaches a flash notification to the response.
func SetFlash(w http.ResponseWriter, level, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(level + "|" + message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash reads and clears the pending flash notification, if any.
func PopFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	level, message, ok := strings.Cut(raw, "|")
	if !ok {
		return &Flash{Level: "error", Message: raw}
	}
	return &Flash{Level: level, Message: message}
}
