package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/publicsuffix"

	"github.com/faqdesk/faqdesk/internal/domain/model"
	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	apperrors "github.com/faqdesk/faqdesk/internal/errors"
	"github.com/faqdesk/faqdesk/internal/ports"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return client, srv
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestResolve_Authenticated(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/auth-check", r.URL.Path)
		cookie, err := r.Cookie(DefaultSessionCookieName)
		require.NoError(t, err)
		require.Equal(t, "cred-1", cookie.Value)
		_ = json.NewEncoder(w).Encode(map[string]string{"role": "manager"})
	}))

	sess := client.Resolve(context.Background(), "cred-1")
	assert.True(t, sess.Authenticated)
	assert.Equal(t, domainsession.RoleManager, sess.Role)
}

func TestResolve_FailuresFoldToAnonymous(t *testing.T) {
	t.Run("non-success status", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		}))
		assert.Equal(t, domainsession.Anonymous, client.Resolve(context.Background(), "expired"))
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // connection refused from here on
		client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
		require.NoError(t, err)
		assert.Equal(t, domainsession.Anonymous, client.Resolve(context.Background(), "cred"))
	})

	t.Run("malformed body", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		assert.Equal(t, domainsession.Anonymous, client.Resolve(context.Background(), "cred"))
	})
}

func TestListMine_MapsWireFormat(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/get-my-received-messages", r.URL.Path)
		_, _ = w.Write([]byte(`{"messages":[
			{"_id":"m1","email":"a@b.c","message":"hello","sentiment":"positive","timestamp":"2025-06-01T12:00:00Z"},
			{"_id":"m2","email":"a@b.c","message":"no sentiment","timestamp":"Sun, 01 Jun 2025 12:30:00 GMT"}
		]}`))
	}))

	msgs, err := client.ListMine(context.Background(), "cred")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, model.SentimentPositive, msgs[0].Sentiment)
	// Absent sentiment stays absent on the wire and folds to neutral at display.
	assert.Equal(t, model.Sentiment(""), msgs[1].Sentiment)
	assert.Equal(t, model.SentimentNeutral, msgs[1].Sentiment.Display())
	assert.Equal(t, time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), msgs[1].Timestamp.UTC())
}

func TestListAll_GroupsByOwnerInServerOrder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/getAllEmailMessage", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"email":"z@b.c","email_messages":[{"_id":"m9","message":"later","timestamp":"2025-06-02T00:00:00Z"}]},
			{"email":"a@b.c","email_messages":[{"_id":"m1","message":"first","timestamp":"2025-06-01T00:00:00Z"}]}
		]`))
	}))

	groups, err := client.ListAll(context.Background(), "cred")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	// Server order preserved; no client-side re-sort.
	assert.Equal(t, "z@b.c", groups[0].OwnerEmail)
	assert.Equal(t, "a@b.c", groups[1].OwnerEmail)
	// Owner email backfilled onto messages that omit it.
	assert.Equal(t, "z@b.c", groups[0].Messages[0].OwnerEmail)
}

func TestDo_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
		msg    string
	}{
		{"401 maps to unauthorized", http.StatusUnauthorized, `{"error":"Token expired"}`, apperrors.IsUnauthorized, "Token expired"},
		{"403 maps to forbidden", http.StatusForbidden, `{"error":"Managers only"}`, apperrors.IsForbidden, "Managers only"},
		{"500 maps to service with verbatim message", http.StatusInternalServerError, `{"error":"db down"}`, apperrors.IsService, "db down"},
		{"missing error body falls back to status text", http.StatusBadGateway, ``, apperrors.IsService, "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			err := client.Update(context.Background(), "cred", "m1", "new body")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.Equal(t, tt.msg, apperrors.UserMessage(err))
		})
	}
}

func TestUpdate_SendsMessageBody(t *testing.T) {
	var got map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/users/update-message/m1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.Update(context.Background(), "cred", "m1", "updated"))
	assert.Equal(t, map[string]string{"message": "updated"}, got)
}

func TestRemove_IssuesDelete(t *testing.T) {
	var method, path string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.Remove(context.Background(), "cred", "m7"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/users/delete-message/m7", path)
}

func TestSend_PostsRecipientAndBody(t *testing.T) {
	var got map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/send-email", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.Send(context.Background(), "cred", "to@b.c", "hi there"))
	assert.Equal(t, map[string]string{"email": "to@b.c", "message": "hi there"}, got)
}

func TestLogin_RelaysSetCookie(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/login", r.URL.Path)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: DefaultSessionCookieName, Value: "issued-token", HttpOnly: true, Path: "/"})
		_, _ = w.Write([]byte(`{}`))
	}))

	grant, err := client.Login(context.Background(), "a@b.c", "s3cret")
	require.NoError(t, err)
	require.Len(t, grant.SetCookies, 1)
	assert.Contains(t, grant.SetCookies[0], DefaultSessionCookieName+"=issued-token")

	// A browser-grade cookie jar accepts the relayed header as-is: the grant
	// is a faithful pass-through of the ambient credential.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	srvURL, err := url.Parse(srv.URL)
	require.NoError(t, err)
	header := http.Header{}
	for _, sc := range grant.SetCookies {
		header.Add("Set-Cookie", sc)
	}
	jar.SetCookies(srvURL, (&http.Response{Header: header}).Cookies())
	cookies := jar.Cookies(srvURL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "issued-token", cookies[0].Value)
}

func TestLogin_FailureSurfacesUpstreamMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"User not found"}`))
	}))

	_, err := client.Login(context.Background(), "ghost@b.c", "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))
	assert.Equal(t, "User not found", apperrors.UserMessage(err))
}

func TestSignup_ForwardsFieldsAndReturnsMessage(t *testing.T) {
	var got map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Signup successful"})
	}))

	msg, err := client.Signup(context.Background(), ports.SignupInput{
		Name: "Ada", Email: "ada@b.c", Password: "pw", ConfirmPassword: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "Signup successful", msg)
	assert.Equal(t, "ada@b.c", got["email"])
	assert.Equal(t, "pw", got["confirmPassword"])
}

func TestLogout_AttachesCredential(t *testing.T) {
	var gotCookie string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/logout", r.URL.Path)
		if c, err := r.Cookie(DefaultSessionCookieName); err == nil {
			gotCookie = c.Value
		}
		_, _ = w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.Logout(context.Background(), "cred-9"))
	assert.Equal(t, "cred-9", gotCookie)
}

func TestTimeout_IsConnectivity(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.Remove(ctx, "cred", "m1")
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectivity(err))
}

func TestWireTime_Formats(t *testing.T) {
	var m wireMessage
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2025-01-02T03:04:05Z"}`), &m))
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), time.Time(m.Timestamp))

	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"Thu, 02 Jan 2025 03:04:05 GMT"}`), &m))
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), time.Time(m.Timestamp).UTC())

	require.Error(t, json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &m))
}
