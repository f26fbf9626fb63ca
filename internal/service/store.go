package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/faqdesk/faqdesk/internal/domain/model"
	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	apperrors "github.com/faqdesk/faqdesk/internal/errors"
	"github.com/faqdesk/faqdesk/internal/ports"
)

// ViewScope selects which collection a mounted view holds.
type ViewScope string

const (
	// ScopeHome holds the calling user's own messages.
	ScopeHome ViewScope = "home"
	// ScopeAdmin holds every user's messages grouped by owner (manager only).
	ScopeAdmin ViewScope = "admin"
)

// DefaultViewTTL is how long an idle view stays mounted before it is swept.
const DefaultViewTTL = 30 * time.Minute

// ErrViewNotMounted is returned when an operation references a view that has
// been unmounted (navigation away, TTL sweep, or process restart) or that
// belongs to a different credential. Callers recover by remounting, i.e.
// re-rendering the page fresh.
var ErrViewNotMounted = errors.New("view is no longer mounted")

// ErrActionPending is returned when a mutating action is triggered while the
// same action is already outstanding for the view. The trigger is dropped;
// nothing was sent upstream.
var ErrActionPending = errors.New("action already in progress")

// view is the client-side state of one mounted view instance. Its identity is
// the stale-response guard key: a fetch result is applied only if the view
// that started it is still the mounted instance.
type view struct {
	id    string
	scope ViewScope
	cred  domainsession.Credential

	messages []model.Message
	groups   []model.MessageGroup
	loaded   bool

	edit          *model.EditSession
	pendingDelete *model.DeleteConfirmation

	lastSeen time.Time
}

// ViewState is an immutable snapshot handed to renderers.
type ViewState struct {
	ID            string
	Scope         ViewScope
	Loaded        bool
	Messages      []model.Message
	Groups        []model.MessageGroup
	Edit          *model.EditSession
	PendingDelete *model.DeleteConfirmation
}

// MessageStoreOptions groups dependencies for MessageStore.
type MessageStoreOptions struct {
	Messages ports.MessageService
	Guard    ports.MutationGuard
	Logger   *slog.Logger
	ViewTTL  time.Duration
}

// MessageStore owns the client-side message collections and their
// pending-edit/pending-delete sub-states, one set per mounted view instance.
//
// Consistency strategy is invalidate-then-refetch: after every successful
// mutation the full collection is fetched again from the server. The store
// never patches its copy speculatively, because ids, timestamps, and
// sentiment are server-computed and must not be guessed client-side.
//
// Every operation takes the caller's credential alongside the view id; a view
// id presented with a credential other than the one that mounted it resolves
// as not mounted. View ids round-trip through the browser, so possession of
// one must never grant another session's state.
type MessageStore struct {
	messages ports.MessageService
	guard    ports.MutationGuard
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	views  map[string]*view
	byCred map[string]string // credential -> mounted view id

	sf singleflight.Group
}

// NewMessageStore constructs a MessageStore.
func NewMessageStore(opts MessageStoreOptions) *MessageStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.ViewTTL
	if ttl <= 0 {
		ttl = DefaultViewTTL
	}
	return &MessageStore{
		messages: opts.Messages,
		guard:    opts.Guard,
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
		views:    make(map[string]*view),
		byCred:   make(map[string]string),
	}
}

// Mount creates a fresh view instance for the credential and performs the
// initial fetch. Mounting unmounts any prior view for the same credential:
// navigation always yields a new instance and in-flight results addressed to
// the old one are discarded.
//
// A fetch failure still returns the mounted (empty) view together with the
// error, so the caller can render the view shell with a notification instead
// of failing the navigation.
func (s *MessageStore) Mount(ctx context.Context, cred domainsession.Credential, scope ViewScope) (ViewState, error) {
	v := &view{
		id:       uuid.NewString(),
		scope:    scope,
		cred:     cred,
		lastSeen: s.now(),
	}

	s.mu.Lock()
	s.sweepLocked()
	if prev, ok := s.byCred[string(cred)]; ok {
		delete(s.views, prev)
	}
	s.views[v.id] = v
	s.byCred[string(cred)] = v.id
	s.mu.Unlock()

	err := s.refreshView(ctx, v)
	state, ok := s.Snapshot(v.id, cred)
	if !ok {
		// Swept or replaced between mount and snapshot; treat as stale.
		return ViewState{}, ErrViewNotMounted
	}
	return state, err
}

// Unmount discards the view and everything it owned. Results of fetches the
// view started are dropped when they arrive.
func (s *MessageStore) Unmount(viewID string, cred domainsession.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.lookupLocked(viewID, cred); ok {
		delete(s.views, viewID)
		if s.byCred[string(v.cred)] == viewID {
			delete(s.byCred, string(v.cred))
		}
	}
}

// Snapshot returns a copy of the view state for rendering.
func (s *MessageStore) Snapshot(viewID string, cred domainsession.Credential) (ViewState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lookupLocked(viewID, cred)
	if !ok {
		return ViewState{}, false
	}
	v.lastSeen = s.now()
	return snapshotLocked(v), true
}

// lookupLocked resolves a view id, enforcing credential ownership. Called
// with s.mu held.
func (s *MessageStore) lookupLocked(viewID string, cred domainsession.Credential) (*view, bool) {
	v, ok := s.views[viewID]
	if !ok || v.cred != cred {
		return nil, false
	}
	return v, true
}

func snapshotLocked(v *view) ViewState {
	st := ViewState{
		ID:       v.id,
		Scope:    v.scope,
		Loaded:   v.loaded,
		Messages: append([]model.Message(nil), v.messages...),
		Groups:   append([]model.MessageGroup(nil), v.groups...),
	}
	if v.edit != nil {
		e := *v.edit
		st.Edit = &e
	}
	if v.pendingDelete != nil {
		d := *v.pendingDelete
		st.PendingDelete = &d
	}
	return st
}

// fetchResult carries the outcome of one collection fetch.
type fetchResult struct {
	messages []model.Message
	groups   []model.MessageGroup
}

// Refresh invalidates and refetches the view's full collection. Concurrent
// refreshes for one view collapse into a single upstream call. On failure the
// previously loaded collection is left in place: a failed refresh must not
// blank the screen.
func (s *MessageStore) Refresh(ctx context.Context, viewID string, cred domainsession.Credential) error {
	s.mu.Lock()
	v, ok := s.lookupLocked(viewID, cred)
	s.mu.Unlock()
	if !ok {
		return ErrViewNotMounted
	}
	return s.refreshView(ctx, v)
}

func (s *MessageStore) refreshView(ctx context.Context, v *view) error {
	res, err, _ := s.sf.Do(v.id, func() (any, error) {
		return s.fetch(ctx, v)
	})
	if err != nil {
		return err
	}
	fr, ok := res.(fetchResult)
	if !ok {
		return apperrors.Service("unexpected fetch result")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Stale-response guard: apply only if this exact instance is still
	// mounted. A result addressed to an unmounted view is discarded.
	if current, mounted := s.views[v.id]; !mounted || current != v {
		s.logger.Debug("discarding fetch result for unmounted view", "view_id", v.id)
		return ErrViewNotMounted
	}
	v.messages = fr.messages
	v.groups = fr.groups
	v.loaded = true
	return nil
}

func (s *MessageStore) fetch(ctx context.Context, v *view) (fetchResult, error) {
	switch v.scope {
	case ScopeAdmin:
		groups, err := s.messages.ListAll(ctx, v.cred)
		if err != nil {
			return fetchResult{}, err
		}
		return fetchResult{groups: groups}, nil
	default:
		msgs, err := s.messages.ListMine(ctx, v.cred)
		if err != nil {
			return fetchResult{}, err
		}
		return fetchResult{messages: msgs}, nil
	}
}

// BeginEdit opens an edit session for the message, seeding the draft with the
// message's current body. At most one edit session exists per view; starting
// a new one silently replaces any prior unsaved draft.
func (s *MessageStore) BeginEdit(viewID string, cred domainsession.Credential, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lookupLocked(viewID, cred)
	if !ok {
		return ErrViewNotMounted
	}
	body, found := findBodyLocked(v, messageID)
	if !found {
		return apperrors.Validation("message not found")
	}
	v.edit = &model.EditSession{TargetMessageID: messageID, DraftBody: body}
	return nil
}

// CancelEdit discards the edit session, if any.
func (s *MessageStore) CancelEdit(viewID string, cred domainsession.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lookupLocked(viewID, cred)
	if !ok {
		return ErrViewNotMounted
	}
	v.edit = nil
	return nil
}

// SaveEdit submits the edit session with the given draft body. A body that is
// empty after trimming is a local validation failure and never reaches the
// network. On success the edit session is cleared and the collection
// refetched so the server-authoritative copy is displayed.
func (s *MessageStore) SaveEdit(ctx context.Context, viewID string, cred domainsession.Credential, draftBody string) error {
	s.mu.Lock()
	v, ok := s.lookupLocked(viewID, cred)
	if !ok {
		s.mu.Unlock()
		return ErrViewNotMounted
	}
	if v.edit == nil {
		s.mu.Unlock()
		return apperrors.Validation("no edit in progress")
	}
	targetID := v.edit.TargetMessageID
	v.edit.DraftBody = draftBody
	s.mu.Unlock()

	if strings.TrimSpace(draftBody) == "" {
		return apperrors.Validation("Message can't be empty")
	}

	release, err := s.acquire(ctx, viewID, "update:"+targetID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.messages.Update(ctx, cred, targetID, draftBody); err != nil {
		return err
	}

	s.mu.Lock()
	if current, mounted := s.views[viewID]; mounted && current == v {
		v.edit = nil
	}
	s.mu.Unlock()

	return s.refreshView(ctx, v)
}

// RequestDelete records a delete awaiting confirmation. The delete call is
// never issued from here; only ConfirmDelete talks to the server.
func (s *MessageStore) RequestDelete(viewID string, cred domainsession.Credential, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lookupLocked(viewID, cred)
	if !ok {
		return ErrViewNotMounted
	}
	if _, found := findBodyLocked(v, messageID); !found {
		return apperrors.Validation("message not found")
	}
	v.pendingDelete = &model.DeleteConfirmation{TargetMessageID: messageID}
	return nil
}

// CancelDelete clears the pending confirmation without touching the server.
func (s *MessageStore) CancelDelete(viewID string, cred domainsession.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lookupLocked(viewID, cred)
	if !ok {
		return ErrViewNotMounted
	}
	v.pendingDelete = nil
	return nil
}

// ConfirmDelete issues the delete for the previously confirmed message. The
// confirmation is cleared unconditionally once the call resolves, success or
// not. On success the collection is refetched.
func (s *MessageStore) ConfirmDelete(ctx context.Context, viewID string, cred domainsession.Credential) error {
	s.mu.Lock()
	v, ok := s.lookupLocked(viewID, cred)
	if !ok {
		s.mu.Unlock()
		return ErrViewNotMounted
	}
	if v.pendingDelete == nil {
		s.mu.Unlock()
		return apperrors.Validation("no delete awaiting confirmation")
	}
	targetID := v.pendingDelete.TargetMessageID
	s.mu.Unlock()

	// Cleared whatever happens to the delete call below.
	defer func() {
		s.mu.Lock()
		if current, mounted := s.views[viewID]; mounted && current == v {
			v.pendingDelete = nil
		}
		s.mu.Unlock()
	}()

	release, err := s.acquire(ctx, viewID, "delete:"+targetID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.messages.Remove(ctx, cred, targetID); err != nil {
		return err
	}
	return s.refreshView(ctx, v)
}

// Broadcast sends a new message to the recipient. Both fields are required
// locally; a validation failure never reaches the network. On success the
// collection is refetched so the server-assigned id and timestamp appear.
func (s *MessageStore) Broadcast(ctx context.Context, viewID string, cred domainsession.Credential, recipientEmail, body string) error {
	s.mu.Lock()
	v, ok := s.lookupLocked(viewID, cred)
	s.mu.Unlock()
	if !ok {
		return ErrViewNotMounted
	}

	if strings.TrimSpace(recipientEmail) == "" {
		return apperrors.ValidationField("email", "Email and message required")
	}
	if strings.TrimSpace(body) == "" {
		return apperrors.ValidationField("message", "Email and message required")
	}

	release, err := s.acquire(ctx, viewID, "send")
	if err != nil {
		return err
	}
	defer release()

	if err := s.messages.Send(ctx, cred, recipientEmail, body); err != nil {
		return err
	}
	return s.refreshView(ctx, v)
}

// acquire claims the mutation guard for the action and returns its release
// func. A second trigger while the action is pending gets ErrActionPending.
func (s *MessageStore) acquire(ctx context.Context, viewID, action string) (func(), error) {
	ok, err := s.guard.Begin(ctx, viewID, action)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeService, "mutation guard")
	}
	if !ok {
		return nil, ErrActionPending
	}
	return func() {
		if endErr := s.guard.End(ctx, viewID, action); endErr != nil {
			s.logger.Warn("releasing mutation guard failed", "view_id", viewID, "action", action, "error", endErr)
		}
	}, nil
}

// findBodyLocked locates a message body by id across both collection shapes.
func findBodyLocked(v *view, messageID string) (string, bool) {
	for _, m := range v.messages {
		if m.ID == messageID {
			return m.Body, true
		}
	}
	for _, g := range v.groups {
		for _, m := range g.Messages {
			if m.ID == messageID {
				return m.Body, true
			}
		}
	}
	return "", false
}

// sweepLocked drops views idle past the TTL. Called with s.mu held.
func (s *MessageStore) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, v := range s.views {
		if v.lastSeen.Before(cutoff) {
			delete(s.views, id)
			if s.byCred[string(v.cred)] == id {
				delete(s.byCred, string(v.cred))
			}
		}
	}
}
