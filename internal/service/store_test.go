package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/faqdesk/faqdesk/internal/adapters/guard"
	"github.com/faqdesk/faqdesk/internal/domain/model"
	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	apperrors "github.com/faqdesk/faqdesk/internal/errors"
	"github.com/faqdesk/faqdesk/internal/mocks"
)

const testCred = domainsession.Credential("cookie-1")

func newStoreForTest(t *testing.T) (*MessageStore, *mocks.MockMessageService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMessageService(ctrl)
	store := NewMessageStore(MessageStoreOptions{
		Messages: svc,
		Guard:    guard.NewMemoryGuard(),
	})
	return store, svc
}

func sampleMessages() []model.Message {
	return []model.Message{
		{ID: "m1", OwnerEmail: "alice@example.com", Body: "hello", Sentiment: model.SentimentPositive, Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "m2", OwnerEmail: "alice@example.com", Body: "still waiting", Sentiment: model.SentimentNegative, Timestamp: time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)},
	}
}

func TestMessageStoreMountFetchesCollection(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	assert.True(t, state.Loaded)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "m1", state.Messages[0].ID)
	assert.NotEmpty(t, state.ID)
	assert.Nil(t, state.Edit)
	assert.Nil(t, state.PendingDelete)
}

func TestMessageStoreMountAdminUsesGroupedListing(t *testing.T) {
	store, svc := newStoreForTest(t)
	groups := []model.MessageGroup{
		{OwnerEmail: "alice@example.com", Messages: sampleMessages()},
		{OwnerEmail: "bob@example.com"},
	}
	svc.EXPECT().ListAll(gomock.Any(), testCred).Return(groups, nil)

	state, err := store.Mount(context.Background(), testCred, ScopeAdmin)
	require.NoError(t, err)
	require.Len(t, state.Groups, 2)
	assert.Equal(t, "alice@example.com", state.Groups[0].OwnerEmail)
	assert.Empty(t, state.Messages)
}

func TestMessageStoreMountReplacesPriorView(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil).Times(2)

	first, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	second, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// The replaced instance is gone; operations addressed to it are rejected.
	_, ok := store.Snapshot(first.ID, testCred)
	assert.False(t, ok)
	assert.ErrorIs(t, store.BeginEdit(first.ID, testCred, "m1"), ErrViewNotMounted)
}

func TestMessageStoreRejectsForeignCredential(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)

	// A view id presented with someone else's credential must not resolve.
	other := domainsession.Credential("cookie-2")
	_, ok := store.Snapshot(state.ID, other)
	assert.False(t, ok)
	assert.ErrorIs(t, store.BeginEdit(state.ID, other, "m1"), ErrViewNotMounted)
	assert.ErrorIs(t, store.Refresh(context.Background(), state.ID, other), ErrViewNotMounted)

	// The owner is unaffected.
	_, ok = store.Snapshot(state.ID, testCred)
	assert.True(t, ok)
}

func TestMessageStoreMountFetchFailureStillMounts(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(nil, apperrors.Connectivity("dial tcp: connection refused"))

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectivity(err))
	// The view shell is still usable: empty, not loaded, but mounted.
	assert.False(t, state.Loaded)
	assert.Empty(t, state.Messages)
	_, ok := store.Snapshot(state.ID, testCred)
	assert.True(t, ok)
}

func TestMessageStoreRefreshFailureKeepsCollection(t *testing.T) {
	store, svc := newStoreForTest(t)
	gomock.InOrder(
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil),
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(nil, apperrors.Service("database unavailable")),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)

	err = store.Refresh(context.Background(), state.ID, testCred)
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))

	// Failed refresh must not blank what was already on screen.
	after, ok := store.Snapshot(state.ID, testCred)
	require.True(t, ok)
	assert.Len(t, after.Messages, 2)
	assert.True(t, after.Loaded)
}

func TestMessageStoreBeginEditSeedsDraft(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)

	require.NoError(t, store.BeginEdit(state.ID, testCred, "m2"))
	after, _ := store.Snapshot(state.ID, testCred)
	require.NotNil(t, after.Edit)
	assert.Equal(t, "m2", after.Edit.TargetMessageID)
	assert.Equal(t, "still waiting", after.Edit.DraftBody)

	// Starting an edit for another message replaces the first draft.
	require.NoError(t, store.BeginEdit(state.ID, testCred, "m1"))
	after, _ = store.Snapshot(state.ID, testCred)
	assert.Equal(t, "m1", after.Edit.TargetMessageID)
	assert.Equal(t, "hello", after.Edit.DraftBody)

	require.NoError(t, store.CancelEdit(state.ID, testCred))
	after, _ = store.Snapshot(state.ID, testCred)
	assert.Nil(t, after.Edit)
}

func TestMessageStoreBeginEditUnknownMessage(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)

	err = store.BeginEdit(state.ID, testCred, "missing")
	assert.True(t, apperrors.IsValidation(err))
}

func TestMessageStoreSaveEditEmptyDraftNeverReachesNetwork(t *testing.T) {
	store, svc := newStoreForTest(t)
	// No Update expectation: any upstream call fails the test.
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	require.NoError(t, store.BeginEdit(state.ID, testCred, "m1"))

	err = store.SaveEdit(context.Background(), state.ID, testCred, "   \t")
	assert.True(t, apperrors.IsValidation(err))

	// The session survives the local rejection so the user can fix the draft.
	after, _ := store.Snapshot(state.ID, testCred)
	require.NotNil(t, after.Edit)
}

func TestMessageStoreSaveEditSuccess(t *testing.T) {
	store, svc := newStoreForTest(t)
	updated := sampleMessages()
	updated[0].Body = "hello, revised"
	gomock.InOrder(
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil),
		svc.EXPECT().Update(gomock.Any(), testCred, "m1", "hello, revised").Return(nil),
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(updated, nil),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	require.NoError(t, store.BeginEdit(state.ID, testCred, "m1"))

	require.NoError(t, store.SaveEdit(context.Background(), state.ID, testCred, "hello, revised"))

	after, _ := store.Snapshot(state.ID, testCred)
	assert.Nil(t, after.Edit)
	// The displayed copy is the refetched server copy, not a local patch.
	assert.Equal(t, "hello, revised", after.Messages[0].Body)
}

func TestMessageStoreSaveEditUpstreamFailureKeepsDraft(t *testing.T) {
	store, svc := newStoreForTest(t)
	gomock.InOrder(
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil),
		svc.EXPECT().Update(gomock.Any(), testCred, "m1", "second try").Return(apperrors.Service("Message not found")),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	require.NoError(t, store.BeginEdit(state.ID, testCred, "m1"))

	err = store.SaveEdit(context.Background(), state.ID, testCred, "second try")
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))

	after, _ := store.Snapshot(state.ID, testCred)
	require.NotNil(t, after.Edit)
	assert.Equal(t, "second try", after.Edit.DraftBody)
}

func TestMessageStoreDeleteRequiresConfirmation(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)

	// Confirming with nothing pending is a local error, never a network call.
	err = store.ConfirmDelete(context.Background(), state.ID, testCred)
	assert.True(t, apperrors.IsValidation(err))

	require.NoError(t, store.RequestDelete(state.ID, testCred, "m1"))
	after, _ := store.Snapshot(state.ID, testCred)
	require.NotNil(t, after.PendingDelete)
	assert.Equal(t, "m1", after.PendingDelete.TargetMessageID)

	require.NoError(t, store.CancelDelete(state.ID, testCred))
	after, _ = store.Snapshot(state.ID, testCred)
	assert.Nil(t, after.PendingDelete)
}

func TestMessageStoreConfirmDeleteSuccess(t *testing.T) {
	store, svc := newStoreForTest(t)
	remaining := sampleMessages()[1:]
	gomock.InOrder(
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil),
		svc.EXPECT().Remove(gomock.Any(), testCred, "m1").Return(nil),
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(remaining, nil),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	require.NoError(t, store.RequestDelete(state.ID, testCred, "m1"))

	require.NoError(t, store.ConfirmDelete(context.Background(), state.ID, testCred))

	after, _ := store.Snapshot(state.ID, testCred)
	assert.Nil(t, after.PendingDelete)
	require.Len(t, after.Messages, 1)
	assert.Equal(t, "m2", after.Messages[0].ID)
}

func TestMessageStoreConfirmDeleteFailureClearsConfirmation(t *testing.T) {
	store, svc := newStoreForTest(t)
	gomock.InOrder(
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil),
		svc.EXPECT().Remove(gomock.Any(), testCred, "m1").Return(apperrors.Service("Message not found")),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	require.NoError(t, store.RequestDelete(state.ID, testCred, "m1"))

	err = store.ConfirmDelete(context.Background(), state.ID, testCred)
	require.Error(t, err)

	// Cleared either way; a failed delete does not stay half-confirmed.
	after, _ := store.Snapshot(state.ID, testCred)
	assert.Nil(t, after.PendingDelete)
}

func TestMessageStoreBroadcastValidation(t *testing.T) {
	store, svc := newStoreForTest(t)
	svc.EXPECT().ListAll(gomock.Any(), testCred).Return(nil, nil)

	state, err := store.Mount(context.Background(), testCred, ScopeAdmin)
	require.NoError(t, err)

	err = store.Broadcast(context.Background(), state.ID, testCred, "", "body")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "email", apperrors.GetField(err))

	err = store.Broadcast(context.Background(), state.ID, testCred, "bob@example.com", "  ")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "message", apperrors.GetField(err))
}

func TestMessageStoreBroadcastSuccess(t *testing.T) {
	store, svc := newStoreForTest(t)
	gomock.InOrder(
		svc.EXPECT().ListAll(gomock.Any(), testCred).Return(nil, nil),
		svc.EXPECT().Send(gomock.Any(), testCred, "bob@example.com", "welcome aboard").Return(nil),
		svc.EXPECT().ListAll(gomock.Any(), testCred).Return([]model.MessageGroup{{OwnerEmail: "bob@example.com"}}, nil),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeAdmin)
	require.NoError(t, err)

	require.NoError(t, store.Broadcast(context.Background(), state.ID, testCred, "bob@example.com", "welcome aboard"))

	after, _ := store.Snapshot(state.ID, testCred)
	require.Len(t, after.Groups, 1)
}

func TestMessageStoreSecondTriggerDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMessageService(ctrl)
	g := guard.NewMemoryGuard()
	store := NewMessageStore(MessageStoreOptions{Messages: svc, Guard: g})

	svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil)
	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)
	require.NoError(t, store.BeginEdit(state.ID, testCred, "m1"))

	// A request for this action is already in flight.
	ok, err := g.Begin(context.Background(), state.ID, "update:m1")
	require.NoError(t, err)
	require.True(t, ok)

	err = store.SaveEdit(context.Background(), state.ID, testCred, "duplicate submit")
	assert.ErrorIs(t, err, ErrActionPending)
}

func TestMessageStoreStaleResponseDiscarded(t *testing.T) {
	store, svc := newStoreForTest(t)

	release := make(chan struct{})
	started := make(chan struct{})
	gomock.InOrder(
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(sampleMessages(), nil),
		svc.EXPECT().ListMine(gomock.Any(), testCred).DoAndReturn(
			func(context.Context, domainsession.Credential) ([]model.Message, error) {
				close(started)
				<-release
				return []model.Message{{ID: "late", Body: "too late"}}, nil
			}),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- store.Refresh(context.Background(), state.ID, testCred)
	}()

	<-started
	store.Unmount(state.ID, testCred)
	close(release)

	assert.ErrorIs(t, <-errCh, ErrViewNotMounted)
	_, ok := store.Snapshot(state.ID, testCred)
	assert.False(t, ok)
}

func TestMessageStoreConcurrentRefreshCollapses(t *testing.T) {
	store, svc := newStoreForTest(t)

	release := make(chan struct{})
	started := make(chan struct{})
	gomock.InOrder(
		svc.EXPECT().ListMine(gomock.Any(), testCred).Return(nil, nil),
		// Exactly one upstream call for all concurrent refreshes.
		svc.EXPECT().ListMine(gomock.Any(), testCred).DoAndReturn(
			func(context.Context, domainsession.Credential) ([]model.Message, error) {
				close(started)
				<-release
				return sampleMessages(), nil
			}),
	)

	state, err := store.Mount(context.Background(), testCred, ScopeHome)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = store.Refresh(context.Background(), state.ID, testCred)
	}()
	<-started
	for i := 1; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Refresh(context.Background(), state.ID, testCred)
		}(i)
	}
	// Let the joiners reach the in-flight call before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	after, _ := store.Snapshot(state.ID, testCred)
	assert.Len(t, after.Messages, 2)
}

func TestMessageStoreViewTTLSweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMessageService(ctrl)
	store := NewMessageStore(MessageStoreOptions{
		Messages: svc,
		Guard:    guard.NewMemoryGuard(),
		ViewTTL:  time.Minute,
	})
	now := time.Now()
	store.now = func() time.Time { return now }

	svc.EXPECT().ListMine(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	oldCred := domainsession.Credential("old-cookie")
	stale, err := store.Mount(context.Background(), oldCred, ScopeHome)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Mount(context.Background(), domainsession.Credential("new-cookie"), ScopeHome)
	require.NoError(t, err)

	_, ok := store.Snapshot(stale.ID, oldCred)
	assert.False(t, ok)
}
