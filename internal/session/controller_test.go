package session

import (
	"context"
	"errors"
	"testing"

	apperrors "whatsauto/internal/errors"
	"whatsauto/internal/events"
	"whatsauto/internal/models"
	"whatsauto/pkg/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	ctrl     *Controller
	wire     *fakeTransport
	conn     *fakeConn
	store    *fakeStore
	registry *Registry
	bus      *events.Bus
}

func newHarness(t *testing.T, cfg models.SessionConfig, rc models.RetryConfig) *testHarness {
	t.Helper()

	conn := newFakeConn()
	wire := &fakeTransport{conn: conn}
	store := newFakeStore()
	registry := NewRegistry()
	bus := events.NewBus()

	ctrl, err := New("main", Options{
		Config:    cfg,
		Transport: wire,
		Creds:     store,
		Bus:       bus,
		Registry:  registry,
		Retry:     rc,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Destroy(context.Background(), false) })

	return &testHarness{ctrl: ctrl, wire: wire, conn: conn, store: store, registry: registry, bus: bus}
}

func TestNewValidation(t *testing.T) {
	wire := &fakeTransport{conn: newFakeConn()}
	store := newFakeStore()
	registry := NewRegistry()

	_, err := New("", Options{Transport: wire, Creds: store, Registry: registry})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = New("main", Options{Creds: store, Registry: registry})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = New("main", Options{Transport: wire, Registry: registry})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = New("main", Options{Transport: wire, Creds: store})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
}

func TestNewRejectsDuplicateID(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	_, err := New("main", Options{
		Transport: h.wire,
		Creds:     h.store,
		Registry:  h.registry,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDuplicateSession, apperrors.GetCode(err))
	assert.True(t, apperrors.IsValidation(err))
}

func TestNewAllowsReuseAfterDestroy(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})
	require.NoError(t, h.ctrl.Destroy(context.Background(), false))

	again, err := New("main", Options{
		Transport: h.wire,
		Creds:     h.store,
		Registry:  h.registry,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Destroy(context.Background(), false) })
}

func TestInitializeOpensConnection(t *testing.T) {
	h := newHarness(t, models.SessionConfig{PrintQR: true}, models.RetryConfig{})
	h.store.blobs["main"] = []byte("persisted")

	require.NoError(t, h.ctrl.Initialize(context.Background()))

	assert.Equal(t, models.SessionStateAwaitingQR, h.ctrl.State())
	assert.Equal(t, 1, h.wire.connects)
	assert.Equal(t, "main", h.wire.lastCfg.SessionID)
	assert.Equal(t, []byte("persisted"), h.wire.lastCfg.Auth)
	assert.True(t, h.wire.lastCfg.EmitQR)
	assert.NotNil(t, h.conn.handlers.ConnectionUpdate)
	assert.NotNil(t, h.conn.handlers.MessagesUpsert)
}

func TestInitializeRegisteredSkipsQR(t *testing.T) {
	h := newHarness(t, models.SessionConfig{PrintQR: true}, models.RetryConfig{})
	h.conn.registered = true

	require.NoError(t, h.ctrl.Initialize(context.Background()))

	assert.Equal(t, models.SessionStateConnecting, h.ctrl.State())
}

func TestPairingCodeLogin(t *testing.T) {
	h := newHarness(t,
		models.SessionConfig{PrintQR: true, PhoneNumber: "+62 812-3456-789"},
		models.RetryConfig{MaxPairingAttempts: 1, PairingRetryDelaySec: 1})
	h.conn.pairingCode = "ABCD-1234"

	var published []string
	require.NoError(t, h.bus.Subscribe(events.PairingCode, func(code string) {
		published = append(published, code)
	}))

	require.NoError(t, h.ctrl.Initialize(context.Background()))

	assert.Equal(t, models.SessionStateAwaitingPairingCode, h.ctrl.State())
	assert.Equal(t, "ABCD-1234", h.ctrl.Info().PairingCode)
	assert.Equal(t, []string{"ABCD-1234"}, published)
	assert.Equal(t, 1, h.conn.pairingCalls)
	assert.False(t, h.wire.lastCfg.EmitQR)
}

func TestPairingCodeBudgetExhausted(t *testing.T) {
	h := newHarness(t,
		models.SessionConfig{PhoneNumber: "628123456789"},
		models.RetryConfig{MaxPairingAttempts: 1, PairingRetryDelaySec: 1})
	h.conn.pairingErr = errors.New("precondition failed")

	err := h.ctrl.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTransport, apperrors.GetCode(err))

	assert.Equal(t, models.SessionStateDisconnected, h.ctrl.State())
	assert.Equal(t, 1, h.conn.pairingCalls)
	assert.False(t, h.registry.Has("main"))
	assert.Zero(t, h.store.purges, "pairing exhaustion keeps persisted credentials")
}

func TestConnectionOpenResetsRetryState(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})
	h.conn.userJID = "628111111111:5@s.whatsapp.net"
	h.ctrl.mu.Lock()
	h.ctrl.conn = h.conn
	h.ctrl.retryCount = 4
	h.ctrl.pairingCode = "ABCD-1234"
	h.ctrl.mu.Unlock()

	connected := false
	require.NoError(t, h.bus.Subscribe(events.Connected, func() { connected = true }))

	h.ctrl.handleConnectionUpdate(transport.ConnectionUpdate{Connection: transport.ConnectionOpen})

	info := h.ctrl.Info()
	assert.Equal(t, models.SessionStateOpen, info.State)
	assert.Zero(t, info.RetryCount)
	assert.Empty(t, info.PairingCode)
	assert.Equal(t, "628111111111@s.whatsapp.net", info.UserJID)
	assert.True(t, connected)
}

func TestQRUpdateBroadcasts(t *testing.T) {
	h := newHarness(t, models.SessionConfig{PrintQR: true}, models.RetryConfig{})

	var codes []string
	require.NoError(t, h.bus.Subscribe(events.QR, func(qr string) { codes = append(codes, qr) }))

	h.ctrl.handleConnectionUpdate(transport.ConnectionUpdate{QR: "qr-payload"})

	assert.Equal(t, models.SessionStateAwaitingQR, h.ctrl.State())
	assert.Equal(t, []string{"qr-payload"}, codes)
}

func TestQRUpdateIgnoredWhenDisabled(t *testing.T) {
	h := newHarness(t, models.SessionConfig{PrintQR: false}, models.RetryConfig{})

	fired := false
	require.NoError(t, h.bus.Subscribe(events.QR, func(string) { fired = true }))

	h.ctrl.handleConnectionUpdate(transport.ConnectionUpdate{QR: "qr-payload"})

	assert.False(t, fired)
	assert.Equal(t, models.SessionStateIdle, h.ctrl.State())
}

func TestReconnectBudget(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{MaxReconnectAttempts: 3})

	disconnected := false
	require.NoError(t, h.bus.Subscribe(events.Disconnected, func() { disconnected = true }))

	h.ctrl.handleClose(transport.ReasonConnectionLost)
	assert.Equal(t, models.SessionStateRetrying, h.ctrl.State())
	assert.Equal(t, 1, h.ctrl.Info().RetryCount)
	assert.False(t, disconnected)

	h.ctrl.handleClose(transport.ReasonConnectionLost)
	assert.Equal(t, models.SessionStateRetrying, h.ctrl.State())
	assert.Equal(t, 2, h.ctrl.Info().RetryCount)

	// The last budgeted failure is terminal.
	h.ctrl.handleClose(transport.ReasonConnectionLost)
	assert.Equal(t, models.SessionStateDisconnected, h.ctrl.State())
	assert.True(t, disconnected)
	assert.False(t, h.registry.Has("main"))
	assert.Zero(t, h.store.purges)
}

func TestRestartRequiredBypassesBudget(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{MaxReconnectAttempts: 3})

	h.ctrl.handleClose(transport.ReasonRestartRequired)

	assert.Zero(t, h.ctrl.Info().RetryCount)
	select {
	case req := <-h.ctrl.reconnectCh:
		assert.Zero(t, req.delay, "restart-required reconnects immediately")
	default:
		t.Fatal("no reconnect scheduled")
	}
}

func TestLoggedOutPurgesCredentials(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})
	h.store.blobs["main"] = []byte("persisted")
	h.ctrl.mu.Lock()
	h.ctrl.conn = h.conn
	h.ctrl.mu.Unlock()

	disconnected := false
	require.NoError(t, h.bus.Subscribe(events.Disconnected, func() { disconnected = true }))

	h.ctrl.handleClose(transport.ReasonLoggedOut)

	assert.Equal(t, models.SessionStateDisconnected, h.ctrl.State())
	assert.True(t, disconnected)
	assert.False(t, h.store.Exists("main"))
	assert.Equal(t, 1, h.conn.endCalls)
	assert.False(t, h.registry.Has("main"))
}

func TestCloseIgnoredDuringPairing(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{MaxReconnectAttempts: 3})
	h.ctrl.mu.Lock()
	h.ctrl.pairingCode = "ABCD-1234"
	h.ctrl.mu.Unlock()

	h.ctrl.handleConnectionUpdate(transport.ConnectionUpdate{
		Connection: transport.ConnectionClose,
		Reason:     transport.ReasonConnectionLost,
	})

	assert.Zero(t, h.ctrl.Info().RetryCount)
	assert.Equal(t, models.SessionStateIdle, h.ctrl.State())
	assert.True(t, h.registry.Has("main"))
}

func TestCredsUpdatePersists(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	h.ctrl.handleCredsUpdate([]byte("blob"))

	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, []byte("blob"), h.store.blobs["main"])
}

func TestDestroyIsIdempotent(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})
	h.ctrl.mu.Lock()
	h.ctrl.conn = h.conn
	h.ctrl.mu.Unlock()

	require.NoError(t, h.ctrl.Destroy(context.Background(), false))
	require.NoError(t, h.ctrl.Destroy(context.Background(), false))

	assert.Equal(t, 1, h.conn.logoutCalls)
	assert.Equal(t, 1, h.conn.endCalls)
	assert.Equal(t, models.SessionStateDisconnected, h.ctrl.State())
	assert.False(t, h.registry.Has("main"))
}

func TestDestroyPurgesOnRequest(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})
	h.store.blobs["main"] = []byte("persisted")

	require.NoError(t, h.ctrl.Destroy(context.Background(), true))

	assert.False(t, h.store.Exists("main"))
}

func TestMessagesUpsertDispatches(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	var received []*models.Message
	require.NoError(t, h.bus.Subscribe(events.Message, func(m *models.Message) {
		received = append(received, m)
	}))

	h.ctrl.handleMessagesUpsert(transport.MessagesUpsert{
		Type: transport.UpsertNotify,
		Messages: []*transport.RawMessage{{
			Key:     transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M1"},
			Payload: &transport.Payload{Conversation: "hi"},
		}},
	})

	require.Len(t, received, 1)
	assert.Equal(t, "hi", received[0].Text)
	assert.Equal(t, "main", received[0].SessionID)
	assert.NotNil(t, received[0].Responder, "dispatched messages carry bound reply helpers")
}

func TestMessagesUpsertSkipsHistoryBackfill(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	fired := false
	require.NoError(t, h.bus.Subscribe(events.Message, func(*models.Message) { fired = true }))

	h.ctrl.handleMessagesUpsert(transport.MessagesUpsert{
		Type: transport.UpsertAppend,
		Messages: []*transport.RawMessage{{
			Key:     transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M1"},
			Payload: &transport.Payload{Conversation: "old"},
		}},
	})

	assert.False(t, fired)
}

func TestMessagesUpsertRoutesRevokes(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	var deleted []*models.DeletedMessage
	require.NoError(t, h.bus.Subscribe(events.MessageDeleted, func(d *models.DeletedMessage) {
		deleted = append(deleted, d)
	}))
	messageFired := false
	require.NoError(t, h.bus.Subscribe(events.Message, func(*models.Message) { messageFired = true }))

	h.ctrl.handleMessagesUpsert(transport.MessagesUpsert{
		Type: transport.UpsertNotify,
		Messages: []*transport.RawMessage{{
			Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "P1"},
			Payload: &transport.Payload{Protocol: &transport.ProtocolContent{
				Type: transport.ProtocolRevoke,
				Key:  &transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M1"},
			}},
		}},
	})

	require.Len(t, deleted, 1)
	assert.Equal(t, "M1", deleted[0].DeletedID)
	assert.False(t, messageFired)
}

func TestMessagesUpdateEmitsStatusTransitions(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	var updates []*models.MessageUpdate
	require.NoError(t, h.bus.Subscribe(events.MessageUpdated, func(u *models.MessageUpdate) {
		updates = append(updates, u)
	}))

	h.ctrl.handleMessagesUpdate([]transport.MessageStatusUpdate{
		{Key: transport.MessageKey{ID: "M1"}, Status: transport.StatusCodeRead},
		{Key: transport.MessageKey{ID: "M2"}, Status: transport.StatusCodeDeliveryAck},
	})

	require.Len(t, updates, 2)
	assert.Equal(t, models.MessageStatusRead, updates[0].Status)
	assert.Equal(t, models.MessageStatusDelivered, updates[1].Status)
}

func TestGroupParticipantsUpdateIsBound(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	var updates []*models.GroupMemberUpdate
	require.NoError(t, h.bus.Subscribe(events.GroupMemberUpdate, func(u *models.GroupMemberUpdate) {
		updates = append(updates, u)
	}))

	h.ctrl.handleGroupParticipantsUpdate(transport.GroupParticipantsUpdate{
		GroupJID:     "120363000000000000@g.us",
		Author:       "628222222222@s.whatsapp.net",
		Participants: []string{"628333333333@s.whatsapp.net"},
		Action:       transport.ParticipantAdd,
	})

	require.Len(t, updates, 1)
	assert.Equal(t, transport.ParticipantAdd, updates[0].Action)
	assert.NotNil(t, updates[0].Responder)
}

func TestMessagesDeleteRoutesEachKey(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	var deleted []*models.DeletedMessage
	require.NoError(t, h.bus.Subscribe(events.MessageDeleted, func(d *models.DeletedMessage) {
		deleted = append(deleted, d)
	}))

	h.ctrl.handleMessagesDelete(transport.MessagesDelete{Keys: []transport.MessageKey{
		{RemoteJID: "628222222222@s.whatsapp.net", ID: "M1"},
		{RemoteJID: "628222222222@s.whatsapp.net", ID: "M2"},
	}})

	require.Len(t, deleted, 2)
	assert.Equal(t, "M1", deleted[0].DeletedID)
	assert.Equal(t, "M2", deleted[1].DeletedID)
}

func TestRetryDefaultsApplied(t *testing.T) {
	h := newHarness(t, models.SessionConfig{}, models.RetryConfig{})

	assert.Equal(t, 10, h.ctrl.maxReconnectAttempts)
	assert.Equal(t, 10, h.ctrl.maxPairingAttempts)
}
