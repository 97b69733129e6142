package session

import (
	"context"
	"errors"
	"sync"

	"whatsauto/pkg/sticker"
	"whatsauto/pkg/transport"
)

// fakeStore is an in-memory creds.Store.
type fakeStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	saves  int
	purges int
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string][]byte)}
}

func (s *fakeStore) Load(sessionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[sessionID], nil
}

func (s *fakeStore) Save(sessionID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.blobs[sessionID] = append([]byte(nil), data...)
	return nil
}

func (s *fakeStore) Exists(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs[sessionID]) > 0
}

func (s *fakeStore) Purge(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purges++
	delete(s.blobs, sessionID)
	return nil
}

func (s *fakeStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.blobs {
		ids = append(ids, id)
	}
	return ids, nil
}

type sentCall struct {
	jid     string
	content *transport.OutgoingContent
	opts    *transport.SendOptions
}

// fakeConn is a scriptable transport.Conn.
type fakeConn struct {
	mu       sync.Mutex
	handlers transport.Handlers

	registered bool
	userJID    string

	pairingCode  string
	pairingErr   error
	pairingCalls int

	sent            []sentCall
	sendHook        func(jid string, content *transport.OutgoingContent) error
	sendHadDeadline bool

	missing         map[string]bool
	isOnWhatsAppErr error

	downloadData  []byte
	downloadCalls int

	groupMeta *transport.GroupMetadata

	presences []transport.PresenceKind
	readKeys  [][]transport.MessageKey

	logoutCalls int
	endCalls    int
}

func newFakeConn() *fakeConn {
	return &fakeConn{missing: make(map[string]bool)}
}

func (c *fakeConn) Bind(h transport.Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

func (c *fakeConn) Registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *fakeConn) UserJID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userJID
}

func (c *fakeConn) SendMessage(ctx context.Context, jid string, content *transport.OutgoingContent, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	c.mu.Lock()
	_, c.sendHadDeadline = ctx.Deadline()
	c.sent = append(c.sent, sentCall{jid: jid, content: content, opts: opts})
	hook := c.sendHook
	c.mu.Unlock()

	if hook != nil {
		if err := hook(jid, content); err != nil {
			return nil, err
		}
	}
	return &transport.SendReceipt{Key: transport.MessageKey{RemoteJID: jid, ID: "SENT1", FromMe: true}}, nil
}

func (c *fakeConn) RequestPairingCode(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairingCalls++
	if c.pairingErr != nil {
		return "", c.pairingErr
	}
	return c.pairingCode, nil
}

func (c *fakeConn) IsOnWhatsApp(_ context.Context, jid string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOnWhatsAppErr != nil {
		return false, c.isOnWhatsAppErr
	}
	return !c.missing[jid], nil
}

func (c *fakeConn) GroupMetadata(context.Context, string) (*transport.GroupMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groupMeta == nil {
		return nil, errors.New("no such group")
	}
	return c.groupMeta, nil
}

func (c *fakeConn) ProfilePictureURL(context.Context, string) (string, error) {
	return "https://example.com/avatar.jpg", nil
}

func (c *fakeConn) FetchStatus(context.Context, string) (string, error) {
	return "hello there", nil
}

func (c *fakeConn) GroupParticipantsUpdate(context.Context, string, []string, transport.ParticipantAction) error {
	return nil
}

func (c *fakeConn) ReadMessages(_ context.Context, keys []transport.MessageKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readKeys = append(c.readKeys, keys)
	return nil
}

func (c *fakeConn) SendPresence(_ context.Context, kind transport.PresenceKind, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presences = append(c.presences, kind)
	return nil
}

func (c *fakeConn) DownloadMedia(context.Context, *transport.RawMessage) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloadCalls++
	if c.downloadData == nil {
		return nil, errors.New("no media")
	}
	return c.downloadData, nil
}

func (c *fakeConn) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutCalls++
	return nil
}

func (c *fakeConn) End() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endCalls++
	return nil
}

func (c *fakeConn) sentCalls() []sentCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentCall(nil), c.sent...)
}

// fakeTransport hands out a fixed fakeConn and records the last dial config.
type fakeTransport struct {
	mu         sync.Mutex
	conn       *fakeConn
	connectErr error
	connects   int
	lastCfg    transport.ConnectConfig
}

func (t *fakeTransport) Connect(_ context.Context, cfg transport.ConnectConfig) (transport.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	t.lastCfg = cfg
	if t.connectErr != nil {
		return nil, t.connectErr
	}
	return t.conn, nil
}

// fakeEncoder records what it was asked to encode.
type fakeEncoder struct {
	mu        sync.Mutex
	calls     int
	out       []byte
	err       error
	lastMedia []byte
	lastOpts  sticker.Options
}

func (e *fakeEncoder) Encode(_ context.Context, media []byte, opts sticker.Options) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.lastMedia = append([]byte(nil), media...)
	e.lastOpts = opts
	if e.err != nil {
		return nil, e.err
	}
	return e.out, nil
}

var (
	_ transport.Conn      = (*fakeConn)(nil)
	_ transport.Transport = (*fakeTransport)(nil)
	_ sticker.Encoder     = (*fakeEncoder)(nil)
)
