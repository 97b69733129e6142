// Package transport defines the narrow interface to the external
// WhatsApp-protocol socket. The framework treats the socket as an opaque
// collaborator: connection handshake, encryption and wire framing all live
// behind these interfaces.
package transport

import "context"

// ConnectConfig carries everything a dialer needs to open one session
// connection.
type ConnectConfig struct {
	// SessionID names the session the connection belongs to.
	SessionID string
	// Auth is the opaque credential blob previously captured from
	// Handlers.CredsUpdate, or nil for a fresh pairing.
	Auth []byte
	// EmitQR requests QR payloads on the connection-update feed. Suppressed
	// when pairing-code login is used instead.
	EmitQR bool
}

// Handlers is the event feed contract. The connection invokes handlers one
// at a time, in arrival order; a nil handler drops that event kind.
type Handlers struct {
	ConnectionUpdate        func(ConnectionUpdate)
	CredsUpdate             func(data []byte)
	MessagesUpsert          func(MessagesUpsert)
	MessagesUpdate          func([]MessageStatusUpdate)
	GroupParticipantsUpdate func(GroupParticipantsUpdate)
	MessagesDelete          func(MessagesDelete)
}

// Transport dials socket connections.
type Transport interface {
	Connect(ctx context.Context, cfg ConnectConfig) (Conn, error)
}

// Conn is one live socket connection. All network operations honor the
// passed context.
type Conn interface {
	// Bind registers the event feed handlers. Must be called before any
	// events are expected; rebinding replaces the previous set.
	Bind(h Handlers)

	// Registered reports whether the connection's credentials are already
	// paired with an account.
	Registered() bool

	// UserJID returns the JID of the account the connection is logged in
	// as, or "" before login completes.
	UserJID() string

	SendMessage(ctx context.Context, jid string, content *OutgoingContent, opts *SendOptions) (*SendReceipt, error)
	RequestPairingCode(ctx context.Context, phone string) (string, error)
	IsOnWhatsApp(ctx context.Context, jid string) (bool, error)
	GroupMetadata(ctx context.Context, jid string) (*GroupMetadata, error)
	ProfilePictureURL(ctx context.Context, jid string) (string, error)
	FetchStatus(ctx context.Context, jid string) (string, error)
	GroupParticipantsUpdate(ctx context.Context, jid string, participants []string, action ParticipantAction) error
	ReadMessages(ctx context.Context, keys []MessageKey) error
	SendPresence(ctx context.Context, kind PresenceKind, jid string) error
	DownloadMedia(ctx context.Context, msg *RawMessage) ([]byte, error)

	// Logout invalidates the credentials server-side.
	Logout(ctx context.Context) error
	// End releases the connection handle without logging out.
	End() error
}
