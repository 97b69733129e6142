package models

// SessionState is the lifecycle state of a session controller.
type SessionState string

const (
	SessionStateIdle                SessionState = "idle"
	SessionStateConnecting          SessionState = "connecting"
	SessionStateAwaitingQR          SessionState = "awaiting_qr"
	SessionStateAwaitingPairingCode SessionState = "awaiting_pairing_code"
	SessionStateOpen                SessionState = "open"
	SessionStateClosing             SessionState = "closing"
	SessionStateRetrying            SessionState = "retrying"
	SessionStateDisconnected        SessionState = "disconnected"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	return s == SessionStateDisconnected
}

// SessionConfig is the per-session configuration.
type SessionConfig struct {
	// PrintQR emits QR payloads on the qr channel. Forced off when
	// PhoneNumber selects pairing-code login.
	PrintQR bool `json:"printQR"`
	// PhoneNumber, when set, switches login to a pairing code bound to
	// this number.
	PhoneNumber string `json:"phoneNumber,omitempty"`
	// Logging enables the per-session log output.
	Logging bool `json:"logging"`

	// StickerPack and StickerAuthor are the default sticker metadata for
	// this session.
	StickerPack   string `json:"stickerPack,omitempty"`
	StickerAuthor string `json:"stickerAuthor,omitempty"`
}

// DefaultSessionConfig mirrors the defaults applied when a session is
// created without explicit options.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PrintQR: true,
		Logging: true,
	}
}

// SessionInfo is the externally visible snapshot of a session.
type SessionInfo struct {
	ID          string       `json:"id"`
	State       SessionState `json:"state"`
	RetryCount  int          `json:"retryCount"`
	PairingCode string       `json:"pairingCode,omitempty"`
	UserJID     string       `json:"userJid,omitempty"`
}
