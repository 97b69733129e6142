package transport

// ConnectionState is the coarse connection phase reported by the socket.
type ConnectionState string

const (
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClose      ConnectionState = "close"
)

// DisconnectReason is the wire status code attached to a connection close.
type DisconnectReason int

const (
	ReasonUnknown             DisconnectReason = 0
	ReasonLoggedOut           DisconnectReason = 401
	ReasonConnectionLost      DisconnectReason = 408
	ReasonMultideviceMismatch DisconnectReason = 411
	ReasonConnectionClosed    DisconnectReason = 428
	ReasonConnectionReplaced  DisconnectReason = 440
	ReasonBadSession          DisconnectReason = 500
	ReasonRestartRequired     DisconnectReason = 515
)

// ConnectionUpdate is a lifecycle notification from the socket.
type ConnectionUpdate struct {
	Connection ConnectionState
	Reason     DisconnectReason
	QR         string
}

// MessageKey uniquely addresses a message on the wire.
type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	ID          string `json:"id"`
	FromMe      bool   `json:"fromMe"`
	Participant string `json:"participant,omitempty"`
}

// ContextInfo carries quoting metadata attached to message content.
type ContextInfo struct {
	StanzaID    string
	Participant string
	Quoted      *Payload
}

// TextContent is the extended-text message subtype.
type TextContent struct {
	Text        string
	ContextInfo *ContextInfo
}

// MediaContent covers image, sticker, audio, video and document subtypes.
type MediaContent struct {
	Caption     string
	Mimetype    string
	FileName    string
	ContextInfo *ContextInfo
}

// ReactionContent is an emoji reaction to another message. An empty Text
// represents removal of a previous reaction.
type ReactionContent struct {
	Text string
	Key  *MessageKey
}

// ProtocolType identifies protocol (non-chat) message subtypes.
type ProtocolType int

const (
	ProtocolRevoke           ProtocolType = 0
	ProtocolEphemeralSetting ProtocolType = 3
)

// ProtocolContent is a protocol message, e.g. a message revocation.
type ProtocolContent struct {
	Type ProtocolType
	Key  *MessageKey
}

// Wrapper is an envelope subtype that wraps real message content for
// caption- or ephemerality-related metadata.
type Wrapper struct {
	Message *Payload
}

// Payload is the deeply-nested raw message content union. At most one
// subtype field is populated per message in practice.
type Payload struct {
	Conversation        string
	ExtendedText        *TextContent
	Image               *MediaContent
	Sticker             *MediaContent
	Audio               *MediaContent
	Video               *MediaContent
	Document            *MediaContent
	DocumentWithCaption *Wrapper
	Ephemeral           *Wrapper
	Reaction            *ReactionContent
	Protocol            *ProtocolContent
}

// RawMessage is one inbound or echoed outbound message as delivered by the
// socket's event feed.
type RawMessage struct {
	Key       MessageKey
	Payload   *Payload
	Status    int
	Timestamp int64
	PushName  string
}

// UpsertType distinguishes live notifications from history backfill.
type UpsertType string

const (
	UpsertNotify UpsertType = "notify"
	UpsertAppend UpsertType = "append"
)

// MessagesUpsert is the batch of new messages delivered in one feed event.
type MessagesUpsert struct {
	Type     UpsertType
	Messages []*RawMessage
}

// MessageStatusUpdate reports a delivery-status transition for one message.
type MessageStatusUpdate struct {
	Key    MessageKey
	Status int
}

// Message status codes as carried on the wire.
const (
	StatusCodeError       = 0
	StatusCodePending     = 1
	StatusCodeServerAck   = 2
	StatusCodeDeliveryAck = 3
	StatusCodeRead        = 4
	StatusCodePlayed      = 5
)

// ParticipantAction is a group membership mutation kind.
type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

// GroupParticipantsUpdate reports a group membership change.
type GroupParticipantsUpdate struct {
	GroupJID     string
	Author       string
	Participants []string
	Action       ParticipantAction
}

// MessagesDelete reports message deletions pushed by the server.
type MessagesDelete struct {
	Keys []MessageKey
}

// PresenceKind is a presence indicator kind.
type PresenceKind string

const (
	PresenceComposing PresenceKind = "composing"
	PresenceRecording PresenceKind = "recording"
	PresenceAvailable PresenceKind = "available"
	PresencePaused    PresenceKind = "paused"
)

// MediaSource is outbound media referenced by URL or carried inline.
type MediaSource struct {
	URL  string
	Data []byte
}

// IsZero reports whether no media was provided at all.
func (s MediaSource) IsZero() bool {
	return s.URL == "" && len(s.Data) == 0
}

// OutgoingMedia is one outbound media attachment.
type OutgoingMedia struct {
	Source    MediaSource
	Caption   string
	Mimetype  string
	FileName  string
	VoiceNote bool
}

// OutgoingContent is the outbound message content union.
type OutgoingContent struct {
	Text     string
	Image    *OutgoingMedia
	Video    *OutgoingMedia
	Audio    *OutgoingMedia
	Document *OutgoingMedia
	Sticker  []byte
	Reaction *ReactionContent
	Forward  *RawMessage
	Mentions []string
}

// SendOptions carries per-send modifiers.
type SendOptions struct {
	Quoted *RawMessage
}

// SendReceipt acknowledges an accepted outbound message.
type SendReceipt struct {
	Key       MessageKey
	Timestamp int64
}

// GroupParticipant is one member of a group.
type GroupParticipant struct {
	JID     string
	IsAdmin bool
}

// GroupMetadata describes a group conversation.
type GroupMetadata struct {
	JID          string
	Subject      string
	Owner        string
	Participants []GroupParticipant
}

// ProfileInfo is the publicly visible profile of an account.
type ProfileInfo struct {
	PictureURL string
	Status     string
}
