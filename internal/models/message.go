package models

import (
	"whatsauto/pkg/transport"
)

// Direction tells whether a message left or entered the session's account.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// MediaType is the canonical media classification of a message.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeVideo    MediaType = "video"
	MediaTypeDocument MediaType = "document"
	MediaTypeNone     MediaType = ""
)

// Message is the canonical record every raw transport payload is normalized
// into. Instances are created per transport event and never mutated after
// dispatch; retention past the subscriber callbacks is the subscriber's
// responsibility.
type Message struct {
	SessionID string               `json:"sessionId"`
	Key       transport.MessageKey `json:"key"`

	Text      string    `json:"text"`
	HasMedia  bool      `json:"hasMedia"`
	MediaType MediaType `json:"mediaType"`

	IsGroup    bool `json:"isGroup"`
	IsStory    bool `json:"isStory"`
	IsReaction bool `json:"isReaction"`

	// Author is the originating participant JID, Receiver its counterpart.
	Author   string `json:"author"`
	Receiver string `json:"receiver"`

	// Quoted is the message this one replies to, one level deep at most.
	Quoted *Message `json:"quotedMessage,omitempty"`

	Timestamp int64  `json:"timestamp,omitempty"`
	PushName  string `json:"pushName,omitempty"`

	// Raw keeps the original transport payload for download and forward
	// operations. Not part of the canonical surface.
	Raw *transport.RawMessage `json:"-"`

	// Responder carries the bound contextual operations; nil on quoted
	// messages that were not dispatched themselves.
	Responder Responder `json:"-"`
}

// Direction derives the message direction from its key.
func (m *Message) Direction() Direction {
	if m.Key.FromMe {
		return DirectionSent
	}
	return DirectionReceived
}

// DeletedMessage is the minimal record produced for a revoke notice. It is
// routed to the deletion channel instead of the standard message channels.
type DeletedMessage struct {
	SessionID string               `json:"sessionId"`
	Key       transport.MessageKey `json:"key"`
	// DeletedID is the id of the message that was revoked.
	DeletedID string `json:"deletedId"`
}

// MessageStatus is the readable delivery status of a message.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusServer    MessageStatus = "server"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusPlayed    MessageStatus = "played"
	MessageStatusError     MessageStatus = "error"
)

// StatusFromCode maps a wire status code to its readable form. Unknown
// codes map to error.
func StatusFromCode(code int) MessageStatus {
	switch code {
	case transport.StatusCodePending:
		return MessageStatusPending
	case transport.StatusCodeServerAck:
		return MessageStatusServer
	case transport.StatusCodeDeliveryAck:
		return MessageStatusDelivered
	case transport.StatusCodeRead:
		return MessageStatusRead
	case transport.StatusCodePlayed:
		return MessageStatusPlayed
	default:
		return MessageStatusError
	}
}

// MessageUpdate is emitted once per delivery-status transition. It is
// ephemeral and not persisted by the core.
type MessageUpdate struct {
	SessionID string               `json:"sessionId"`
	Key       transport.MessageKey `json:"key"`
	Status    MessageStatus        `json:"status"`
}

// GroupMemberUpdate reports a group membership change, pre-bound with reply
// helpers addressed at the group.
type GroupMemberUpdate struct {
	SessionID    string                      `json:"sessionId"`
	GroupJID     string                      `json:"groupId"`
	Author       string                      `json:"author"`
	Participants []string                    `json:"participants"`
	Action       transport.ParticipantAction `json:"action"`

	Responder Responder `json:"-"`
}
