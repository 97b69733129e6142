// Package events provides the named-event fan-out surface sessions publish
// on and consumers subscribe to.
package events

// Channel names. A single inbound message can legitimately trigger several
// of these in one pass; Message is always the terminal one.
const (
	Connecting     = "connecting"
	QR             = "qr"
	PairingCode    = "pairing-code"
	Connected      = "connected"
	Disconnected   = "disconnected"
	MessageUpdated = "message-updated"

	Message         = "message"
	MessageReceived = "message-received"
	MessageSent     = "message-sent"

	GroupMessage         = "group-message"
	GroupMessageReceived = "group-message-received"
	GroupMessageSent     = "group-message-sent"

	PrivateMessage         = "private-message"
	PrivateMessageReceived = "private-message-received"
	PrivateMessageSent     = "private-message-sent"

	Story         = "story"
	StoryReceived = "story-received"
	StorySent     = "story-sent"

	Reaction         = "reaction"
	ReactionReceived = "reaction-received"
	ReactionSent     = "reaction-sent"

	GroupReaction         = "group-reaction"
	GroupReactionReceived = "group-reaction-received"
	GroupReactionSent     = "group-reaction-sent"

	PrivateReaction         = "private-reaction"
	PrivateReactionReceived = "private-reaction-received"
	PrivateReactionSent     = "private-reaction-sent"

	MessageDeleted    = "message-deleted"
	GroupMemberUpdate = "group-member-update"
)
