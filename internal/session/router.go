package session

import (
	"whatsauto/internal/events"
	"whatsauto/internal/models"
)

// MessageChannels returns, in publish order, every channel a normalized
// message fans out to. The order is fixed: the direction channel first,
// then the scope channels qualified by direction, then the undirected
// scope channels, and finally the terminal message channel.
func MessageChannels(msg *models.Message) []string {
	channels := make([]string, 0, 6)

	sent := msg.Key.FromMe
	if sent {
		channels = append(channels, events.MessageSent)
	} else {
		channels = append(channels, events.MessageReceived)
	}

	switch {
	case msg.IsStory:
		if sent {
			channels = append(channels, events.StorySent)
		} else {
			channels = append(channels, events.StoryReceived)
		}
	case msg.IsReaction:
		if sent {
			channels = append(channels, events.ReactionSent)
			if msg.IsGroup {
				channels = append(channels, events.GroupReactionSent)
			} else {
				channels = append(channels, events.PrivateReactionSent)
			}
		} else {
			channels = append(channels, events.ReactionReceived)
			if msg.IsGroup {
				channels = append(channels, events.GroupReactionReceived)
			} else {
				channels = append(channels, events.PrivateReactionReceived)
			}
		}
	case msg.IsGroup:
		if sent {
			channels = append(channels, events.GroupMessageSent)
		} else {
			channels = append(channels, events.GroupMessageReceived)
		}
	default:
		if sent {
			channels = append(channels, events.PrivateMessageSent)
		} else {
			channels = append(channels, events.PrivateMessageReceived)
		}
	}

	switch {
	case msg.IsStory:
		channels = append(channels, events.Story)
	case msg.IsReaction:
		channels = append(channels, events.Reaction)
		if msg.IsGroup {
			channels = append(channels, events.GroupReaction)
		} else {
			channels = append(channels, events.PrivateReaction)
		}
	case msg.IsGroup:
		channels = append(channels, events.GroupMessage)
	default:
		channels = append(channels, events.PrivateMessage)
	}

	return append(channels, events.Message)
}

// RouteMessage publishes a normalized message on each of its channels in
// the fixed fan-out order.
func RouteMessage(bus *events.Bus, msg *models.Message) {
	if msg == nil {
		return
	}
	for _, channel := range MessageChannels(msg) {
		bus.Publish(channel, msg)
	}
}

// RouteDeleted publishes a deletion on the message-deleted channel only;
// deletions never reach the regular message channels.
func RouteDeleted(bus *events.Bus, del *models.DeletedMessage) {
	if del == nil {
		return
	}
	bus.Publish(events.MessageDeleted, del)
}

// RouteUpdate publishes a delivery-status transition on message-updated
// only.
func RouteUpdate(bus *events.Bus, update *models.MessageUpdate) {
	if update == nil {
		return
	}
	bus.Publish(events.MessageUpdated, update)
}

// RouteGroupMemberUpdate publishes a membership change on
// group-member-update only.
func RouteGroupMemberUpdate(bus *events.Bus, update *models.GroupMemberUpdate) {
	if update == nil {
		return
	}
	bus.Publish(events.GroupMemberUpdate, update)
}
