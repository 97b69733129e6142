// Package normalize converts raw transport payloads into the canonical
// message model. The transformation is pure: it never touches the network
// and never mutates its input.
package normalize

import (
	"strings"

	"whatsauto/internal/models"
	"whatsauto/pkg/transport"
	"whatsauto/pkg/wajid"
)

// Context carries the per-session facts normalization needs.
type Context struct {
	// SessionID names the session the raw event arrived on.
	SessionID string
	// SelfJID is the canonical JID of the session's own account.
	SelfJID string
}

// Result is the outcome of normalizing one raw message. Exactly one of
// Message and Deleted is set.
type Result struct {
	Message *models.Message
	Deleted *models.DeletedMessage
}

// Normalize converts one raw transport message into its canonical form.
func Normalize(raw *transport.RawMessage, sctx Context) Result {
	if deleted := revokedID(raw.Payload); deleted != "" {
		return Result{Deleted: &models.DeletedMessage{
			SessionID: sctx.SessionID,
			Key:       raw.Key,
			DeletedID: deleted,
		}}
	}

	payload := unwrap(raw.Payload)

	msg := &models.Message{
		SessionID: sctx.SessionID,
		Key:       raw.Key,
		Timestamp: raw.Timestamp,
		PushName:  raw.PushName,
		Raw:       raw,
	}
	classify(msg, payload, sctx)

	if info := quotingInfo(payload); info != nil && info.Quoted != nil {
		msg.Quoted = resolveQuoted(raw.Key.RemoteJID, info, sctx)
	}

	return Result{Message: msg}
}

// classify fills text, media and scope fields of msg from its unwrapped
// payload.
func classify(msg *models.Message, payload *transport.Payload, sctx Context) {
	msg.Text = extractText(payload)

	mimetype := extractMimetype(payload)
	msg.HasMedia = mimetype != ""
	msg.MediaType = mediaTypeOf(mimetype)

	from := msg.Key.RemoteJID
	msg.IsGroup = wajid.IsGroup(from)
	msg.IsStory = wajid.IsStory(from)

	if payload != nil && payload.Reaction != nil {
		msg.IsReaction = true
		// An empty reaction text represents removal of a prior reaction.
		msg.Text = payload.Reaction.Text
	}

	participant := msg.Key.Participant
	if msg.Key.FromMe {
		msg.Author = sctx.SelfJID
		msg.Receiver = from
	} else {
		msg.Author = from
		msg.Receiver = sctx.SelfJID
		if msg.IsGroup || msg.IsStory {
			msg.Author = participant
		}
		if msg.IsGroup {
			msg.Receiver = from
		}
	}
}

// resolveQuoted builds the one-level-deep nested message for a quoted
// stanza. The nested message is classified independently but never carries
// a further quoted message itself.
func resolveQuoted(remoteJID string, info *transport.ContextInfo, sctx Context) *models.Message {
	key := transport.MessageKey{
		RemoteJID:   remoteJID,
		ID:          info.StanzaID,
		Participant: info.Participant,
		FromMe:      wajid.Normalize(info.Participant) == sctx.SelfJID,
	}

	payload := unwrap(info.Quoted)
	raw := &transport.RawMessage{Key: key, Payload: payload}

	quoted := &models.Message{
		SessionID: sctx.SessionID,
		Key:       key,
		Raw:       raw,
	}
	classify(quoted, payload, sctx)
	return quoted
}

// unwrap peels caption- and ephemerality-wrapper envelopes until the real
// content is reached. One layer is what the wire shows in practice; the
// loop guards against deeper stacking.
func unwrap(payload *transport.Payload) *transport.Payload {
	for payload != nil {
		switch {
		case payload.DocumentWithCaption != nil && payload.DocumentWithCaption.Message != nil:
			payload = payload.DocumentWithCaption.Message
		case payload.Ephemeral != nil && payload.Ephemeral.Message != nil:
			payload = payload.Ephemeral.Message
		default:
			return payload
		}
	}
	return payload
}

// revokedID returns the id of the revoked message when the payload is a
// protocol delete notice, "" otherwise.
func revokedID(payload *transport.Payload) string {
	if payload == nil || payload.Protocol == nil {
		return ""
	}
	if payload.Protocol.Type != transport.ProtocolRevoke {
		return ""
	}
	if payload.Protocol.Key == nil {
		return ""
	}
	return payload.Protocol.Key.ID
}

// Text extraction is an explicit ordered list of extractors; the first
// non-empty result wins. Keeping the priority contract in one slice makes
// it testable in isolation.
var textExtractors = []func(*transport.Payload) string{
	func(p *transport.Payload) string { return p.Conversation },
	func(p *transport.Payload) string {
		if p.ExtendedText != nil {
			return p.ExtendedText.Text
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.Image != nil {
			return p.Image.Caption
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.Video != nil {
			return p.Video.Caption
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.Document != nil {
			return p.Document.Caption
		}
		return ""
	},
}

func extractText(payload *transport.Payload) string {
	if payload == nil {
		return ""
	}
	for _, extract := range textExtractors {
		if text := extract(payload); text != "" {
			return text
		}
	}
	return ""
}

// Media detection follows the same ordered-extractor shape as text.
var mimetypeExtractors = []func(*transport.Payload) string{
	func(p *transport.Payload) string {
		if p.Image != nil {
			return p.Image.Mimetype
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.Sticker != nil {
			return p.Sticker.Mimetype
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.Audio != nil {
			return p.Audio.Mimetype
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.Video != nil {
			return p.Video.Mimetype
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.Document != nil {
			return p.Document.Mimetype
		}
		return ""
	},
	func(p *transport.Payload) string {
		if p.DocumentWithCaption != nil && p.DocumentWithCaption.Message != nil &&
			p.DocumentWithCaption.Message.Document != nil {
			return p.DocumentWithCaption.Message.Document.Mimetype
		}
		return ""
	},
}

func extractMimetype(payload *transport.Payload) string {
	if payload == nil {
		return ""
	}
	for _, extract := range mimetypeExtractors {
		if mimetype := extract(payload); mimetype != "" {
			return mimetype
		}
	}
	return ""
}

// mediaTypeOf maps a MIME type to its canonical media classification.
// Unknown top-level types count as documents.
func mediaTypeOf(mimetype string) models.MediaType {
	if mimetype == "" {
		return models.MediaTypeNone
	}
	top := mimetype
	if idx := strings.Index(top, "/"); idx >= 0 {
		top = top[:idx]
	}
	switch top {
	case "image":
		return models.MediaTypeImage
	case "audio":
		return models.MediaTypeAudio
	case "video":
		return models.MediaTypeVideo
	default:
		return models.MediaTypeDocument
	}
}

// quotingInfo picks the context info off whichever content subtype carries
// it, in the same priority order the wire uses.
func quotingInfo(payload *transport.Payload) *transport.ContextInfo {
	if payload == nil {
		return nil
	}
	if payload.ExtendedText != nil && payload.ExtendedText.ContextInfo != nil {
		return payload.ExtendedText.ContextInfo
	}
	for _, media := range []*transport.MediaContent{
		payload.Image, payload.Video, payload.Sticker, payload.Document,
	} {
		if media != nil && media.ContextInfo != nil {
			return media.ContextInfo
		}
	}
	return nil
}
