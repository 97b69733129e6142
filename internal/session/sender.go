package session

import (
	"context"
	"mime"
	"path/filepath"
	"time"

	"whatsauto/internal/constants"
	apperrors "whatsauto/internal/errors"
	"whatsauto/internal/metrics"
	"whatsauto/internal/tracing"
	"whatsauto/pkg/sticker"
	"whatsauto/pkg/transport"
	"whatsauto/pkg/wajid"

	"go.opentelemetry.io/otel/attribute"
)

// resolveRecipient turns a phone number or JID into a full JID and
// verifies the recipient exists before anything is sent: individual
// accounts via an IsOnWhatsApp lookup, groups via a metadata fetch.
// Story and broadcast JIDs have no account behind them and skip the check.
func (c *Controller) resolveRecipient(ctx context.Context, to string, isGroup bool) (string, error) {
	jid, err := wajid.FromPhone(to, isGroup)
	if err != nil {
		return "", apperrors.NewValidationError("to", err.Error())
	}

	if wajid.IsStory(jid) || wajid.IsBroadcast(jid) {
		return jid, nil
	}

	conn, err := c.connection()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultRecipientCheckSec*time.Second)
	defer cancel()

	if isGroup {
		if _, err := conn.GroupMetadata(ctx, jid); err != nil {
			return "", apperrors.NewRecipientError(to)
		}
		return jid, nil
	}

	exists, err := conn.IsOnWhatsApp(ctx, jid)
	if err != nil {
		return "", apperrors.NewTransportError("resolve recipient", err)
	}
	if !exists {
		return "", apperrors.NewRecipientError(to)
	}
	return jid, nil
}

// SendText sends a plain text message.
func (c *Controller) SendText(ctx context.Context, to string, isGroup bool, text string, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	jid, err := c.resolveRecipient(ctx, to, isGroup)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, jid, &transport.OutgoingContent{Text: text}, opts)
}

// SendImage sends an image with an optional caption. On transport failure
// the caption is retried as plain text so the recipient still hears
// something; recipient validation failures are never retried.
func (c *Controller) SendImage(ctx context.Context, to string, isGroup bool, media transport.MediaSource, caption string, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	return c.sendMedia(ctx, to, isGroup, caption, opts, &transport.OutgoingContent{
		Image: &transport.OutgoingMedia{Source: media, Caption: caption},
	})
}

// SendVideo sends a video with an optional caption.
func (c *Controller) SendVideo(ctx context.Context, to string, isGroup bool, media transport.MediaSource, caption string, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	return c.sendMedia(ctx, to, isGroup, caption, opts, &transport.OutgoingContent{
		Video: &transport.OutgoingMedia{Source: media, Caption: caption},
	})
}

// SendAudio sends an audio message, optionally rendered as a voice note.
func (c *Controller) SendAudio(ctx context.Context, to string, isGroup bool, media transport.MediaSource, voiceNote bool, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	return c.sendMedia(ctx, to, isGroup, "", opts, &transport.OutgoingContent{
		Audio: &transport.OutgoingMedia{Source: media, VoiceNote: voiceNote},
	})
}

// SendDocument sends a document with a file name and optional caption. The
// mimetype is inferred from the file name's extension.
func (c *Controller) SendDocument(ctx context.Context, to string, isGroup bool, media transport.MediaSource, filename, caption string, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	return c.sendMedia(ctx, to, isGroup, caption, opts, &transport.OutgoingContent{
		Document: &transport.OutgoingMedia{
			Source:   media,
			Caption:  caption,
			FileName: filename,
			Mimetype: mime.TypeByExtension(filepath.Ext(filename)),
		},
	})
}

// SendTyping shows a typing indicator in the chat while fn runs.
func (c *Controller) SendTyping(ctx context.Context, to string, isGroup bool, fn func(context.Context) error) error {
	jid, err := wajid.FromPhone(to, isGroup)
	if err != nil {
		return apperrors.NewValidationError("to", err.Error())
	}
	return c.SendPresenceDuring(ctx, jid, transport.PresenceComposing, fn)
}

// SendRecording shows a voice-recording indicator in the chat while fn runs.
func (c *Controller) SendRecording(ctx context.Context, to string, isGroup bool, fn func(context.Context) error) error {
	jid, err := wajid.FromPhone(to, isGroup)
	if err != nil {
		return apperrors.NewValidationError("to", err.Error())
	}
	return c.SendPresenceDuring(ctx, jid, transport.PresenceRecording, fn)
}

// SendSticker sends an already encoded webp sticker.
func (c *Controller) SendSticker(ctx context.Context, to string, isGroup bool, webp []byte, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	jid, err := c.resolveRecipient(ctx, to, isGroup)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, jid, &transport.OutgoingContent{Sticker: webp}, opts)
}

// SendImageAsSticker converts raw image bytes to a webp sticker carrying
// the session's sticker metadata, then sends it.
func (c *Controller) SendImageAsSticker(ctx context.Context, to string, isGroup bool, image []byte, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	if c.encoder == nil {
		return nil, apperrors.New(apperrors.ErrCodeValidationFailed, "no sticker encoder configured")
	}
	webp, err := c.encoder.Encode(ctx, image, sticker.Options{
		Pack:   c.cfg.StickerPack,
		Author: c.cfg.StickerAuthor,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSendFailed, "failed to encode sticker")
	}
	return c.SendSticker(ctx, to, isGroup, webp, opts)
}

// SendReaction reacts to a message; an empty emoji withdraws the reaction.
func (c *Controller) SendReaction(ctx context.Context, key transport.MessageKey, emoji string) (*transport.SendReceipt, error) {
	return c.send(ctx, key.RemoteJID, &transport.OutgoingContent{
		Reaction: &transport.ReactionContent{Text: emoji, Key: &key},
	}, nil)
}

// ForwardMessage forwards a received message to another chat.
func (c *Controller) ForwardMessage(ctx context.Context, to string, isGroup bool, raw *transport.RawMessage) (*transport.SendReceipt, error) {
	if raw == nil {
		return nil, apperrors.NewValidationError("message", "nothing to forward")
	}
	jid, err := c.resolveRecipient(ctx, to, isGroup)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, jid, &transport.OutgoingContent{Forward: raw}, nil)
}

// sendMedia resolves the recipient, sends the media content and falls back
// to the plain-text caption when the transport send itself fails.
func (c *Controller) sendMedia(ctx context.Context, to string, isGroup bool, caption string, opts *transport.SendOptions, content *transport.OutgoingContent) (*transport.SendReceipt, error) {
	jid, err := c.resolveRecipient(ctx, to, isGroup)
	if err != nil {
		return nil, err
	}

	receipt, err := c.send(ctx, jid, content, opts)
	if err == nil {
		return receipt, nil
	}

	if caption == "" {
		return nil, err
	}
	c.logger.WithError(err).Warn("Media send failed, falling back to text")
	receipt, fbErr := c.send(ctx, jid, &transport.OutgoingContent{Text: caption}, opts)
	if fbErr != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Controller) send(ctx context.Context, jid string, content *transport.OutgoingContent, opts *transport.SendOptions) (*transport.SendReceipt, error) {
	kind := contentKind(content)
	ctx, span := tracing.StartSpan(ctx, "send_message",
		attribute.String("session.id", c.id),
		attribute.String("message.kind", kind))
	defer span.End()

	conn, err := c.connection()
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultSendTimeoutSec*time.Second)
	defer cancel()

	start := time.Now()
	receipt, err := conn.SendMessage(ctx, jid, content, opts)
	metrics.Observe("send_duration", time.Since(start), map[string]string{
		"session": c.id,
		"kind":    kind,
	})
	if err != nil {
		wrapped := apperrors.NewSendError(kind, jid, err)
		tracing.RecordError(ctx, wrapped)
		return nil, wrapped
	}
	metrics.Increment("messages_sent_total", map[string]string{
		"session": c.id,
		"kind":    kind,
	})
	return receipt, nil
}

func contentKind(content *transport.OutgoingContent) string {
	switch {
	case content.Image != nil:
		return "image"
	case content.Video != nil:
		return "video"
	case content.Audio != nil:
		return "audio"
	case content.Document != nil:
		return "document"
	case content.Sticker != nil:
		return "sticker"
	case content.Reaction != nil:
		return "reaction"
	case content.Forward != nil:
		return "forward"
	default:
		return "text"
	}
}

// SendPresenceDuring publishes a presence (typing, recording) for the
// duration of fn, then settles back to paused. The message send that
// usually follows happens inside fn.
func (c *Controller) SendPresenceDuring(ctx context.Context, jid string, kind transport.PresenceKind, fn func(context.Context) error) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.SendPresence(ctx, kind, jid); err != nil {
		return apperrors.NewTransportError("presence", err)
	}
	defer func() {
		pauseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.SendPresence(pauseCtx, transport.PresencePaused, jid)
	}()
	return fn(ctx)
}

// ReadMessages marks the given message keys as read.
func (c *Controller) ReadMessages(ctx context.Context, keys ...transport.MessageKey) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.ReadMessages(ctx, keys); err != nil {
		return apperrors.NewTransportError("read messages", err)
	}
	return nil
}

// IsOnWhatsApp reports whether the phone number has a WhatsApp account.
func (c *Controller) IsOnWhatsApp(ctx context.Context, phone string) (bool, error) {
	jid, err := wajid.FromPhone(phone, false)
	if err != nil {
		return false, apperrors.NewValidationError("phone", err.Error())
	}
	conn, err := c.connection()
	if err != nil {
		return false, err
	}
	exists, err := conn.IsOnWhatsApp(ctx, jid)
	if err != nil {
		return false, apperrors.NewTransportError("lookup", err)
	}
	return exists, nil
}

// ProfileInfo fetches the profile picture and status text of a contact or
// group.
func (c *Controller) ProfileInfo(ctx context.Context, target string, isGroup bool) (*transport.ProfileInfo, error) {
	jid, err := wajid.FromPhone(target, isGroup)
	if err != nil {
		return nil, apperrors.NewValidationError("target", err.Error())
	}
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultProfileFetchTimeoutSec*time.Second)
	defer cancel()

	info := &transport.ProfileInfo{}
	if url, err := conn.ProfilePictureURL(ctx, jid); err == nil {
		info.PictureURL = url
	}
	if status, err := conn.FetchStatus(ctx, jid); err == nil {
		info.Status = status
	}
	return info, nil
}

// GroupMetadata fetches subject, owner and participants of a group.
func (c *Controller) GroupMetadata(ctx context.Context, groupJID string) (*transport.GroupMetadata, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	meta, err := conn.GroupMetadata(ctx, groupJID)
	if err != nil {
		return nil, apperrors.NewTransportError("group metadata", err)
	}
	return meta, nil
}

// UpdateGroupParticipants adds, removes, promotes or demotes group members.
// Phone numbers are normalized to JIDs before the call.
func (c *Controller) UpdateGroupParticipants(ctx context.Context, groupJID string, action transport.ParticipantAction, phones ...string) error {
	jids := make([]string, 0, len(phones))
	for _, p := range phones {
		jid, err := wajid.FromPhone(p, false)
		if err != nil {
			return apperrors.NewValidationError("participants", err.Error())
		}
		jids = append(jids, jid)
	}
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.GroupParticipantsUpdate(ctx, groupJID, jids, action); err != nil {
		return apperrors.NewTransportError("group participants update", err)
	}
	return nil
}
