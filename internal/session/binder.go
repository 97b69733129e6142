package session

import (
	"context"

	apperrors "whatsauto/internal/errors"
	"whatsauto/internal/models"
	"whatsauto/pkg/sticker"
	"whatsauto/pkg/transport"
)

// bindMessage attaches the contextual reply operations to a normalized
// message and, one level deep, to its quoted message. The quoted
// responder addresses the same chat but quotes the quoted message's own
// synthesized key.
func (c *Controller) bindMessage(msg *models.Message) {
	if msg == nil {
		return
	}
	r := &responder{ctrl: c, chatJID: msg.Key.RemoteJID, key: msg.Key, raw: msg.Raw}
	if msg.Quoted != nil {
		r.quotedRaw = msg.Quoted.Raw
		msg.Quoted.Responder = &responder{ctrl: c, chatJID: msg.Key.RemoteJID, key: msg.Quoted.Key, raw: msg.Quoted.Raw}
	}
	msg.Responder = r
}

// bindGroupUpdate attaches reply operations addressed at the group a
// membership change happened in.
func (c *Controller) bindGroupUpdate(update *models.GroupMemberUpdate) {
	if update == nil {
		return
	}
	update.Responder = &responder{
		ctrl:    c,
		chatJID: update.GroupJID,
		key:     transport.MessageKey{RemoteJID: update.GroupJID},
	}
}

// responder implements models.Responder bound to one chat and one message
// key. Replies quote the bound key when it names a concrete message.
type responder struct {
	ctrl      *Controller
	chatJID   string
	key       transport.MessageKey
	raw       *transport.RawMessage
	quotedRaw *transport.RawMessage
}

func (r *responder) quoteOpts() *transport.SendOptions {
	if r.key.ID == "" || r.raw == nil {
		return nil
	}
	return &transport.SendOptions{Quoted: r.raw}
}

func (r *responder) send(ctx context.Context, content *transport.OutgoingContent) (*transport.SendReceipt, error) {
	return r.ctrl.send(ctx, r.chatJID, content, r.quoteOpts())
}

func (r *responder) ReplyText(ctx context.Context, text string) (*transport.SendReceipt, error) {
	return r.send(ctx, &transport.OutgoingContent{Text: text})
}

func (r *responder) ReplyImage(ctx context.Context, media transport.MediaSource, caption string) (*transport.SendReceipt, error) {
	return r.sendMediaWithFallback(ctx, caption, &transport.OutgoingContent{
		Image: &transport.OutgoingMedia{Source: media, Caption: caption},
	})
}

func (r *responder) ReplyVideo(ctx context.Context, media transport.MediaSource, caption string) (*transport.SendReceipt, error) {
	return r.sendMediaWithFallback(ctx, caption, &transport.OutgoingContent{
		Video: &transport.OutgoingMedia{Source: media, Caption: caption},
	})
}

func (r *responder) ReplyAudio(ctx context.Context, media transport.MediaSource, voiceNote bool) (*transport.SendReceipt, error) {
	return r.send(ctx, &transport.OutgoingContent{
		Audio: &transport.OutgoingMedia{Source: media, VoiceNote: voiceNote},
	})
}

func (r *responder) ReplyDocument(ctx context.Context, media transport.MediaSource, filename, caption string) (*transport.SendReceipt, error) {
	return r.sendMediaWithFallback(ctx, caption, &transport.OutgoingContent{
		Document: &transport.OutgoingMedia{Source: media, Caption: caption, FileName: filename},
	})
}

func (r *responder) ReplySticker(ctx context.Context, webp []byte) (*transport.SendReceipt, error) {
	return r.send(ctx, &transport.OutgoingContent{Sticker: webp})
}

// sendMediaWithFallback mirrors the controller-level policy: a failed
// media send degrades to its caption as plain text, but only when the
// transport send itself failed.
func (r *responder) sendMediaWithFallback(ctx context.Context, caption string, content *transport.OutgoingContent) (*transport.SendReceipt, error) {
	receipt, err := r.send(ctx, content)
	if err == nil {
		return receipt, nil
	}
	if caption == "" {
		return nil, err
	}
	r.ctrl.logger.WithError(err).Warn("Media reply failed, falling back to text")
	receipt, fbErr := r.send(ctx, &transport.OutgoingContent{Text: caption})
	if fbErr != nil {
		return nil, err
	}
	return receipt, nil
}

func (r *responder) ReplyTyping(ctx context.Context, during func(context.Context) error) error {
	return r.ctrl.SendPresenceDuring(ctx, r.chatJID, transport.PresenceComposing, during)
}

func (r *responder) ReplyRecording(ctx context.Context, during func(context.Context) error) error {
	return r.ctrl.SendPresenceDuring(ctx, r.chatJID, transport.PresenceRecording, during)
}

func (r *responder) MarkRead(ctx context.Context) error {
	if r.key.ID == "" {
		return apperrors.NewValidationError("message", "no message to mark as read")
	}
	return r.ctrl.ReadMessages(ctx, r.key)
}

func (r *responder) React(ctx context.Context, reaction string) (*transport.SendReceipt, error) {
	if r.key.ID == "" {
		return nil, apperrors.NewValidationError("message", "no message to react to")
	}
	return r.ctrl.SendReaction(ctx, r.key, reaction)
}

func (r *responder) Forward(ctx context.Context, to string, isGroup bool) (*transport.SendReceipt, error) {
	if r.raw == nil {
		return nil, apperrors.NewValidationError("message", "no message to forward")
	}
	return r.ctrl.ForwardMessage(ctx, to, isGroup, r.raw)
}

func (r *responder) DownloadMedia(ctx context.Context) ([]byte, error) {
	if !hasMediaPayload(r.raw) {
		return nil, sticker.ErrNoMedia
	}
	conn, err := r.ctrl.connection()
	if err != nil {
		return nil, err
	}
	data, err := conn.DownloadMedia(ctx, r.raw)
	if err != nil {
		return nil, apperrors.NewTransportError("download media", err)
	}
	return data, nil
}

// ToSticker encodes the message's media as a webp sticker. When the
// message itself has no media but quotes one that does, the quoted media
// is used instead.
func (r *responder) ToSticker(ctx context.Context, opts sticker.Options) ([]byte, error) {
	if r.ctrl.encoder == nil {
		return nil, apperrors.New(apperrors.ErrCodeValidationFailed, "no sticker encoder configured")
	}

	source := r.raw
	if !hasStickerSource(source) {
		source = r.quotedRaw
	}
	if !hasStickerSource(source) {
		return nil, sticker.ErrNoMedia
	}

	conn, err := r.ctrl.connection()
	if err != nil {
		return nil, err
	}
	data, err := conn.DownloadMedia(ctx, source)
	if err != nil {
		return nil, apperrors.NewTransportError("download media", err)
	}

	if opts.Pack == "" {
		opts.Pack = r.ctrl.cfg.StickerPack
	}
	if opts.Author == "" {
		opts.Author = r.ctrl.cfg.StickerAuthor
	}
	return r.ctrl.encoder.Encode(ctx, data, opts)
}

func hasMediaPayload(raw *transport.RawMessage) bool {
	if raw == nil || raw.Payload == nil {
		return false
	}
	p := raw.Payload
	return p.Image != nil || p.Sticker != nil || p.Audio != nil || p.Video != nil || p.Document != nil
}

// hasStickerSource reports whether the payload carries media that can be
// rendered as a sticker. Audio and plain documents cannot.
func hasStickerSource(raw *transport.RawMessage) bool {
	if raw == nil || raw.Payload == nil {
		return false
	}
	p := raw.Payload
	return p.Image != nil || p.Sticker != nil || p.Video != nil
}

var _ models.Responder = (*responder)(nil)
