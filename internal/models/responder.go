package models

import (
	"context"

	"whatsauto/pkg/sticker"
	"whatsauto/pkg/transport"
)

// Responder is the set of contextual operations bound onto a dispatched
// message or group-membership event. Each operation closes over the
// originating conversation and, where it applies, the message key for
// quoting.
type Responder interface {
	ReplyText(ctx context.Context, text string) (*transport.SendReceipt, error)
	ReplyImage(ctx context.Context, media transport.MediaSource, caption string) (*transport.SendReceipt, error)
	ReplyVideo(ctx context.Context, media transport.MediaSource, caption string) (*transport.SendReceipt, error)
	ReplyAudio(ctx context.Context, media transport.MediaSource, voiceNote bool) (*transport.SendReceipt, error)
	ReplyDocument(ctx context.Context, media transport.MediaSource, filename, caption string) (*transport.SendReceipt, error)
	ReplySticker(ctx context.Context, webp []byte) (*transport.SendReceipt, error)

	// ReplyTyping shows a typing indicator for the duration of during.
	ReplyTyping(ctx context.Context, during func(context.Context) error) error
	// ReplyRecording shows a voice-recording indicator for the duration of
	// during.
	ReplyRecording(ctx context.Context, during func(context.Context) error) error

	MarkRead(ctx context.Context) error
	React(ctx context.Context, reaction string) (*transport.SendReceipt, error)
	Forward(ctx context.Context, to string, isGroup bool) (*transport.SendReceipt, error)

	// DownloadMedia fetches the message's media bytes.
	DownloadMedia(ctx context.Context) ([]byte, error)
	// ToSticker converts the message's media (or its quoted message's) into
	// a WebP sticker. Returns sticker.ErrNoMedia when neither carries
	// convertible media.
	ToSticker(ctx context.Context, opts sticker.Options) ([]byte, error)
}
