package normalize

import (
	"testing"

	"whatsauto/internal/models"
	"whatsauto/pkg/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCtx = Context{
	SessionID: "main",
	SelfJID:   "628111111111@s.whatsapp.net",
}

func rawText(text string) *transport.RawMessage {
	return &transport.RawMessage{
		Key:     transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "MSG1"},
		Payload: &transport.Payload{Conversation: text},
	}
}

func TestNormalizeTextPriority(t *testing.T) {
	tests := []struct {
		name     string
		payload  *transport.Payload
		expected string
	}{
		{
			name:     "conversation",
			payload:  &transport.Payload{Conversation: "plain"},
			expected: "plain",
		},
		{
			name: "conversation wins over extended text",
			payload: &transport.Payload{
				Conversation: "plain",
				ExtendedText: &transport.TextContent{Text: "extended"},
			},
			expected: "plain",
		},
		{
			name: "extended text",
			payload: &transport.Payload{
				ExtendedText: &transport.TextContent{Text: "extended"},
			},
			expected: "extended",
		},
		{
			name: "image caption",
			payload: &transport.Payload{
				Image: &transport.MediaContent{Caption: "a photo", Mimetype: "image/jpeg"},
			},
			expected: "a photo",
		},
		{
			name: "image caption wins over video caption",
			payload: &transport.Payload{
				Image: &transport.MediaContent{Caption: "a photo", Mimetype: "image/jpeg"},
				Video: &transport.MediaContent{Caption: "a clip", Mimetype: "video/mp4"},
			},
			expected: "a photo",
		},
		{
			name: "video caption",
			payload: &transport.Payload{
				Video: &transport.MediaContent{Caption: "a clip", Mimetype: "video/mp4"},
			},
			expected: "a clip",
		},
		{
			name: "document caption",
			payload: &transport.Payload{
				Document: &transport.MediaContent{Caption: "a file", Mimetype: "application/pdf"},
			},
			expected: "a file",
		},
		{
			name:     "no text",
			payload:  &transport.Payload{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &transport.RawMessage{
				Key:     transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M"},
				Payload: tt.payload,
			}
			result := Normalize(raw, testCtx)
			require.NotNil(t, result.Message)
			assert.Equal(t, tt.expected, result.Message.Text)
		})
	}
}

func TestNormalizeMediaClassification(t *testing.T) {
	tests := []struct {
		name      string
		payload   *transport.Payload
		hasMedia  bool
		mediaType models.MediaType
	}{
		{
			name:      "image",
			payload:   &transport.Payload{Image: &transport.MediaContent{Mimetype: "image/jpeg"}},
			hasMedia:  true,
			mediaType: models.MediaTypeImage,
		},
		{
			name:      "sticker classifies as image",
			payload:   &transport.Payload{Sticker: &transport.MediaContent{Mimetype: "image/webp"}},
			hasMedia:  true,
			mediaType: models.MediaTypeImage,
		},
		{
			name:      "audio",
			payload:   &transport.Payload{Audio: &transport.MediaContent{Mimetype: "audio/ogg"}},
			hasMedia:  true,
			mediaType: models.MediaTypeAudio,
		},
		{
			name:      "video",
			payload:   &transport.Payload{Video: &transport.MediaContent{Mimetype: "video/mp4"}},
			hasMedia:  true,
			mediaType: models.MediaTypeVideo,
		},
		{
			name:      "document",
			payload:   &transport.Payload{Document: &transport.MediaContent{Mimetype: "application/pdf"}},
			hasMedia:  true,
			mediaType: models.MediaTypeDocument,
		},
		{
			name: "unknown top-level type counts as document",
			payload: &transport.Payload{
				Document: &transport.MediaContent{Mimetype: "model/gltf-binary"},
			},
			hasMedia:  true,
			mediaType: models.MediaTypeDocument,
		},
		{
			name: "caption-wrapped document",
			payload: &transport.Payload{
				DocumentWithCaption: &transport.Wrapper{Message: &transport.Payload{
					Document: &transport.MediaContent{Mimetype: "application/zip", Caption: "archive"},
				}},
			},
			hasMedia:  true,
			mediaType: models.MediaTypeDocument,
		},
		{
			name:      "text only",
			payload:   &transport.Payload{Conversation: "hi"},
			hasMedia:  false,
			mediaType: models.MediaTypeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &transport.RawMessage{
				Key:     transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M"},
				Payload: tt.payload,
			}
			result := Normalize(raw, testCtx)
			require.NotNil(t, result.Message)
			assert.Equal(t, tt.hasMedia, result.Message.HasMedia)
			assert.Equal(t, tt.mediaType, result.Message.MediaType)
		})
	}
}

func TestNormalizeUnwrapsEphemeral(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M"},
		Payload: &transport.Payload{
			Ephemeral: &transport.Wrapper{Message: &transport.Payload{Conversation: "vanishing"}},
		},
	}

	result := Normalize(raw, testCtx)
	require.NotNil(t, result.Message)
	assert.Equal(t, "vanishing", result.Message.Text)
}

func TestNormalizeUnwrapsNestedWrappers(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M"},
		Payload: &transport.Payload{
			Ephemeral: &transport.Wrapper{Message: &transport.Payload{
				DocumentWithCaption: &transport.Wrapper{Message: &transport.Payload{
					Document: &transport.MediaContent{Mimetype: "application/pdf", Caption: "deep"},
				}},
			}},
		},
	}

	result := Normalize(raw, testCtx)
	require.NotNil(t, result.Message)
	assert.Equal(t, "deep", result.Message.Text)
	assert.Equal(t, models.MediaTypeDocument, result.Message.MediaType)
}

func TestNormalizeScopeFlags(t *testing.T) {
	group := &transport.RawMessage{
		Key: transport.MessageKey{
			RemoteJID:   "120363000000000000@g.us",
			ID:          "G1",
			Participant: "628222222222@s.whatsapp.net",
		},
		Payload: &transport.Payload{Conversation: "in group"},
	}
	result := Normalize(group, testCtx)
	require.NotNil(t, result.Message)
	assert.True(t, result.Message.IsGroup)
	assert.False(t, result.Message.IsStory)

	story := &transport.RawMessage{
		Key: transport.MessageKey{
			RemoteJID:   "status@broadcast",
			ID:          "S1",
			Participant: "628222222222@s.whatsapp.net",
		},
		Payload: &transport.Payload{Image: &transport.MediaContent{Mimetype: "image/jpeg"}},
	}
	result = Normalize(story, testCtx)
	require.NotNil(t, result.Message)
	assert.True(t, result.Message.IsStory)
	assert.False(t, result.Message.IsGroup)
}

func TestNormalizeAddressing(t *testing.T) {
	t.Run("received private", func(t *testing.T) {
		result := Normalize(rawText("hi"), testCtx)
		msg := result.Message
		require.NotNil(t, msg)
		assert.Equal(t, models.DirectionReceived, msg.Direction())
		assert.Equal(t, "628222222222@s.whatsapp.net", msg.Author)
		assert.Equal(t, testCtx.SelfJID, msg.Receiver)
	})

	t.Run("sent private", func(t *testing.T) {
		raw := rawText("hi")
		raw.Key.FromMe = true
		result := Normalize(raw, testCtx)
		msg := result.Message
		require.NotNil(t, msg)
		assert.Equal(t, models.DirectionSent, msg.Direction())
		assert.Equal(t, testCtx.SelfJID, msg.Author)
		assert.Equal(t, "628222222222@s.whatsapp.net", msg.Receiver)
	})

	t.Run("received group attributes the participant", func(t *testing.T) {
		raw := &transport.RawMessage{
			Key: transport.MessageKey{
				RemoteJID:   "120363000000000000@g.us",
				ID:          "G1",
				Participant: "628222222222@s.whatsapp.net",
			},
			Payload: &transport.Payload{Conversation: "in group"},
		}
		result := Normalize(raw, testCtx)
		msg := result.Message
		require.NotNil(t, msg)
		assert.Equal(t, "628222222222@s.whatsapp.net", msg.Author)
		assert.Equal(t, "120363000000000000@g.us", msg.Receiver)
	})
}

func TestNormalizeReaction(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "R1"},
		Payload: &transport.Payload{
			Reaction: &transport.ReactionContent{
				Text: "👍",
				Key:  &transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "MSG1"},
			},
		},
	}

	result := Normalize(raw, testCtx)
	msg := result.Message
	require.NotNil(t, msg)
	assert.True(t, msg.IsReaction)
	assert.Equal(t, "👍", msg.Text)
}

func TestNormalizeReactionRemoval(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "R2"},
		Payload: &transport.Payload{
			Reaction: &transport.ReactionContent{
				Text: "",
				Key:  &transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "MSG1"},
			},
		},
	}

	result := Normalize(raw, testCtx)
	msg := result.Message
	require.NotNil(t, msg)
	assert.True(t, msg.IsReaction)
	assert.Empty(t, msg.Text)
}

func TestNormalizeRevoke(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "P1"},
		Payload: &transport.Payload{
			Protocol: &transport.ProtocolContent{
				Type: transport.ProtocolRevoke,
				Key:  &transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "MSG1"},
			},
		},
	}

	result := Normalize(raw, testCtx)
	require.Nil(t, result.Message)
	require.NotNil(t, result.Deleted)
	assert.Equal(t, "main", result.Deleted.SessionID)
	assert.Equal(t, "MSG1", result.Deleted.DeletedID)
	assert.Equal(t, "P1", result.Deleted.Key.ID)
}

func TestNormalizeNonRevokeProtocolIsNotDeletion(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "P2"},
		Payload: &transport.Payload{
			Protocol: &transport.ProtocolContent{
				Type: transport.ProtocolEphemeralSetting,
				Key:  &transport.MessageKey{ID: "MSG1"},
			},
		},
	}

	result := Normalize(raw, testCtx)
	require.Nil(t, result.Deleted)
	require.NotNil(t, result.Message)
}

func TestNormalizeQuoted(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "628222222222@s.whatsapp.net", ID: "M2"},
		Payload: &transport.Payload{
			ExtendedText: &transport.TextContent{
				Text: "replying",
				ContextInfo: &transport.ContextInfo{
					StanzaID:    "M1",
					Participant: "628111111111:3@s.whatsapp.net",
					Quoted:      &transport.Payload{Conversation: "original"},
				},
			},
		},
	}

	result := Normalize(raw, testCtx)
	msg := result.Message
	require.NotNil(t, msg)
	require.NotNil(t, msg.Quoted)

	quoted := msg.Quoted
	assert.Equal(t, "original", quoted.Text)
	assert.Equal(t, "M1", quoted.Key.ID)
	assert.Equal(t, "628222222222@s.whatsapp.net", quoted.Key.RemoteJID)
	// The quoting participant carries a device part; it still resolves to
	// the session's own account.
	assert.True(t, quoted.Key.FromMe)
	assert.Nil(t, quoted.Quoted, "quoted resolution is one level deep")
}

func TestNormalizeQuotedMediaClassifiedIndependently(t *testing.T) {
	raw := &transport.RawMessage{
		Key: transport.MessageKey{RemoteJID: "120363000000000000@g.us", ID: "M3", Participant: "628222222222@s.whatsapp.net"},
		Payload: &transport.Payload{
			Image: &transport.MediaContent{
				Mimetype: "image/png",
				Caption:  "look",
				ContextInfo: &transport.ContextInfo{
					StanzaID:    "M1",
					Participant: "628333333333@s.whatsapp.net",
					Quoted: &transport.Payload{
						Video: &transport.MediaContent{Mimetype: "video/mp4", Caption: "clip"},
					},
				},
			},
		},
	}

	result := Normalize(raw, testCtx)
	msg := result.Message
	require.NotNil(t, msg)
	assert.Equal(t, models.MediaTypeImage, msg.MediaType)

	require.NotNil(t, msg.Quoted)
	assert.Equal(t, models.MediaTypeVideo, msg.Quoted.MediaType)
	assert.Equal(t, "clip", msg.Quoted.Text)
	assert.False(t, msg.Quoted.Key.FromMe)
	assert.True(t, msg.Quoted.IsGroup)
}
