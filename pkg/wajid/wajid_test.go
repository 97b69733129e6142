package wajid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPhone(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		isGroup  bool
		expected string
		wantErr  bool
	}{
		{
			name:     "plain number",
			phone:    "628123456789",
			expected: "628123456789@s.whatsapp.net",
		},
		{
			name:     "number with plus and spaces",
			phone:    "+62 812 3456-789",
			expected: "628123456789@s.whatsapp.net",
		},
		{
			name:     "group id",
			phone:    "120363000000000000",
			isGroup:  true,
			expected: "120363000000000000@g.us",
		},
		{
			name:     "already a user jid",
			phone:    "628123456789@s.whatsapp.net",
			expected: "628123456789@s.whatsapp.net",
		},
		{
			name:     "already a group jid without flag",
			phone:    "120363000000000000@g.us",
			expected: "120363000000000000@g.us",
		},
		{
			name:     "status broadcast",
			phone:    "status@broadcast",
			expected: "status@broadcast",
		},
		{
			name:    "empty",
			phone:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jid, err := FromPhone(tt.phone, tt.isGroup)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, jid)
		})
	}
}

func TestToPhone(t *testing.T) {
	assert.Equal(t, "628123456789", ToPhone("628123456789@s.whatsapp.net"))
	assert.Equal(t, "628123456789", ToPhone("628123456789:12@s.whatsapp.net"))
	assert.Equal(t, "628123456789", ToPhone("628123456789"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "628123456789@s.whatsapp.net", Normalize("628123456789:12@s.whatsapp.net"))
	assert.Equal(t, "628123456789@s.whatsapp.net", Normalize("628123456789@s.whatsapp.net"))
}

func TestScopePredicates(t *testing.T) {
	assert.True(t, IsGroup("120363000000000000@g.us"))
	assert.False(t, IsGroup("628123456789@s.whatsapp.net"))

	assert.True(t, IsStory("status@broadcast"))
	assert.False(t, IsStory("120363000000000000@g.us"))

	assert.True(t, IsBroadcast("status@broadcast"))
	assert.True(t, IsBroadcast("123456@broadcast"))
	assert.False(t, IsBroadcast("628123456789@s.whatsapp.net"))
}
