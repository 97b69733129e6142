// Package wajid provides helpers for the WhatsApp JID address format.
package wajid

import (
	"fmt"
	"strings"
)

const (
	// UserSuffix is the JID suffix for individual accounts.
	UserSuffix = "@s.whatsapp.net"
	// GroupSuffix is the JID suffix for group conversations.
	GroupSuffix = "@g.us"
	// BroadcastSuffix is the JID suffix for broadcast lists.
	BroadcastSuffix = "@broadcast"
	// StatusBroadcast is the conversation id used for stories (status updates).
	StatusBroadcast = "status@broadcast"
)

// FromPhone converts a phone number to a JID. Spaces, plus signs and dashes
// are stripped. If the input already carries the relevant suffix it is
// returned normalized but otherwise unchanged.
func FromPhone(phone string, isGroup bool) (string, error) {
	if phone == "" {
		return "", fmt.Errorf("phone number is required")
	}

	number := strings.NewReplacer(" ", "", "+", "", "-", "").Replace(phone)

	suffix := UserSuffix
	if isGroup {
		suffix = GroupSuffix
	}
	if strings.Contains(number, suffix) || strings.Contains(number, BroadcastSuffix) {
		return number, nil
	}
	if !isGroup && strings.Contains(number, GroupSuffix) {
		return number, nil
	}

	return number + suffix, nil
}

// ToPhone strips a user JID back down to the bare phone number. Device
// suffixes (":1" etc.) are removed as well.
func ToPhone(jid string) string {
	phone := jid
	if idx := strings.Index(phone, "@"); idx >= 0 {
		phone = phone[:idx]
	}
	if idx := strings.Index(phone, ":"); idx >= 0 {
		phone = phone[:idx]
	}
	return phone
}

// Normalize maps a raw account id (which may carry a device part, e.g.
// "628123:12@s.whatsapp.net") to its canonical user JID.
func Normalize(jid string) string {
	phone := ToPhone(jid)
	if phone == "" {
		return jid
	}
	return phone + UserSuffix
}

// IsGroup reports whether the conversation id addresses a group.
func IsGroup(jid string) bool {
	return strings.Contains(jid, GroupSuffix)
}

// IsStory reports whether the conversation id addresses the status broadcast.
func IsStory(jid string) bool {
	return strings.Contains(jid, StatusBroadcast)
}

// IsBroadcast reports whether the conversation id addresses any broadcast list.
func IsBroadcast(jid string) bool {
	return strings.Contains(jid, BroadcastSuffix)
}
