package main

import (
	"net/http"

	"whatsauto/internal/events"
	"whatsauto/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// eventEnvelope is one frame on the /api/events stream.
type eventEnvelope struct {
	Session string      `json:"session"`
	Channel string      `json:"channel"`
	Payload interface{} `json:"payload,omitempty"`
}

// handleEvents upgrades to a websocket and forwards a session's events as
// JSON frames until the client goes away. Frames that cannot keep up with
// the event rate are dropped rather than blocking dispatch.
func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bus, id, err := s.sessionBus(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Warnf("Websocket accept failed: %v", err)
			return
		}
		defer conn.CloseNow()

		frames := make(chan eventEnvelope, 64)
		push := func(channel string, payload interface{}) {
			select {
			case frames <- eventEnvelope{Session: id, Channel: channel, Payload: payload}:
			default:
			}
		}

		onBare := func(channel string) func() {
			return func() { push(channel, nil) }
		}
		onString := func(channel string) func(string) {
			return func(v string) { push(channel, v) }
		}

		subs := map[string]interface{}{
			events.Connecting:        onBare(events.Connecting),
			events.Connected:         onBare(events.Connected),
			events.Disconnected:      onBare(events.Disconnected),
			events.QR:                onString(events.QR),
			events.PairingCode:       onString(events.PairingCode),
			events.Message:           func(msg *models.Message) { push(events.Message, msg) },
			events.MessageDeleted:    func(del *models.DeletedMessage) { push(events.MessageDeleted, del) },
			events.MessageUpdated:    func(u *models.MessageUpdate) { push(events.MessageUpdated, u) },
			events.GroupMemberUpdate: func(u *models.GroupMemberUpdate) { push(events.GroupMemberUpdate, u) },
		}

		for channel, fn := range subs {
			if err := bus.Subscribe(channel, fn); err != nil {
				s.logger.Warnf("Failed to subscribe %s: %v", channel, err)
			}
		}
		defer func() {
			for channel, fn := range subs {
				if err := bus.Unsubscribe(channel, fn); err != nil {
					s.logger.Debugf("Failed to unsubscribe %s: %v", channel, err)
				}
			}
		}()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case frame := <-frames:
				if err := wsjson.Write(ctx, conn, frame); err != nil {
					return
				}
			}
		}
	}
}
