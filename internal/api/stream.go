package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// streamMessage is one frame pushed to stream subscribers.
type streamMessage struct {
	Type string                  `json:"type"`
	Data recommendationsResponse `json:"data"`
}

// handleStream upgrades to a websocket and pushes every surfaced pass of the
// session, starting with the latest one if any. Sequences only increase.
func (s *Server) handleStream(c *gin.Context) {
	sess := currentSession(c)

	// Subscribed before the handshake completes so no pass is missed
	passes, cancel := sess.Subscribe()
	defer cancel()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.logger.WithField("session_id", sess.ID)
	log.Info("Stream client connected")
	defer log.Info("Stream client disconnected")

	// Reader only services control frames and notices disconnects
	done := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg interface{}) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Debug("Stream write failed")
			return false
		}
		return true
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case result, ok := <-passes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			if !send(streamMessage{Type: "pass", Data: toResponse(sess.ID, result)}) {
				return
			}
			log.WithFields(logrus.Fields{"sequence": result.Sequence}).Debug("Pass streamed")
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
