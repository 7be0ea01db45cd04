package rest

import (
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/notification"
)

// wsStream adapts a WebSocket connection to notification.Stream.
type wsStream struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// Send implements notification.Stream.
func (s *wsStream) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return errors.Wrap(err, "failed to set write deadline")
	}
	if err := s.conn.WriteJSON(n); err != nil {
		return errors.Wrap(err, "failed to write notification")
	}
	return nil
}

func (s *wsStream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

// handleStream streams notifications over a WebSocket until the client
// disconnects or the session closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		zlog.Warn().Msgf("rest: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	stream := &wsStream{conn: conn, writeTimeout: s.writeTimeout}
	notifManager := s.session.GetNotificationManager()

	// 1. 現在の状態を送信
	initial := notification.InitialState(s.session.Playback().View())
	initial.SequenceNo = notifManager.NextSequenceNo()
	if err := stream.Send(initial); err != nil {
		zlog.Warn().Msgf("rest: failed to send initial state: %v", err)
		return
	}

	// 2. 購読開始
	subscriptionID := notifManager.Subscribe(stream)
	defer notifManager.Unsubscribe(subscriptionID)
	zlog.Debug().Msgf("rest: stream subscribed: id=%s remote=%s", subscriptionID, r.RemoteAddr)

	// Clients do not send anything; reading surfaces close frames and errors.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	// 3. 切断かセッション終了まで待機
	for {
		select {
		case <-closed:
			zlog.Debug().Msgf("rest: stream closed by client: id=%s", subscriptionID)
			return
		case <-s.session.Done():
			s.closeStream(stream)
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				zlog.Debug().Msgf("rest: stream ping failed: id=%s err=%v", subscriptionID, err)
				return
			}
		}
	}
}

func (s *Server) closeStream(stream *wsStream) {
	stream.mu.Lock()
	defer stream.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed")
	_ = stream.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
}
