// Package relay forwards websocket frames verbatim between a client and the
// upstream realtime provider. All session intelligence lives at the edge in
// pkg/core/realtime; the relay never buffers, translates, or inspects
// message content.
package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Relay pipes one client connection to one upstream connection.
type Relay struct {
	upstreamURL    string
	upstreamHeader http.Header
	logger         *zap.Logger
}

// New creates a relay targeting upstreamURL. header carries the provider
// credentials; it is sent on the upstream dial only, never to clients.
func New(upstreamURL string, header http.Header, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		upstreamURL:    upstreamURL,
		upstreamHeader: header,
		logger:         logger,
	}
}

// Pipe dials the upstream and forwards frames in both directions until
// either side closes or errors, then promptly closes the peer. The client
// connection is always closed before Pipe returns.
func (r *Relay) Pipe(client *websocket.Conn) {
	defer client.Close()

	upstream, resp, err := websocket.DefaultDialer.Dial(r.upstreamURL, r.upstreamHeader)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		r.logger.Warn("upstream dial failed",
			zap.String("url", r.upstreamURL),
			zap.Int("status", status),
			zap.Error(err),
		)
		_ = client.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "upstream unavailable"),
			closeDeadline(),
		)
		return
	}
	defer upstream.Close()

	r.logger.Info("relay session opened", zap.String("upstream", r.upstreamURL))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pump(client, upstream)
	}()
	go func() {
		defer wg.Done()
		pump(upstream, client)
	}()
	wg.Wait()

	r.logger.Info("relay session closed")
}

// pump copies frames from src to dst preserving the message type. When src
// ends, dst is closed so its pump unblocks too.
func pump(src, dst *websocket.Conn) {
	defer dst.Close()
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			_ = dst.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				closeDeadline(),
			)
			return
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			return
		}
	}
}

func closeDeadline() time.Time { return time.Now().Add(2 * time.Second) }
