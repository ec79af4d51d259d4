package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/cryptosim/internal/domain"
)

const viewerWriteTimeout = 5 * time.Second

// Viewer is a WebSocket client watching the live price stream.
type Viewer struct {
	conn *websocket.Conn
	name string
}

// NewViewer wraps an upgraded connection.
func NewViewer(conn *websocket.Conn) *Viewer {
	return &Viewer{conn: conn, name: "viewer:" + conn.RemoteAddr().String()}
}

func (v *Viewer) Name() string { return v.name }

// Send writes tick as a PriceMessage. Any write failure closes the viewer.
func (v *Viewer) Send(_ context.Context, tick domain.PriceTick) error {
	_ = v.conn.SetWriteDeadline(time.Now().Add(viewerWriteTimeout))
	if err := v.conn.WriteJSON(NewPriceMessage(tick)); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkClosed, err)
	}
	return nil
}

// Wait reads from the connection until the client disconnects. Viewers
// send nothing meaningful; reading only detects the close.
func (v *Viewer) Wait() {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}
