package httpserver

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxMessageBytes   = 64 << 10
	closeWriteTimeout = time.Second
)

// wsConnection adapts a websocket to relay.Connection. A close frame from the
// peer is reported as io.EOF.
type wsConnection struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func newWSConnection(ws *websocket.Conn) *wsConnection {
	ws.SetReadLimit(maxMessageBytes)
	return &wsConnection{ws: ws}
}

func (c *wsConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if isNormalClose(err) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConnection) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, io.EOF)
}
