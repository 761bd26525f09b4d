package comm

import (
	"sync"

	"github.com/gorilla/websocket"
)

// lockedConn wraps a websocket.Conn so the barrier logic and the context
// cancellation path can touch the connection from different goroutines.
// Gorilla allows one concurrent reader and one concurrent writer per conn;
// the mutexes serialize each side.
// See https://pkg.go.dev/github.com/gorilla/websocket#hdr-Concurrency.
type lockedConn struct {
	c       *websocket.Conn
	writeMu sync.Mutex
	readMu  sync.Mutex
}

func newLockedConn(c *websocket.Conn) *lockedConn {
	return &lockedConn{c: c}
}

func (l *lockedConn) readJSON(v any) error {
	l.readMu.Lock()
	defer l.readMu.Unlock()
	return l.c.ReadJSON(v)
}

func (l *lockedConn) writeJSON(v any) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.c.WriteJSON(v)
}

func (l *lockedConn) close() {
	_ = l.c.Close()
}
