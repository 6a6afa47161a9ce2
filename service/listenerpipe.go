package service

import (
	"errors"
	"net"
	"sync"
)

// ListenerPipe returns a full-duplex in-memory connection, like net.Pipe.
// One end of the connection is wrapped in a net.Listener: the first call to
// its Accept method returns the wrapped connection, every subsequent call
// blocks until the listener is closed.
// It is used to run the terminal client and a snapshot server inside the
// same process without opening a socket.
func ListenerPipe() (net.Listener, net.Conn) {
	serverConn, clientConn := net.Pipe()
	return &pipeListener{conn: serverConn, closed: make(chan struct{})}, clientConn
}

// pipeListener is a net.Listener with a single pre-established connection.
type pipeListener struct {
	conn      net.Conn
	acceptOne sync.Once
	closeOne  sync.Once
	closed    chan struct{}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	var conn net.Conn
	l.acceptOne.Do(func() { conn = l.conn })
	if conn != nil {
		return conn, nil
	}
	<-l.closed
	return nil, errors.New("accept failed: listener closed")
}

func (l *pipeListener) Close() error {
	l.closeOne.Do(func() { close(l.closed) })
	return nil
}

func (l *pipeListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}
