// Package forwarder streams process logs to cockpit clients over websockets.
package forwarder

import (
	"context"
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	clientBufferSize = 64
	writeTimeout     = time.Second
)

type client struct {
	conn    *websocket.Conn
	fwdChan chan []byte
}

// LogStream is a logrus hook that forwards every entry to the connected
// websocket clients. A client that cannot keep up misses entries; logging
// never waits on the network.
type LogStream struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewLogStream() *LogStream {
	return &LogStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (ls *LogStream) Levels() []log.Level {
	return log.AllLevels
}

func (ls *LogStream) Fire(e *log.Entry) error {
	data, err := json.Marshal(NewRecord(e))
	if err != nil {
		return errors.Wrap(err, "unable to encode log record")
	}
	ls.Forward(data)
	return nil
}

// Forward queues data for every client, skipping clients whose queue is full.
func (ls *LogStream) Forward(data []byte) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for c := range ls.clients {
		select {
		case c.fwdChan <- data:
		default:
			// if channel is full, skip
		}
	}
}

func (ls *LogStream) Clients() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.clients)
}

func (ls *LogStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ls.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an error
		return
	}
	c := &client{
		conn:    conn,
		fwdChan: make(chan []byte, clientBufferSize),
	}
	ls.add(c)
	defer ls.remove(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// nothing is expected from clients; reading notices when they go away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data := <-c.fwdChan:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				<-done
				return
			}
		case <-done:
			conn.Close()
			return
		}
	}
}

func (ls *LogStream) add(c *client) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.clients[c] = struct{}{}
}

func (ls *LogStream) remove(c *client) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	delete(ls.clients, c)
}

// ListenAndServe serves the stream on addr until ctx is cancelled.
func (ls *LogStream) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", addr)
	}
	return ls.Serve(ctx, ln)
}

func (ls *LogStream) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{Handler: ls}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "log stream server failed")
	}
	return ctx.Err()
}
