// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package live streams a clustering run's intent events to connected
// dashboards over websockets, mirroring the driver's own incremental
// callback one message at a time.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowgen/intentminer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const clientQueueSize = 64

// client is a single connected dashboard. Publish never blocks on a slow
// client: if its queue is full the event is dropped and the client is
// disconnected rather than stalling the whole broadcaster.
type client struct {
	conn  *websocket.Conn
	queue chan []byte
}

// Broadcaster fans out IntentInfo events to every subscribed client. It is
// safe for concurrent use; Publish is typically called from the clustering
// driver's own callback goroutine.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *slog.Logger
}

func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

// Subscribe upgrades r to a websocket and registers it for future Publish
// calls. The caller is expected to mount this as an HTTP handler.
func (b *Broadcaster) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("live: upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, queue: make(chan []byte, clientQueueSize)}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	go b.writeLoop(c)
	go b.readLoop(c)
}

func (b *Broadcaster) writeLoop(c *client) {
	defer b.drop(c)
	for msg := range c.queue {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readLoop only exists to notice the client going away; this feed is
// write-only from the server's perspective.
func (b *Broadcaster) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			b.drop(c)
			return
		}
	}
}

func (b *Broadcaster) drop(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.queue)
	}
	b.mu.Unlock()
	c.conn.Close()
}

// Publish encodes info as JSON and enqueues it for every connected client.
// A client whose queue is already full is dropped rather than blocking the
// caller, since Publish is called synchronously from the clustering loop.
func (b *Broadcaster) Publish(info intentminer.IntentInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		b.log.Error("live: encoding intent", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.queue <- data:
		default:
			b.log.Warn("live: dropping slow client")
			delete(b.clients, c)
			close(c.queue)
			c.conn.Close()
		}
	}
}

// ClientCount reports the number of currently connected dashboards.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
