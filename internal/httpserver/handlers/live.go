package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/view"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxCommandSize = 8 << 10
)

// liveCommand is a client frame: {"op":"create","title","url"} or {"op":"delete","id"}
type liveCommand struct {
	Op    string `json:"op"`
	Title string `json:"title"`
	URL   string `json:"url"`
	ID    string `json:"id"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// CheckOrigin left nil: same-origin only, the session rides on a cookie
}

// Live mounts a dashboard for the lifetime of one websocket. Every state
// change is pushed as a full state frame.
func Live(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := auth.FromContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered the request
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		dash, err := view.Mount(ctx, d.ViewDeps(), s)
		if err != nil {
			d.Logger.Warn("failed to mount dashboard", logger.String("user_id", s.UserID), logger.Error(err))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "dashboard unavailable"),
				time.Now().Add(writeWait))
			return
		}
		forget := d.Views.Track(dash)
		defer forget()
		defer func() { _ = dash.Close() }()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writeLoop(ctx, conn, dash, d.Logger)
		}()

		readLoop(ctx, conn, dash)
		cancel()
		<-writerDone
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, dash *view.Dashboard) {
	conn.SetReadLimit(maxCommandSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd liveCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch cmd.Op {
		case "create":
			dash.Submit(ctx, cmd.Title, cmd.URL)
		case "delete":
			dash.Remove(ctx, cmd.ID)
		}
	}
}

// writeLoop is the only writer of conn. It closes conn on exit, which
// unblocks the reader.
func writeLoop(ctx context.Context, conn *websocket.Conn, dash *view.Dashboard, log logger.Logger) {
	defer func() { _ = conn.Close() }()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func() bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(dash.State()); err != nil {
			log.Debug("failed to push dashboard state", logger.Error(err))
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		case <-dash.Changes():
			if !send() {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
