package server

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// sseKeepAlive is how often an idle stream gets a comment line so proxies
// do not reap it.
const sseKeepAlive = 15 * time.Second

// sseWriter writes Server-Sent Event frames, each flushed under a write
// deadline.
type sseWriter struct {
	w  io.Writer
	rc *http.ResponseController

	// false once the ResponseWriter reports it cannot set deadlines
	deadlines    bool
	onNoDeadline func(error)
}

func (sw *sseWriter) write(frame string) error {
	if sw.deadlines {
		if err := sw.rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			sw.deadlines = false
			sw.onNoDeadline(err)
		}
	}
	if _, err := io.WriteString(sw.w, frame); err != nil {
		return err
	}
	return sw.rc.Flush()
}

func (sw *sseWriter) comment(text string) error {
	return sw.write(": " + text + "\n\n")
}

func (sw *sseWriter) event(id string, data []byte) error {
	return sw.write(fmt.Sprintf("id: %s\ndata: %s\n\n", id, data))
}

// handleSSE streams events as Server-Sent Events:
//
//	id: <event id>
//	data: {"id":"...","kind":"incident_created",...}
//
// The stream ends when the client goes away, the server shuts down, or the
// hub drops the subscriber.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("X-Accel-Buffering", "no")

	sw := &sseWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		deadlines: true,
		onNoDeadline: func(err error) {
			s.logger.Warn("sse write deadlines not supported", "error", err)
		},
	}

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub.ID)
	log := s.logger.With("subscriber", sub.ID.String())
	log.Debug("sse client connected", "remote", r.RemoteAddr)

	// commit headers before the first event
	if err := sw.comment("connected"); err != nil {
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case msg, ok := <-sub.Messages:
			if !ok {
				log.Debug("sse client dropped by hub")
				return
			}
			if err := sw.event(msg.ID, msg.Data); err != nil {
				log.Debug("sse write failed", "error", err)
				return
			}

		case <-keepAlive.C:
			if err := sw.comment("keepalive"); err != nil {
				return
			}

		case <-r.Context().Done():
			// client disconnect, or server shutdown via BaseContext
			return
		}
	}
}
