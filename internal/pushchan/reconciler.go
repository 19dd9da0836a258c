// Package pushchan applies server broadcasts to a client's collection.
package pushchan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"shelf/api/internal/collection"
	"shelf/api/internal/wire"
)

type State int32

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Settings struct {
	HandshakeTimeout time.Duration
	// ReadTimeout bounds the silence between frames; server pings reset it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Header       http.Header
}

func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Reconciler owns one websocket to the broadcast endpoint. Every event it
// reads is queued on the owner in arrival order. There is no
// deduplication and no suppression of the client's own echoes.
type Reconciler struct {
	url      string
	owner    *collection.Owner
	settings Settings

	mu      sync.Mutex
	state   State
	changed chan struct{}
	applied int
	skipped int
}

func New(url string, owner *collection.Owner, settings Settings) *Reconciler {
	return &Reconciler{
		url:      url,
		owner:    owner,
		settings: settings,
		changed:  make(chan struct{}),
	}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Changed is closed on the next state transition.
func (r *Reconciler) Changed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

// Counts reports how many messages were applied and how many were skipped
// as malformed.
func (r *Reconciler) Counts() (applied, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied, r.skipped
}

func (r *Reconciler) setState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == state {
		return
	}
	r.state = state
	close(r.changed)
	r.changed = make(chan struct{})
}

// Run dials once and reads until the connection drops or ctx ends. It is
// not restarted: after it returns the session only sees changes it fetches.
// A cancelled ctx returns nil.
func (r *Reconciler) Run(ctx context.Context) error {
	defer r.setState(Closed)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: r.settings.HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, r.url, r.settings.Header)
	if err != nil {
		log.Printf("pushchan: dial %s: %v", r.url, err)
		return fmt.Errorf("dial push channel: %w", err)
	}
	defer ws.Close()

	r.setState(Open)
	log.Printf("pushchan: connected to %s", r.url)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(r.settings.WriteTimeout)
			_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			ws.Close()
		case <-stop:
		}
	}()

	r.extendDeadline(ws)
	ws.SetPingHandler(func(data string) error {
		r.extendDeadline(ws)
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(r.settings.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("pushchan: closed")
				return nil
			}
			log.Printf("pushchan: connection lost, continuing without live updates: %v", err)
			return fmt.Errorf("read push channel: %w", err)
		}
		r.extendDeadline(ws)
		if messageType != websocket.TextMessage {
			continue
		}
		r.handle(message)
	}
}

func (r *Reconciler) handle(message []byte) {
	event, err := wire.DecodeEvent(message)
	if err != nil {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		log.Printf("pushchan: skipping message: %v", err)
		return
	}
	if !r.owner.Submit(func(s *collection.Store) { s.Apply(event) }) {
		return
	}
	r.mu.Lock()
	r.applied++
	r.mu.Unlock()
}

func (r *Reconciler) extendDeadline(ws *websocket.Conn) {
	if r.settings.ReadTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(r.settings.ReadTimeout))
	}
}
