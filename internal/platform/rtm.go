package platform

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zomco/hubot-heyodo/internal/bus"
)

const (
	pingInterval     = 30 * time.Second
	reconnectInitial = time.Second
	reconnectMax     = 30 * time.Second
)

// rtmFrame is the wire shape of RTM traffic, both directions.
type rtmFrame struct {
	Type       string      `json:"type"`
	Subtype    string      `json:"subtype,omitempty"`
	CallID     int         `json:"call_id,omitempty"`
	VChannelID string      `json:"vchannel_id,omitempty"`
	ChannelID  string      `json:"channel_id,omitempty"`
	UID        string      `json:"uid,omitempty"`
	Key        string      `json:"key,omitempty"`
	ReferKey   string      `json:"refer_key,omitempty"`
	Text       string      `json:"text,omitempty"`
	Repost     *bus.Repost `json:"repost,omitempty"`
	File       *bus.File   `json:"file,omitempty"`
}

// RTM maintains the real-time websocket connection: it decodes inbound
// events onto the bus and writes impersonated reply frames.
type RTM struct {
	url string
	bus *bus.MessageBus

	mu      sync.Mutex
	conn    *websocket.Conn
	callID  int
	running bool
	cancel  context.CancelFunc
}

// NewRTM creates an RTM for the given websocket URL (token included
// as a query parameter by the caller).
func NewRTM(url string, msgBus *bus.MessageBus) *RTM {
	return &RTM{url: url, bus: msgBus}
}

// IsRunning reports whether the connection loop is active.
func (r *RTM) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start connects and runs the read loop, reconnecting with backoff on
// error. Blocks until ctx is cancelled.
func (r *RTM) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.running = true
	r.cancel = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	backoff := reconnectInitial
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, nil)
		if err != nil {
			log.Printf("[RTM] dial failed: %v (retry in %s)", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			if backoff < reconnectMax {
				backoff *= 2
			}
			continue
		}

		log.Println("[RTM] connected")
		backoff = reconnectInitial

		r.mu.Lock()
		r.conn = conn
		r.mu.Unlock()

		r.readLoop(ctx, conn)

		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
		conn.Close()
	}
}

// Stop closes the connection and ends the loop.
func (r *RTM) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	if r.conn != nil {
		r.conn.Close()
	}
	r.running = false
}

// readLoop reads frames until the connection drops or ctx ends.
func (r *RTM) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go r.keepalive(ctx, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[RTM] read error: %v", err)
			}
			return
		}

		var frame rtmFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("[RTM] bad frame: %v", err)
			continue
		}

		switch frame.Type {
		case bus.TypeChannelMessage, bus.TypeMessage:
			r.bus.PublishEvent(bus.Event{
				Type:       frame.Type,
				Subtype:    frame.Subtype,
				UID:        frame.UID,
				VChannelID: frame.VChannelID,
				Text:       frame.Text,
				Repost:     frame.Repost,
				File:       frame.File,
				Timestamp:  time.Now(),
			})
		case "pong", "reply", "ok":
			// keepalive / send acknowledgements
		default:
			// hello, update_user_connection etc. are irrelevant here
		}
	}
}

// keepalive sends ping frames until the read loop or ctx ends.
func (r *RTM) keepalive(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.writeFrame(rtmFrame{Type: "ping"}); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// WriteReply implements ReplyWriter: an impersonated in-place reply
// threaded to messageKey, framed from the original locus and author.
func (r *RTM) WriteReply(vchannelID, messageKey, uid, text string) error {
	return r.writeFrame(rtmFrame{
		Type:       bus.TypeChannelMessage,
		VChannelID: vchannelID,
		ChannelID:  vchannelID,
		UID:        uid,
		ReferKey:   messageKey,
		Text:       text,
	})
}

func (r *RTM) writeFrame(frame rtmFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return websocket.ErrCloseSent
	}
	r.callID++
	frame.CallID = r.callID
	return r.conn.WriteJSON(frame)
}
