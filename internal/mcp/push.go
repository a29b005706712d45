package mcp

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// pushEvent is one frame from the endpoint's push channel.
type pushEvent struct {
	Type          string `json:"type"` // command_status
	CorrelationID string `json:"correlation_id,omitempty"`
	State         string `json:"state,omitempty"`
}

// pushChannel consumes pushed command status frames so AwaitCompletion can
// return before the next poll tick. Any read failure just ends the loop;
// polling keeps working without it.
type pushChannel struct {
	conn *websocket.Conn

	mu      sync.Mutex
	waiters map[string]chan string
	done    chan struct{}
}

func dialPush(url string, header http.Header) (*pushChannel, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	p := &pushChannel{
		conn:    conn,
		waiters: make(map[string]chan string),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

func (p *pushChannel) readLoop() {
	defer close(p.done)
	for {
		var ev pushEvent
		if err := p.conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Type != "command_status" || ev.CorrelationID == "" {
			continue
		}
		p.mu.Lock()
		ch, ok := p.waiters[ev.CorrelationID]
		p.mu.Unlock()
		if ok {
			select {
			case ch <- ev.State:
			default: // waiter is behind; the poll path will catch up
			}
		}
	}
}

func (p *pushChannel) watch(correlationID string) <-chan string {
	ch := make(chan string, 4)
	p.mu.Lock()
	p.waiters[correlationID] = ch
	p.mu.Unlock()
	return ch
}

func (p *pushChannel) forget(correlationID string) {
	p.mu.Lock()
	delete(p.waiters, correlationID)
	p.mu.Unlock()
}

func (p *pushChannel) close() {
	_ = p.conn.Close()
	<-p.done
}
