// Package monitor journals lifecycle traffic on the bus as JSON lines, one
// event per message, so a host run can be replayed or diffed afterwards.
package monitor

import (
	"encoding/json"
	"io"
	"sync"

	"einkcode-go/bus"
	"einkcode-go/x/logx"
	"einkcode-go/x/timex"
)

// Event is one journal line.
type Event struct {
	TsMs     int64  `json:"ts_ms"`
	Topic    string `json:"topic"`
	Retained bool   `json:"retained,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

type Service struct {
	conn *bus.Connection
	sub  *bus.Subscription
	enc  *json.Encoder
	log  *logx.Logger

	mu      sync.Mutex
	written int
	failed  int

	start sync.Once
	stop  sync.Once
	done  chan struct{}
}

// New subscribes to every topic straight away, so retained state published
// before Start is still journalled.
func New(conn *bus.Connection, w io.Writer) *Service {
	return &Service{
		conn: conn,
		sub:  conn.Subscribe(bus.T("#")),
		enc:  json.NewEncoder(w),
		log:  logx.New("monitor"),
		done: make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.start.Do(func() { go s.loop() })
}

// Stop unsubscribes, writes whatever is still queued and waits for the
// writer to finish.
func (s *Service) Stop() {
	s.Start()
	s.stop.Do(func() { s.conn.Unsubscribe(s.sub) })
	<-s.done
}

// Counts reports lines written and lines that failed to encode or write.
func (s *Service) Counts() (written, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, s.failed
}

func (s *Service) loop() {
	defer close(s.done)
	for msg := range s.sub.Channel() {
		s.write(msg)
	}
}

func (s *Service) write(msg *bus.Message) {
	ev := Event{
		TsMs:     timex.NowMs(),
		Topic:    msg.Topic.String(),
		Retained: msg.Retained,
		Payload:  payload(msg.Payload),
	}
	err := s.enc.Encode(ev)

	s.mu.Lock()
	if err != nil {
		s.failed++
	} else {
		s.written++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("journal write failed", "topic", ev.Topic, "err", err)
		return
	}
	s.log.Debug("event", "topic", ev.Topic)
}

// payload keeps raw JSON documents readable instead of base64.
func payload(p any) any {
	switch v := p.(type) {
	case []byte:
		if json.Valid(v) {
			return json.RawMessage(v)
		}
		return string(v)
	case error:
		return v.Error()
	default:
		return p
	}
}
