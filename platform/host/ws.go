//go:build !tinygo

package host

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"einkcode-go/services/provisioning"
	"einkcode-go/x/logx"
)

const (
	wsWriteWait  = 5 * time.Second
	wsMaxMessage = 4 << 10
	// GATTPath is where the peripheral accepts its one central.
	GATTPath = "/gatt"
)

// Hello is the first frame a central receives: the advertised name and the
// GATT table it would have discovered.
type Hello struct {
	Type    string            `json:"type"`
	Name    string            `json:"name"`
	Service string            `json:"service"`
	Write   string            `json:"write"`
	Notify  string            `json:"notify"`
	Info    map[string]string `json:"info"`
}

// WSPeripheral emulates the BLE peripheral over a websocket: connecting is
// a BLE connect, each text or binary message is a write to the provisioning
// characteristic and notifications come back as text messages. Only one
// central is served at a time, like the device.
type WSPeripheral struct {
	addr string
	log  *logx.Logger

	mu    sync.Mutex
	ln    net.Listener
	srv   *http.Server
	name  string
	gatt  provisioning.GATT
	cb    provisioning.Callbacks
	conn  *websocket.Conn
	ready bool

	wmu sync.Mutex // one writer at a time per connection
}

// NewWSPeripheral listens on addr once Init is called. ":0" picks a port.
func NewWSPeripheral(addr string) *WSPeripheral {
	return &WSPeripheral{addr: addr, log: logx.New("ws-ble")}
}

// Addr is the bound listener address, valid after Init.
func (p *WSPeripheral) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

func (p *WSPeripheral) Init(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ln != nil {
		return errors.New("already initialised")
	}
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(GATTPath, p.accept)
	p.ln, p.name = ln, name
	p.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = p.srv.Serve(ln) }()
	p.log.Info("peripheral up", "addr", ln.Addr().String(), "name", name)
	return nil
}

func (p *WSPeripheral) Serve(g provisioning.GATT, cb provisioning.Callbacks) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ln == nil {
		return errors.New("not initialised")
	}
	p.gatt, p.cb, p.ready = g, cb, true
	return nil
}

func (p *WSPeripheral) Notify(b []byte) error {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()
	if c == nil {
		return errors.New("no central connected")
	}
	return p.write(c, func() error { return c.WriteMessage(websocket.TextMessage, b) })
}

func (p *WSPeripheral) write(c *websocket.Conn, fn func() error) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return fn()
}

func (p *WSPeripheral) Deinit() error {
	p.mu.Lock()
	srv, c := p.srv, p.conn
	p.srv, p.ln, p.conn, p.ready = nil, nil, nil, false
	p.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (p *WSPeripheral) accept(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	busy := p.conn != nil || !p.ready
	p.mu.Unlock()
	if busy {
		http.Error(w, "peripheral busy", http.StatusServiceUnavailable)
		return
	}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warn("upgrade failed", "err", err)
		return
	}
	c.SetReadLimit(wsMaxMessage)

	p.mu.Lock()
	if p.conn != nil || !p.ready {
		p.mu.Unlock()
		_ = c.Close()
		return
	}
	p.conn = c
	cb, hello := p.cb, p.hello()
	p.mu.Unlock()

	_ = p.write(c, func() error { return c.WriteJSON(hello) })
	if cb.OnConnect != nil {
		cb.OnConnect()
	}
	defer func() {
		p.mu.Lock()
		if p.conn == c {
			p.conn = nil
		}
		p.mu.Unlock()
		_ = c.Close()
		if cb.OnDisconnect != nil {
			cb.OnDisconnect()
		}
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if cb.OnWrite != nil {
			cb.OnWrite(msg)
		}
	}
}

func (p *WSPeripheral) hello() Hello {
	h := Hello{
		Type:    "gatt",
		Name:    p.name,
		Service: p.gatt.Service.String(),
		Write:   p.gatt.Write.String(),
		Notify:  p.gatt.Notify.String(),
		Info:    map[string]string{},
	}
	for _, c := range p.gatt.Info {
		h.Info[c.UUID.String()] = c.Value
	}
	return h
}
