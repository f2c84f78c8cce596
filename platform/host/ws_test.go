//go:build !tinygo

package host

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"einkcode-go/services/provisioning"
)

func TestWSPeripheralRoundTrip(t *testing.T) {
	p := NewWSPeripheral("127.0.0.1:0")
	if err := p.Init("E-Ink Display"); err != nil {
		t.Fatal(err)
	}
	defer p.Deinit()

	var connected atomic.Bool
	writes := make(chan []byte, 1)
	err := p.Serve(provisioning.Table("acme", "m1", "1.2.3"), provisioning.Callbacks{
		OnConnect:    func() { connected.Store(true) },
		OnDisconnect: func() { connected.Store(false) },
		OnWrite:      func(b []byte) { writes <- b },
	})
	if err != nil {
		t.Fatal(err)
	}

	c, _, err := websocket.DefaultDialer.Dial("ws://"+p.Addr()+GATTPath, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var hello Hello
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := c.ReadJSON(&hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if hello.Name != "E-Ink Display" || hello.Service != provisioning.ServiceUUID.String() || hello.Info[provisioning.ShortUUID(provisioning.FirmwareRevision).String()] != "1.2.3" {
		t.Fatalf("hello = %+v", hello)
	}

	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"mode":"fun"}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case b := <-writes:
		if string(b) != `{"mode":"fun"}` {
			t.Fatalf("write = %q", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write not delivered")
	}
	if !connected.Load() {
		t.Fatal("OnConnect not called")
	}

	if err := p.Notify([]byte("applied")); err != nil {
		t.Fatal(err)
	}
	_, msg, err := c.ReadMessage()
	if err != nil || string(msg) != "applied" {
		t.Fatalf("notify = %q err=%v", msg, err)
	}

	if _, _, err := websocket.DefaultDialer.Dial("ws://"+p.Addr()+GATTPath, nil); err == nil {
		t.Fatal("second central accepted")
	}
}

func TestWSPeripheralRequiresInit(t *testing.T) {
	p := NewWSPeripheral("127.0.0.1:0")
	if err := p.Serve(provisioning.GATT{}, provisioning.Callbacks{}); err == nil {
		t.Fatal("Serve before Init succeeded")
	}
	if err := p.Notify([]byte("x")); err == nil {
		t.Fatal("Notify without central succeeded")
	}
	if err := p.Deinit(); err != nil {
		t.Fatal(err)
	}
}
