package halt

import (
	"errors"
	"testing"
	"time"
)

type fakeHW struct {
	sleeps   []time.Duration
	restarts int
	order    *[]string
}

func (f *fakeHW) DeepSleep(d time.Duration) {
	f.sleeps = append(f.sleeps, d)
	if f.order != nil {
		*f.order = append(*f.order, "sleep")
	}
}

func (f *fakeHW) Restart() {
	f.restarts++
	if f.order != nil {
		*f.order = append(*f.order, "restart")
	}
}

func TestFirstRequestWins(t *testing.T) {
	hw := &fakeHW{}
	c := New(hw)

	if _, ok := c.Pending(); ok {
		t.Fatal("pending before any request")
	}
	c.DeepSleep(300*time.Second, "low battery")
	c.Restart("late")

	r, ok := c.Pending()
	if !ok || r.Kind != DeepSleep || r.Sleep != 300*time.Second {
		t.Fatalf("pending = %+v", r)
	}
	if len(hw.sleeps) != 1 || hw.restarts != 0 {
		t.Fatalf("hardware saw sleeps=%v restarts=%d", hw.sleeps, hw.restarts)
	}
}

func TestFlushRunsBeforeHardware(t *testing.T) {
	var order []string
	hw := &fakeHW{order: &order}
	c := New(hw)
	c.OnFlush(func() error { order = append(order, "store"); return nil })
	c.OnFlush(func() error { order = append(order, "rtc"); return errors.New("ignored") })

	c.Restart("config applied")

	want := []string{"store", "rtc", "restart"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
