package display

import (
	"errors"
	"image/color"
	"strings"
	"testing"

	"tinygo.org/x/drivers"
)

type fakePanel struct {
	w, h     int16
	px       map[[2]int16]color.RGBA
	displays int
	sleeps   int
	failDisp error
}

var _ drivers.Displayer = (*fakePanel)(nil)

func newFakePanel() *fakePanel {
	return &fakePanel{w: 200, h: 100, px: map[[2]int16]color.RGBA{}}
}

func (f *fakePanel) Size() (int16, int16)              { return f.w, f.h }
func (f *fakePanel) SetPixel(x, y int16, c color.RGBA) { f.px[[2]int16{x, y}] = c }
func (f *fakePanel) Display() error                    { f.displays++; return f.failDisp }
func (f *fakePanel) Sleep() error                      { f.sleeps++; return nil }

type fakeParker struct{ parks int }

func (p *fakeParker) Park() error { p.parks++; return nil }

func TestShowRendersAndRefreshes(t *testing.T) {
	p := newFakePanel()
	m := NewManager(p, nil, nil)
	if err := m.ShowLowBattery(3); err != nil {
		t.Fatalf("show: %v", err)
	}
	if p.displays != 1 {
		t.Fatalf("displays = %d", p.displays)
	}
	if p.px[[2]int16{margin, margin}] != Black {
		t.Fatal("title bar not drawn")
	}
	if p.px[[2]int16{199, 50}] != White {
		t.Fatal("background not cleared")
	}
	s, n := m.Last()
	if n != 1 || !strings.Contains(s.Lines[0], "3%") {
		t.Fatalf("last = %+v (%d)", s, n)
	}
}

func TestRefreshFailureNotRecorded(t *testing.T) {
	p := newFakePanel()
	p.failDisp = errors.New("busy pin stuck")
	m := NewManager(p, nil, nil)
	if err := m.ShowProvisioning("E-Ink Display"); err == nil {
		t.Fatal("refresh failure swallowed")
	}
	if _, n := m.Last(); n != 0 {
		t.Fatal("failed show recorded")
	}
}

func TestQuiesceSleepsOnceAndParks(t *testing.T) {
	p := newFakePanel()
	park := &fakeParker{}
	m := NewManager(p, nil, park)
	_ = m.Show(Screen{Title: "x"})
	if err := m.Quiesce(); err != nil {
		t.Fatalf("quiesce: %v", err)
	}
	_ = m.Quiesce()
	if p.sleeps != 1 {
		t.Fatalf("panel slept %d times", p.sleeps)
	}
	if park.parks != 2 {
		t.Fatalf("pins parked %d times", park.parks)
	}
}

func TestNoPanel(t *testing.T) {
	m := NewManager(nil, nil, nil)
	if err := m.Show(Screen{}); err == nil {
		t.Fatal("show without panel succeeded")
	}
}
