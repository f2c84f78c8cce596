package display

import "errors"

var errNoPanel = errors.New("no panel")

const (
	margin     = 4
	lineHeight = 12
	glyphWidth = 6
)

// PlainRenderer clears the panel and marks one bar per text line, its
// length following the text. Enough for bring-up and tests.
type PlainRenderer struct{}

func (PlainRenderer) Render(p Panel, s Screen) error {
	w, h := p.Size()
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			p.SetPixel(x, y, White)
		}
	}
	y := int16(margin)
	line := func(text string, thick int16) {
		if y+thick > h {
			return
		}
		n := int16(len(text)) * glyphWidth
		if n > w-2*margin {
			n = w - 2*margin
		}
		for dy := int16(0); dy < thick; dy++ {
			for x := int16(margin); x < margin+n; x++ {
				p.SetPixel(x, y+dy, Black)
			}
		}
		y += lineHeight
	}
	if s.Title != "" {
		line(s.Title, 3)
	}
	for _, l := range s.Lines {
		line(l, 1)
	}
	if s.Footer != "" {
		y = h - lineHeight
		line(s.Footer, 1)
	}
	return nil
}
