// Package display keeps the computed status view separate from what was
// last rendered, so the panel only repaints lines that changed. The view is
// owned by the persistence worker alone; no other context touches it.
package display

import "codeberg.org/mkrell/relayctl/internal/hal"

const (
	Rows = 4
	Cols = 16
)

// View is the computed-vs-rendered line cache in front of one panel.
type View struct {
	panel    hal.Display
	computed [Rows]string
	rendered [Rows]string
	dirty    [Rows]bool
}

func NewView(panel hal.Display) *View {
	return &View{panel: panel}
}

// SetLine stages new content for one row. Text longer than the panel width
// is clipped; shorter text is padded so stale characters are overwritten.
func (v *View) SetLine(row int, text string) {
	if row < 0 || row >= Rows {
		return
	}
	text = fit(text)
	if v.computed[row] == text {
		return
	}
	v.computed[row] = text
	v.dirty[row] = true
}

// Flush repaints every dirty row whose content differs from what is on the
// panel.
func (v *View) Flush() {
	for row := 0; row < Rows; row++ {
		if !v.dirty[row] || v.computed[row] == v.rendered[row] {
			v.dirty[row] = false
			continue
		}
		v.panel.SetCursor(row, 0)
		v.panel.Print(v.computed[row])
		v.rendered[row] = v.computed[row]
		v.dirty[row] = false
	}
}

// Reset forgets the rendered state, forcing a full repaint on next Flush.
func (v *View) Reset() {
	for row := 0; row < Rows; row++ {
		v.rendered[row] = ""
		v.dirty[row] = v.computed[row] != ""
	}
}

func fit(text string) string {
	if len(text) > Cols {
		return text[:Cols]
	}
	for len(text) < Cols {
		text += " "
	}
	return text
}
