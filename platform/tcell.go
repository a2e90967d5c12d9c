/*
Copyright (C) 2019-2020 Andreas T Jonsson

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package platform

import (
	"fmt"
	"sync"

	"github.com/andreas-jonsson/virtualspi/emulator/storage"
	"github.com/gdamore/tcell"
)

var cgaPalette = [16]tcell.Color{
	tcell.ColorBlack,
	tcell.ColorNavy,
	tcell.ColorGreen,
	tcell.ColorTeal,
	tcell.ColorMaroon,
	tcell.ColorPurple,
	tcell.ColorOlive,
	tcell.ColorSilver,
	tcell.ColorGray,
	tcell.ColorBlue,
	tcell.ColorLime,
	tcell.ColorAqua,
	tcell.ColorRed,
	tcell.ColorFuchsia,
	tcell.ColorYellow,
	tcell.ColorWhite,
}

// Text attributes, CGA style.
const (
	attrData   = 0x07
	attrZero   = 0x08
	attrOffset = 0x03
	attrBar    = 0x1F
	attrError  = 0x4F
)

// Viewer draws one page at a time as a hex and CP437 dump.
type Viewer struct {
	sync.Mutex

	Title string

	screen tcell.Screen
	src    PageSource
	buf    []byte
	page   int
	scroll int
	err    error
}

func NewViewer(s tcell.Screen, src PageSource) *Viewer {
	return &Viewer{
		screen: s,
		src:    src,
		buf:    make([]byte, src.PageSize()),
	}
}

func (v *Viewer) Page() int {
	v.Lock()
	defer v.Unlock()
	return v.page
}

// SetPage moves to page n, clamped to the source.
func (v *Viewer) SetPage(n int) {
	v.Lock()
	v.setPage(n)
	v.Unlock()
}

func (v *Viewer) setPage(n int) {
	if last := v.src.PageCount() - 1; n > last {
		n = last
	}
	if n < 0 {
		n = 0
	}
	if n != v.page {
		v.scroll = 0
	}
	v.page = n
}

func (v *Viewer) scrollBy(n int) {
	_, h := v.screen.Size()
	max := rowsPerPage(len(v.buf)) - (h - 2)
	if max < 0 {
		max = 0
	}

	v.scroll += n
	if v.scroll > max {
		v.scroll = max
	}
	if v.scroll < 0 {
		v.scroll = 0
	}
}

// Draw renders the current page and shows the screen.
func (v *Viewer) Draw() {
	v.Lock()
	defer v.Unlock()

	s := v.screen
	s.Clear()
	w, h := s.Size()

	for i := range v.buf {
		v.buf[i] = 0
	}
	v.err = v.src.ReadPage(v.page, v.buf)

	title := v.Title
	if title != "" {
		title += "  "
	}
	header := fmt.Sprintf("%spage %d/%d  %d bytes  xxhash %016x", title, v.page, v.src.PageCount(), len(v.buf), storage.Digest(v.buf))
	drawBar(s, 0, w, header, attrBar)

	for y := 1; y < h-1; y++ {
		row := v.scroll + y - 1
		if row >= rowsPerPage(len(v.buf)) {
			break
		}
		v.drawRow(y, row)
	}

	if v.err != nil {
		drawBar(s, h-1, w, v.err.Error(), attrError)
	} else {
		drawBar(s, h-1, w, "PgUp/PgDn page  Up/Down scroll  Home/End first/last  q quit", attrBar)
	}
	s.Show()
}

func (v *Viewer) drawRow(y, row int) {
	start := row * bytesPerRow
	end := start + bytesPerRow
	if end > len(v.buf) {
		end = len(v.buf)
	}
	data := v.buf[start:end]

	x := drawString(v.screen, 0, y, fmt.Sprintf("%04X", start), createStyleFromAttrib(attrOffset))
	x += 2
	for i := 0; i < bytesPerRow; i++ {
		if i < len(data) {
			drawString(v.screen, x, y, fmt.Sprintf("%02X", data[i]), byteStyle(data[i]))
		}
		x += 3
	}

	x++
	for _, b := range data {
		v.screen.SetContent(x, y, glyph(b), nil, byteStyle(b))
		x++
	}
}

func byteStyle(b byte) tcell.Style {
	if b == 0 {
		return createStyleFromAttrib(attrZero)
	}
	return createStyleFromAttrib(attrData)
}

func glyph(b byte) rune {
	if b == 0 {
		return ' '
	}
	return codePage437[b]
}

func drawBar(s tcell.Screen, y, w int, text string, attr byte) {
	st := createStyleFromAttrib(attr)
	for x := 0; x < w; x++ {
		s.SetContent(x, y, ' ', nil, st)
	}
	drawString(s, 0, y, text, st)
}

func drawString(s tcell.Screen, x, y int, text string, st tcell.Style) int {
	for _, r := range text {
		s.SetContent(x, y, r, nil, st)
		x++
	}
	return x
}

func createStyleFromAttrib(attr byte) tcell.Style {
	return tcell.StyleDefault.Background(cgaPalette[(attr&0x70)>>4]).Foreground(cgaPalette[attr&0xF])
}
