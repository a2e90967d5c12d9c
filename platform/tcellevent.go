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
	"github.com/gdamore/tcell"
	"github.com/sirupsen/logrus"
)

// Run draws the viewer and processes events until the user quits. The screen
// must already be initialized.
func (v *Viewer) Run() error {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

	s := v.screen
	s.HideCursor()
	s.DisableMouse()
	v.Draw()

	for {
		ev := s.PollEvent()
		if ev == nil {
			return nil
		}
		if v.handleEvent(ev) {
			return nil
		}
	}
}

// handleEvent returns true when the viewer should close.
func (v *Viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if v.handleKey(ev) {
			return true
		}
		v.Draw()
	case *tcell.EventResize:
		v.screen.Sync()
		v.Draw()
	}
	return false
}

func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	v.Lock()
	defer v.Unlock()

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC, tcell.KeyF12:
		return true
	case tcell.KeyPgDn, tcell.KeyRight:
		v.setPage(v.page + 1)
	case tcell.KeyPgUp, tcell.KeyLeft:
		v.setPage(v.page - 1)
	case tcell.KeyDown:
		v.scrollBy(1)
	case tcell.KeyUp:
		v.scrollBy(-1)
	case tcell.KeyHome:
		v.setPage(0)
	case tcell.KeyEnd:
		v.setPage(v.src.PageCount() - 1)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'n', ' ':
			v.setPage(v.page + 1)
		case 'p':
			v.setPage(v.page - 1)
		}
	default:
		logrus.WithField("key", ev.Name()).Debug("unhandled key")
	}
	return false
}
