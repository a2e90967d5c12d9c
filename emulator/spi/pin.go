/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package spi

import "sync"

// Level of a digital line. Chip-select is active low.
const (
	Low  = false
	High = true
)

type PinListener interface {
	OnPinChanged(p *Pin, level bool)
}

// Pin is a digital input as seen by a device. Listeners are notified synchronously
// on every level change.
type Pin struct {
	lock      sync.RWMutex
	level     bool
	listeners []PinListener
}

func NewPin(level bool) *Pin {
	return &Pin{level: level}
}

func (p *Pin) Read() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.level
}

func (p *Pin) Write(level bool) {
	p.lock.Lock()
	if p.level == level {
		p.lock.Unlock()
		return
	}
	p.level = level
	listeners := append([]PinListener(nil), p.listeners...)
	p.lock.Unlock()

	for _, l := range listeners {
		l.OnPinChanged(p, level)
	}
}

func (p *Pin) RegisterListener(l PinListener) {
	p.lock.Lock()
	p.listeners = append(p.listeners, l)
	p.lock.Unlock()
}
