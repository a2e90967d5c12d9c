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

import (
	"fmt"
	"sync"
)

type slave struct {
	name string
	dev  Device
	cs   *Pin
}

// Bus is a single SPI master with one chip-select line per installed device.
type Bus struct {
	lock     sync.Mutex
	slaves   []*slave
	selected *slave
}

// InstallDevice attaches d to the bus and returns its chip-select line.
// The line starts out high (deselected).
func (b *Bus) InstallDevice(name string, d Device) (*Pin, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, s := range b.slaves {
		if s.name == name {
			return nil, fmt.Errorf("spi: device %q already installed", name)
		}
	}

	s := &slave{name: name, dev: d, cs: NewPin(High)}
	if c, ok := d.(ChipSelectConnector); ok {
		c.ConnectChipSelect(s.cs)
	}
	b.slaves = append(b.slaves, s)
	return s.cs, nil
}

func (b *Bus) Devices() []string {
	b.lock.Lock()
	defer b.lock.Unlock()

	names := make([]string, len(b.slaves))
	for i, s := range b.slaves {
		names[i] = s.name
	}
	return names
}

// Select drives the chip-select line of the named device low. Any other
// selected device is released first.
func (b *Bus) Select(name string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, s := range b.slaves {
		if s.name != name {
			continue
		}
		if b.selected != nil && b.selected != s {
			b.selected.cs.Write(High)
		}
		b.selected = s
		s.cs.Write(Low)
		return nil
	}
	return fmt.Errorf("spi: no device named %q", name)
}

func (b *Bus) Deselect() {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.selected != nil {
		b.selected.cs.Write(High)
		b.selected = nil
	}
}

// Exchange shifts one byte to the selected device. With nothing selected the
// bus floats high.
func (b *Bus) Exchange(data byte) byte {
	b.lock.Lock()
	s := b.selected
	b.lock.Unlock()

	if s == nil {
		return 0xFF
	}
	return s.dev.Exchange(data)
}

// Transaction selects the named device, exchanges every byte of tx and deselects it.
func (b *Bus) Transaction(name string, tx []byte) ([]byte, error) {
	if err := b.Select(name); err != nil {
		return nil, err
	}
	defer b.Deselect()

	rx := make([]byte, len(tx))
	for i, v := range tx {
		rx[i] = b.Exchange(v)
	}
	return rx, nil
}
