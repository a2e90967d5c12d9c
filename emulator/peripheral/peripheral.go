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

package peripheral

import (
	"github.com/andreas-jonsson/virtualspi/emulator/spi"
)

type Peripheral interface {
	spi.Device

	Name() string
	Reset()
	Install(*spi.Bus) error
}

type PeripheralCloser interface {
	Close() error
}

// InstallAll installs the peripherals on the bus in order.
func InstallAll(b *spi.Bus, peripherals ...Peripheral) error {
	for _, p := range peripherals {
		if err := p.Install(b); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes every peripheral that implements PeripheralCloser and returns
// the first error.
func CloseAll(peripherals ...Peripheral) error {
	var first error
	for _, p := range peripherals {
		if c, ok := p.(PeripheralCloser); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

type NullDevice struct {
	spi.NullDevice
}

func (m *NullDevice) Install(b *spi.Bus) error {
	_, err := b.InstallDevice(m.Name(), m)
	return err
}

func (*NullDevice) Name() string {
	return "Null Device"
}

func (*NullDevice) Reset() {
}
