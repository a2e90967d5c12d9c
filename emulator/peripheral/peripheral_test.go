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
	"errors"
	"testing"

	"github.com/andreas-jonsson/virtualspi/emulator/spi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallAll(t *testing.T) {
	b := &spi.Bus{}
	require.NoError(t, InstallAll(b, &NullDevice{}))
	assert.Equal(t, []string{"Null Device"}, b.Devices())

	rx, err := b.Transaction("Null Device", []byte{0x12, 0x34})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, rx)

	assert.Error(t, InstallAll(b, &NullDevice{}), "duplicate name")
}

func TestNullDeviceConnect(t *testing.T) {
	assert.Panics(t, func() {
		(&NullDevice{}).Connect(&NullDevice{})
	})
}

type closer struct {
	NullDevice
	closed int
	err    error
}

func (c *closer) Close() error {
	c.closed++
	return c.err
}

func TestCloseAll(t *testing.T) {
	a := &closer{err: errors.New("busy")}
	b := &closer{}

	err := CloseAll(a, &NullDevice{}, b)
	assert.EqualError(t, err, "busy")
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed, "later peripherals are still closed")
}
