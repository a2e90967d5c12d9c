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

package at45db

import (
	"bytes"
	"testing"

	"github.com/andreas-jonsson/virtualspi/emulator/spi"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T) (*Device, *spi.Bus, *test.Hook) {
	logger, hook := test.NewNullLogger()
	m := &Device{Logger: logger}
	b := &spi.Bus{}
	require.NoError(t, m.Install(b))
	return m, b, hook
}

func transfer(t *testing.T, b *spi.Bus, tx ...byte) []byte {
	rx, err := b.Transaction("flash", tx)
	require.NoError(t, err)
	return rx
}

// address528 encodes page and byte for the default 528 byte page mode. Offsets
// must have the two low bits clear since those are folded into bits 8 and 9.
func address528(page, offset int) []byte {
	return []byte{byte(page >> 6), byte(page << 2), byte(offset)}
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

func command(op Opcode, addr []byte, data ...byte) []byte {
	return append(append([]byte{byte(op)}, addr...), data...)
}

func readPage(t *testing.T, m *Device, page int) []byte {
	buf := make([]byte, PageSize)
	require.NoError(t, m.ReadPage(page, buf))
	return buf
}

func TestReadDeviceID(t *testing.T) {
	m, b, _ := newTestDevice(t)

	rx := transfer(t, b, 0x9F, 0, 0, 0, 0)
	assert.Equal(t, []byte{0x00, 0x1F, 0x26, 0x00, 0x00}, rx)

	transfer(t, b, command(OpWriteBuffer1, address528(0, 0), 1, 2, 3)...)
	transfer(t, b, 0x3D, 0x2A, 0x80, 0xA6)

	rx = transfer(t, b, 0x9F, 0, 0, 0)
	assert.Equal(t, []byte{0x00, 0x1F, 0x26, 0x00}, rx)
	assert.True(t, m.BinaryPageSize())
}

func TestReadStatus(t *testing.T) {
	_, b, _ := newTestDevice(t)

	t.Run("528", func(t *testing.T) {
		assert.Equal(t, []byte{0x00, 0xAC, 0x80, 0x00}, transfer(t, b, 0xD7, 0, 0, 0))
	})

	t.Run("512", func(t *testing.T) {
		transfer(t, b, 0x3D, 0x2A, 0x80, 0xA6)
		assert.Equal(t, []byte{0x00, 0xAD, 0x80}, transfer(t, b, 0xD7, 0, 0))
	})
}

func TestBufferToPageWithErase(t *testing.T) {
	t.Run("Offset0", func(t *testing.T) {
		m, b, _ := newTestDevice(t)
		require.NoError(t, m.WritePage(5, bytes.Repeat([]byte{0xEE}, PageSize)))

		data := pattern(100)
		rx := transfer(t, b, command(OpWriteBuffer1, address528(0, 0), data...)...)
		assert.Equal(t, make([]byte, len(rx)), rx)

		transfer(t, b, command(OpBuffer1ToPageErase, address528(5, 0))...)

		page := readPage(t, m, 5)
		assert.Equal(t, data, page[:100])
		assert.Equal(t, make([]byte, PageSize-100), page[100:], "remaining bytes come from the erased buffer")
	})

	t.Run("OffsetK", func(t *testing.T) {
		m, b, _ := newTestDevice(t)
		require.NoError(t, m.WritePage(9, bytes.Repeat([]byte{0xEE}, PageSize)))

		data := pattern(PageSize)
		transfer(t, b, command(OpWriteBuffer2, address528(0, 0), data...)...)
		transfer(t, b, command(OpBuffer2ToPageErase, address528(9, 16))...)

		page := readPage(t, m, 9)
		assert.Equal(t, make([]byte, 16), page[:16])
		assert.Equal(t, data[16:], page[16:])
	})

	t.Run("BufferOffset", func(t *testing.T) {
		m, b, _ := newTestDevice(t)

		transfer(t, b, command(OpWriteBuffer1, address528(0, 32), 0xA1, 0xA2)...)
		transfer(t, b, command(OpBuffer1ToPageErase, address528(1, 0))...)

		page := readPage(t, m, 1)
		assert.Equal(t, []byte{0xA1, 0xA2}, page[32:34])
		assert.Equal(t, make([]byte, 32), page[:32])
	})
}

func TestReadMemoryPage(t *testing.T) {
	m, b, _ := newTestDevice(t)

	data := pattern(PageSize)
	require.NoError(t, m.WritePage(70, data))

	tx := command(OpReadMemoryPage, address528(70, 12), 0xFF, 0xFF, 0xFF, 0xFF)
	tx = append(tx, make([]byte, 20)...)
	rx := transfer(t, b, tx...)

	assert.Equal(t, make([]byte, 8), rx[:8])
	assert.Equal(t, data[12:32], rx[8:])
}

func TestConfigurePageSize(t *testing.T) {
	m, b, _ := newTestDevice(t)

	require.NoError(t, m.WritePage(2, bytes.Repeat([]byte{0x22}, PageSize)))
	require.NoError(t, m.WritePage(5, bytes.Repeat([]byte{0x55}, PageSize)))

	read := func() byte {
		rx := transfer(t, b, 0xD2, 0x00, 0x0A, 0x00, 0, 0, 0, 0, 0)
		return rx[8]
	}

	assert.Equal(t, byte(0x22), read())

	transfer(t, b, 0x3D, 0x2A, 0x80, 0xA6)
	assert.True(t, m.BinaryPageSize())
	assert.Equal(t, byte(0x55), read())

	transfer(t, b, 0x3D, 0x2A, 0x80, 0xA7)
	assert.False(t, m.BinaryPageSize())
	assert.Equal(t, byte(0x22), read())

	transfer(t, b, 0x3D, 0x2A, 0x81, 0xA6)
	assert.False(t, m.BinaryPageSize())
}

func TestBinaryAddressDecode(t *testing.T) {
	m, b, _ := newTestDevice(t)
	transfer(t, b, 0x3D, 0x2A, 0x80, 0xA6)

	data := pattern(PageSize)
	require.NoError(t, m.WritePage(0x1FF, data))

	// Page 0x1FF, byte 0x81 | (0x81 & 1) << 8.
	rx := transfer(t, b, 0xD2, 0x03, 0xFE, 0x81, 0, 0, 0, 0, 0, 0)
	assert.Equal(t, data[0x181:0x183], rx[8:])
}

func TestChipSelect(t *testing.T) {
	t.Run("AbortMidCommand", func(t *testing.T) {
		_, b, _ := newTestDevice(t)

		require.NoError(t, b.Select("flash"))
		b.Exchange(byte(OpWriteBuffer1))
		b.Exchange(0x00)
		b.Deselect()

		assert.Equal(t, []byte{0x00, 0x1F, 0x26, 0x00}, transfer(t, b, 0x9F, 0, 0, 0))
	})

	t.Run("Deselected", func(t *testing.T) {
		m := &Device{}
		cs := spi.NewPin(spi.High)
		m.ConnectChipSelect(cs)

		assert.Equal(t, byte(0x00), m.Exchange(0x9F))
		assert.Equal(t, byte(0x00), m.Exchange(0x00))

		cs.Write(spi.Low)
		assert.Equal(t, byte(0x00), m.Exchange(0x9F))
		assert.Equal(t, byte(0x1F), m.Exchange(0x00))
	})

	t.Run("Unconnected", func(t *testing.T) {
		m := &Device{}
		assert.Equal(t, byte(0x00), m.Exchange(0x9F))
		assert.Equal(t, byte(0x1F), m.Exchange(0x00))
	})
}

func TestUnknownOpcode(t *testing.T) {
	_, b, _ := newTestDevice(t)
	assert.Equal(t, make([]byte, 6), transfer(t, b, 0x55, 1, 2, 3, 4, 5))
}

func TestCursorOverflow(t *testing.T) {
	m, b, hook := newTestDevice(t)

	// 0xFF in the low address byte decodes to byte 0x3FF in 528 byte mode.
	transfer(t, b, command(OpWriteBuffer1, []byte{0, 0, 0xFF}, 1, 2)...)
	assert.Equal(t, uint64(2), m.Faults())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "flash", hook.LastEntry().Data["device"])

	require.NoError(t, m.WritePage(0, bytes.Repeat([]byte{0xEE}, PageSize)))
	transfer(t, b, command(OpBuffer1ToPageErase, []byte{0, 0, 0xFF})...)
	assert.Equal(t, uint64(3), m.Faults())
	assert.Equal(t, make([]byte, PageSize), readPage(t, m, 0))

	rx := transfer(t, b, 0xD2, 0, 0, 0xFF, 0, 0, 0, 0, 0)
	assert.Equal(t, byte(0x00), rx[8])
	assert.Equal(t, uint64(4), m.Faults())
}

func TestReset(t *testing.T) {
	m, b, _ := newTestDevice(t)

	require.NoError(t, b.Select("flash"))
	b.Exchange(0xD7)
	m.Reset()
	assert.Equal(t, byte(0x00), b.Exchange(0x9F))
	assert.Equal(t, byte(0x1F), b.Exchange(0x00))
	b.Deselect()
}

func TestImage(t *testing.T) {
	m := &Device{}
	data := pattern(PageSize)
	require.NoError(t, m.WritePage(4095, data))

	var buf bytes.Buffer
	require.NoError(t, m.SaveImage(&buf))
	assert.Equal(t, NumPages*PageSize, buf.Len())

	other := &Device{}
	require.NoError(t, other.LoadImage(&buf))
	assert.Equal(t, data, readPage(t, other, 4095))

	require.NoError(t, other.LoadImage(bytes.NewReader(data[:100])))
	page := readPage(t, other, 0)
	assert.Equal(t, data[:100], page[:100])
	assert.Equal(t, make([]byte, PageSize-100), page[100:])
	assert.Equal(t, make([]byte, PageSize), readPage(t, other, 4095))
}

func TestConnect(t *testing.T) {
	assert.Panics(t, func() {
		(&Device{}).Connect(&spi.NullDevice{})
	})
}
