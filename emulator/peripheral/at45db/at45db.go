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

// Package at45db emulates an AT45DB DataFlash chip on the SPI bus.
// Pages are kept in memory only.
package at45db

import (
	"fmt"
	"log"
	"sync"

	"github.com/andreas-jonsson/virtualspi/emulator/spi"
	"github.com/sirupsen/logrus"
)

const (
	PageSize       = 528
	BinaryPageSize = 512
	NumPages       = 4096
)

type Opcode byte

const (
	OpReadDeviceID       Opcode = 0x9F
	OpReadStatus         Opcode = 0xD7
	OpReadMemoryPage     Opcode = 0xD2
	OpWriteBuffer1       Opcode = 0x84
	OpWriteBuffer2       Opcode = 0x87
	OpBuffer1ToPageErase Opcode = 0x83
	OpBuffer2ToPageErase Opcode = 0x86
	OpConfig             Opcode = 0x3D
)

// Manufacturer, device ID and extended info length.
var deviceID = [3]byte{0x1F, 0x26, 0x00}

// Dummy bytes of a main memory page read end at this position.
const readDataStart = 8

type handler func(m *Device, pos uint32, data byte) byte

var opcodeTable = map[Opcode]handler{
	OpReadDeviceID:       (*Device).readDeviceID,
	OpReadStatus:         (*Device).readStatus,
	OpReadMemoryPage:     (*Device).readMemoryPage,
	OpWriteBuffer1:       func(m *Device, pos uint32, data byte) byte { return m.writeBuffer(0, pos, data) },
	OpWriteBuffer2:       func(m *Device, pos uint32, data byte) byte { return m.writeBuffer(1, pos, data) },
	OpBuffer1ToPageErase: func(m *Device, pos uint32, _ byte) byte { return m.bufferToPage(0, pos) },
	OpBuffer2ToPageErase: func(m *Device, pos uint32, _ byte) byte { return m.bufferToPage(1, pos) },
	OpConfig:             (*Device).configure,
}

type writeBuffer struct {
	data   [PageSize]byte
	cursor uint32
}

type Device struct {
	DeviceName string
	Logger     logrus.FieldLogger

	lock sync.Mutex
	cs   *spi.Pin

	binaryPages bool

	opcode   Opcode
	addr     [3]byte
	bytePos  uint32
	pageAddr uint32
	byteAddr uint32

	buffers [2]writeBuffer
	pages   [NumPages][PageSize]byte
	faults  uint64
}

func (m *Device) Install(b *spi.Bus) error {
	_, err := b.InstallDevice(m.Name(), m)
	return err
}

func (m *Device) Name() string {
	if m.DeviceName == "" {
		return "flash"
	}
	return m.DeviceName
}

// Reset puts the command interpreter in its power-on state. The SRAM buffers are
// cleared while main memory and the page size configuration are kept.
func (m *Device) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.opcode = 0
	m.addr = [3]byte{}
	m.bytePos = 0
	m.pageAddr, m.byteAddr = 0, 0
	m.buffers = [2]writeBuffer{}
}

func (m *Device) ConnectChipSelect(cs *spi.Pin) {
	m.lock.Lock()
	m.cs = cs
	m.lock.Unlock()
	cs.RegisterListener(m)
}

// OnPinChanged restarts command parsing when the chip is deselected.
func (m *Device) OnPinChanged(_ *spi.Pin, level bool) {
	if level == spi.High {
		m.lock.Lock()
		m.bytePos = 0
		m.lock.Unlock()
	}
}

func (m *Device) Connect(spi.Device) {
	log.Panic("at45db: daisy chaining is not supported")
}

func (m *Device) Exchange(data byte) byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.cs != nil && m.cs.Read() == spi.High {
		return 0x00
	}

	pos := m.bytePos
	m.bytePos++

	switch pos {
	case 0:
		m.opcode = Opcode(data)
		return 0x00
	case 1, 2:
		m.addr[pos-1] = data
	case 3:
		m.addr[2] = data
		m.decodeAddress()
	}

	if h, ok := opcodeTable[m.opcode]; ok {
		return h(m, pos, data)
	}
	return 0x00
}

// The high bits of the byte address are the low bits of addr2, not addr1.
func (m *Device) decodeAddress() {
	a0, a1, a2 := uint32(m.addr[0]), uint32(m.addr[1]), uint32(m.addr[2])
	if m.binaryPages {
		m.pageAddr = a1>>1 | (a0&0x1F)<<7
		m.byteAddr = a2 | (a2&0x1)<<8
	} else {
		m.pageAddr = a1>>2 | (a0&0x1F)<<6
		m.byteAddr = a2 | (a2&0x3)<<8
	}
}

func (m *Device) readDeviceID(pos uint32, _ byte) byte {
	if pos >= 1 && pos <= 3 {
		return deviceID[pos-1]
	}
	return 0x00
}

func (m *Device) readStatus(pos uint32, _ byte) byte {
	switch pos {
	case 1:
		return m.status0()
	case 2:
		return m.status1()
	}
	return 0x00
}

func (m *Device) readMemoryPage(pos uint32, _ byte) byte {
	if pos < readDataStart {
		return 0x00
	}
	if m.byteAddr >= PageSize {
		m.fault("page read past end of page")
		return 0x00
	}
	v := m.pages[m.pageAddr][m.byteAddr]
	m.byteAddr++
	return v
}

func (m *Device) writeBuffer(n int, pos uint32, data byte) byte {
	buf := &m.buffers[n]
	switch {
	case pos == 3:
		buf.cursor = m.byteAddr
	case pos > 3:
		if buf.cursor >= PageSize {
			m.fault(fmt.Sprintf("buffer %d write past end of buffer", n+1))
			return 0x00
		}
		buf.data[buf.cursor] = data
		buf.cursor++
	}
	return 0x00
}

func (m *Device) bufferToPage(n int, pos uint32) byte {
	if pos != 3 {
		return 0x00
	}

	start := m.byteAddr
	if start > PageSize {
		m.fault(fmt.Sprintf("buffer %d program starts past end of page", n+1))
		start = PageSize
	}

	page := &m.pages[m.pageAddr]
	for i := uint32(0); i < start; i++ {
		page[i] = 0
	}
	copy(page[start:], m.buffers[n].data[start:])
	return 0x00
}

func (m *Device) configure(pos uint32, _ byte) byte {
	if pos != 3 || m.addr[0] != 0x2A || m.addr[1] != 0x80 {
		return 0x00
	}
	switch m.addr[2] {
	case 0xA7:
		m.binaryPages = false
	case 0xA6:
		m.binaryPages = true
	}
	return 0x00
}

func (m *Device) fault(msg string) {
	m.faults++
	m.logger().WithFields(logrus.Fields{
		"device": m.Name(),
		"opcode": fmt.Sprintf("0x%02X", byte(m.opcode)),
		"page":   m.pageAddr,
		"byte":   m.byteAddr,
	}).Warn(msg)
}

func (m *Device) logger() logrus.FieldLogger {
	if m.Logger == nil {
		return logrus.StandardLogger()
	}
	return m.Logger
}

// Faults returns the number of clamped out of range buffer accesses.
func (m *Device) Faults() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.faults
}

// BinaryPageSize reports whether the chip is configured for 512 byte pages.
func (m *Device) BinaryPageSize() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.binaryPages
}
