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

// Package sdcard emulates an SD card in SPI mode. Blocks are read from and
// written to a storage.Pager.
package sdcard

import (
	"io"
	"log"
	"sync"

	"github.com/andreas-jonsson/virtualspi/emulator/spi"
	"github.com/andreas-jonsson/virtualspi/emulator/storage"
	"github.com/sirupsen/logrus"
)

const (
	BlockSize        = 512
	DefaultPageCount = 1024 * 1024
)

// Limits are the geometries a card image may have.
var Limits = storage.Limits{
	PageSizes:  []int{BlockSize},
	PageCounts: []int{1024, 1024 * 1024, 2 * 1024 * 1024},
}

// Tokens and responses.
const (
	r1Ready = 0x00
	r1Idle  = 0x01

	fillByte = 0xFF

	tokenStartBlock      = 0xFE
	tokenStartMultiBlock = 0xFC
	tokenStopTransfer    = 0xFD

	dataAccepted = 0b101
)

// Operating conditions register, bytes in transmit order.
var ocr = [3]byte{0xC0, 0x00, 0x00}

// Block payload plus two CRC bytes.
const transferEnd = BlockSize + 2

type handler func(m *Device, in byte) byte

var commandTable = map[Command]handler{
	CmdGoIdleState:        (*Device).goIdleState,
	CmdSendIfCond:         (*Device).sendIfCond,
	CmdSendCSD:            (*Device).sendCSD,
	CmdReadSingleBlock:    (*Device).readSingleBlock,
	CmdWriteBlock:         (*Device).writeBlock,
	CmdWriteMultipleBlock: (*Device).writeMultipleBlock,
	CmdAppCmd:             (*Device).appCommand,
	CmdReadOCR:            (*Device).readOCR,
}

var appCommandTable = map[Command]handler{
	ACmdSendOpCond:           (*Device).appAccept,
	ACmdSetWrBlockEraseCount: (*Device).appAccept,
}

type Device struct {
	DeviceName string
	Logger     logrus.FieldLogger

	lock  sync.Mutex
	cs    *spi.Pin
	store storage.Pager

	frame    frame
	awaiting bool
	appCmd   bool
	pos      int

	block  uint32
	offset int
	buffer [BlockSize]byte
	csd    [16]byte
}

// New creates a card backed by store. A nil store gives a card with an unbound
// PageStore of the default geometry.
func New(store storage.Pager) *Device {
	if store == nil {
		s, err := storage.New(Limits, BlockSize, DefaultPageCount)
		if err != nil {
			log.Panic(err)
		}
		store = s
	}
	m := &Device{store: store}
	m.csd = DefaultCSD().Bytes()
	m.reset()
	return m
}

func (m *Device) Install(b *spi.Bus) error {
	_, err := b.InstallDevice(m.Name(), m)
	return err
}

func (m *Device) Name() string {
	if m.DeviceName == "" {
		return "card"
	}
	return m.DeviceName
}

func (m *Device) Reset() {
	m.lock.Lock()
	m.reset()
	m.lock.Unlock()
}

func (m *Device) reset() {
	m.frame.reset()
	m.awaiting = true
	m.appCmd = false
	m.pos = 0
	m.offset = -1
}

// Close releases the backing store if it holds a file.
func (m *Device) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if c, ok := m.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (m *Device) ConnectChipSelect(cs *spi.Pin) {
	m.lock.Lock()
	m.cs = cs
	m.lock.Unlock()
	cs.RegisterListener(m)
}

// OnPinChanged does nothing. Unlike the flash chip the card keeps its command
// state across chip-select transitions.
func (m *Device) OnPinChanged(*spi.Pin, bool) {
}

func (m *Device) Connect(spi.Device) {
	log.Panic("sdcard: daisy chaining is not supported")
}

func (m *Device) Exchange(in byte) byte {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.cs != nil && m.cs.Read() == spi.High {
		return fillByte
	}

	if m.awaiting {
		if !isStart(in) {
			return fillByte
		}
		m.awaiting = false
		m.frame.reset()
		m.pos = 0
	}

	if !m.frame.complete() {
		m.frame.push(in)
		return r1Ready
	}

	var out byte
	if m.appCmd {
		out = m.dispatch(appCommandTable, in)
		m.appCmd = false
		m.finish()
	} else {
		out = m.dispatch(commandTable, in)
	}
	m.pos++
	return out
}

func (m *Device) dispatch(table map[Command]handler, in byte) byte {
	if h, ok := table[m.frame.command()]; ok {
		return h(m, in)
	}
	m.logger().WithField("command", m.frame.command()).Debug("unsupported command")
	m.finish()
	return r1Idle
}

func (m *Device) finish() {
	m.awaiting = true
}

func (m *Device) goIdleState(byte) byte {
	m.finish()
	return r1Idle
}

func (m *Device) sendIfCond(byte) byte {
	if m.pos == 0 {
		return r1Idle
	}
	if m.pos == 4 {
		m.finish()
	}
	return m.frame.argumentByte(m.pos - 1)
}

func (m *Device) appCommand(byte) byte {
	m.appCmd = true
	m.finish()
	return r1Ready
}

func (m *Device) appAccept(byte) byte {
	return r1Ready
}

func (m *Device) readOCR(byte) byte {
	switch {
	case m.pos == 0:
		return r1Ready
	case m.pos <= len(ocr):
		return ocr[m.pos-1]
	}
	m.finish()
	return fillByte
}

func (m *Device) sendCSD(byte) byte {
	switch {
	case m.pos == 0:
		return r1Ready
	case m.pos == 1:
		return tokenStartBlock
	case m.pos < 2+len(m.csd):
		return m.csd[m.pos-2]
	case m.pos == 2+len(m.csd)+1:
		m.finish()
	}
	return fillByte
}

func (m *Device) readSingleBlock(byte) byte {
	switch {
	case m.pos == 0:
		m.block = m.frame.argument()
		m.offset = -1
		m.load()
		return r1Ready
	case m.pos == 1:
		m.offset = 0
		return tokenStartBlock
	case m.offset < 0:
		return fillByte
	}

	out := byte(fillByte)
	if m.offset < BlockSize {
		out = m.buffer[m.offset]
	}
	if m.offset++; m.offset == transferEnd {
		m.offset = -1
		m.finish()
	}
	return out
}

func (m *Device) writeBlock(in byte) byte {
	if m.pos == 0 {
		m.block = m.frame.argument()
		m.offset = -1
		return r1Ready
	}
	if m.offset < 0 {
		if in == tokenStartBlock {
			m.offset = 0
		}
		return r1Ready
	}
	if m.receive(in) {
		m.finish()
		return dataAccepted
	}
	return r1Ready
}

func (m *Device) writeMultipleBlock(in byte) byte {
	if m.pos == 0 {
		m.block = m.frame.argument()
		m.offset = -1
		return r1Ready
	}
	if m.offset < 0 {
		switch in {
		case tokenStartMultiBlock:
			m.offset = 0
		case tokenStopTransfer:
			m.finish()
		}
		return r1Ready
	}
	if m.receive(in) {
		m.block++
		return dataAccepted
	}
	return r1Ready
}

// receive consumes one byte of a data packet. The payload is stored once the
// first CRC byte arrives and true is returned on the exchange after the CRC.
func (m *Device) receive(in byte) bool {
	switch {
	case m.offset < BlockSize:
		m.buffer[m.offset] = in
	case m.offset == BlockSize:
		m.save()
	case m.offset == transferEnd:
		m.offset = -1
		return true
	}
	m.offset++
	return false
}

func (m *Device) load() {
	if err := m.store.ReadPage(int(m.block), m.buffer[:]); err != nil {
		m.storageError(err)
	}
}

func (m *Device) save() {
	if err := m.store.WritePage(int(m.block), m.buffer[:]); err != nil {
		m.storageError(err)
	}
}

// Storage failures can not be signalled to the guest. They are logged and the
// transfer continues with whatever the block buffer holds.
func (m *Device) storageError(err error) {
	m.logger().WithFields(logrus.Fields{
		"device":  m.Name(),
		"command": m.frame.command(),
		"block":   m.block,
	}).WithError(err).Error("block transfer failed")
}

func (m *Device) logger() logrus.FieldLogger {
	if m.Logger == nil {
		return logrus.StandardLogger()
	}
	return m.Logger
}
