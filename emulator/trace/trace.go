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

// Package trace records SPI traffic to pcap files.
//
// Every chip-select framed transaction becomes one record with link type
// DLT_USER0. The payload is the device id byte, a big endian uint16 byte count
// n, the n bytes sent by the master and the n bytes returned by the device.
package trace

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/andreas-jonsson/virtualspi/emulator/spi"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const LinkType = layers.LinkType(147)

const (
	headerSize = 3
	snapLen    = headerSize + 2*math.MaxUint16
)

type Transaction struct {
	Timestamp time.Time
	Device    byte
	MOSI      []byte
	MISO      []byte
}

func (t *Transaction) encode() []byte {
	buf := make([]byte, headerSize, headerSize+len(t.MOSI)+len(t.MISO))
	buf[0] = t.Device
	binary.BigEndian.PutUint16(buf[1:], uint16(len(t.MOSI)))
	buf = append(buf, t.MOSI...)
	return append(buf, t.MISO...)
}

// Writer is a pcap file shared by any number of recorders.
type Writer struct {
	Now func() time.Time

	lock   sync.Mutex
	w      *pcapgo.Writer
	err    error
	frames int
}

// NewWriter writes the pcap file header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, LinkType); err != nil {
		return nil, err
	}
	return &Writer{Now: time.Now, w: pw}, nil
}

// Wrap returns a recorder that tags the traffic of dev with id.
func (w *Writer) Wrap(id byte, dev spi.Device) *Recorder {
	return &Recorder{w: w, id: id, dev: dev}
}

// Frames returns the number of transactions written.
func (w *Writer) Frames() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.frames
}

// Err returns the first write error. Later transactions are dropped.
func (w *Writer) Err() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.err
}

func (w *Writer) write(t *Transaction) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.err != nil {
		return w.err
	}

	data := t.encode()
	ci := gopacket.CaptureInfo{
		Timestamp:     t.Timestamp,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if w.err = w.w.WritePacket(ci, data); w.err == nil {
		w.frames++
	}
	return w.err
}

func (w *Writer) now() time.Time {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.Now()
}

// Recorder sits between the bus and a device and logs every exchange.
type Recorder struct {
	lock sync.Mutex
	w    *Writer
	id   byte
	dev  spi.Device
	cur  Transaction
}

func (r *Recorder) Exchange(data byte) byte {
	out := r.dev.Exchange(data)

	r.lock.Lock()
	if len(r.cur.MOSI) == 0 {
		r.cur.Timestamp = r.w.now()
	}
	if len(r.cur.MOSI) < math.MaxUint16 {
		r.cur.MOSI = append(r.cur.MOSI, data)
		r.cur.MISO = append(r.cur.MISO, out)
	}
	r.lock.Unlock()
	return out
}

func (r *Recorder) Connect(d spi.Device) {
	r.dev.Connect(d)
}

// ConnectChipSelect hands the line to the wrapped device and listens for the
// end of each transaction.
func (r *Recorder) ConnectChipSelect(cs *spi.Pin) {
	if c, ok := r.dev.(spi.ChipSelectConnector); ok {
		c.ConnectChipSelect(cs)
	}
	cs.RegisterListener(r)
}

func (r *Recorder) OnPinChanged(_ *spi.Pin, level bool) {
	if level == spi.High {
		r.Flush()
	}
}

// Flush writes the pending transaction, if any.
func (r *Recorder) Flush() error {
	r.lock.Lock()
	t := r.cur
	r.cur = Transaction{}
	r.lock.Unlock()

	if len(t.MOSI) == 0 {
		return nil
	}
	t.Device = r.id
	return r.w.write(&t)
}

// ReadAll decodes a trace written by a Writer.
func ReadAll(rd io.Reader) ([]Transaction, error) {
	pr, err := pcapgo.NewReader(rd)
	if err != nil {
		return nil, err
	}
	if pr.LinkType() != LinkType {
		return nil, ErrLinkType
	}

	var res []Transaction
	for {
		data, ci, err := pr.ReadPacketData()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		if len(data) < headerSize {
			return res, ErrShortRecord
		}

		n := int(binary.BigEndian.Uint16(data[1:]))
		if len(data) != headerSize+2*n {
			return res, ErrShortRecord
		}
		res = append(res, Transaction{
			Timestamp: ci.Timestamp,
			Device:    data[0],
			MOSI:      data[headerSize : headerSize+n],
			MISO:      data[headerSize+n:],
		})
	}
}
