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

package sdcard

import "encoding/binary"

type Command byte

const (
	CmdGoIdleState        Command = 0
	CmdSendIfCond         Command = 8
	CmdSendCSD            Command = 9
	CmdReadSingleBlock    Command = 17
	CmdWriteBlock         Command = 24
	CmdWriteMultipleBlock Command = 25
	CmdAppCmd             Command = 55
	CmdReadOCR            Command = 58
)

// Application specific commands, valid after CmdAppCmd.
const (
	ACmdSetWrBlockEraseCount Command = 23
	ACmdSendOpCond           Command = 41
)

const frameSize = 6

type frame struct {
	data [frameSize]byte
	n    int
}

func (f *frame) reset() {
	*f = frame{}
}

func (f *frame) push(b byte) {
	if f.n < frameSize {
		f.data[f.n] = b
		f.n++
	}
}

func (f *frame) complete() bool {
	return f.n == frameSize
}

func (f *frame) command() Command {
	return Command(f.data[0] & 0x3F)
}

func (f *frame) argument() uint32 {
	return binary.BigEndian.Uint32(f.data[1:5])
}

func (f *frame) argumentByte(i int) byte {
	return f.data[1+i]
}

// isStart reports whether b can begin a command frame: start bit 0, transmission bit 1.
func isStart(b byte) bool {
	return b&0xC0 == 0x40
}
