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
	"log"

	"github.com/sirupsen/logrus"
)

// Device is a peripheral on the SPI bus. Exchange is called once per byte period
// with the byte the master shifts out and returns the byte shifted back in.
type Device interface {
	Exchange(data byte) byte
	Connect(d Device)
}

// ChipSelectConnector is implemented by devices that gate on a chip-select line.
type ChipSelectConnector interface {
	ConnectChipSelect(cs *Pin)
}

type NullDevice struct{}

func (*NullDevice) Exchange(data byte) byte {
	logrus.Debugf("exchange with unconnected SPI device: 0x%X", data)
	return 0xFF
}

func (*NullDevice) Connect(Device) {
	log.Panic("daisy chaining is not supported")
}
