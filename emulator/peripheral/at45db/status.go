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

// Status register byte 0.
const (
	status0PageSize = 0
	status0Density0 = 2
	status0Ready    = 7

	// 16 Mbit part.
	density = 0b1011
)

// Status register byte 1.
const (
	status1Ready = 7
)

// No program or erase latency is modelled, the chip is always ready.

func (m *Device) status0() byte {
	v := byte(1<<status0Ready | density<<status0Density0)
	if m.binaryPages {
		v |= 1 << status0PageSize
	}
	return v
}

func (m *Device) status1() byte {
	return 1 << status1Ready
}
