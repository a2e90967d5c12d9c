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
	"errors"
	"io"
)

func (m *Device) PageSize() int {
	return PageSize
}

func (m *Device) PageCount() int {
	return NumPages
}

// ReadPage copies a main memory page into buf. Out of range pages are ignored.
func (m *Device) ReadPage(page int, buf []byte) error {
	if page < 0 || page >= NumPages {
		return nil
	}
	if len(buf) < PageSize {
		return io.ErrShortBuffer
	}

	m.lock.Lock()
	copy(buf, m.pages[page][:])
	m.lock.Unlock()
	return nil
}

// WritePage replaces a main memory page without going through the buffers.
func (m *Device) WritePage(page int, buf []byte) error {
	if page < 0 || page >= NumPages {
		return nil
	}
	if len(buf) < PageSize {
		return io.ErrShortBuffer
	}

	m.lock.Lock()
	copy(m.pages[page][:], buf)
	m.lock.Unlock()
	return nil
}

// LoadImage fills main memory from a raw image of consecutive 528 byte pages.
// A short image leaves the remaining pages erased.
func (m *Device) LoadImage(r io.Reader) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.pages = [NumPages][PageSize]byte{}
	for i := range m.pages {
		_, err := io.ReadFull(r, m.pages[i][:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Device) SaveImage(w io.Writer) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i := range m.pages {
		if _, err := w.Write(m.pages[i][:]); err != nil {
			return err
		}
	}
	return nil
}
