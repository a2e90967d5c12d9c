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

// Package storage implements page addressed storage on top of a flat image file.
// Page i lives at [i*PageSize, (i+1)*PageSize) and the file is grown with zeros on
// first touch.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
)

var (
	ErrInvalidPageSize  = errors.New("storage: invalid page size")
	ErrInvalidPageCount = errors.New("storage: invalid page count")
)

// PageError describes a failed page transfer against the backing file.
type PageError struct {
	Op   string
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("storage: %s page %d: %v", e.Op, e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Pager is the capability a block device needs from its storage.
type Pager interface {
	PageSize() int
	PageCount() int
	ReadPage(page int, buf []byte) error
	WritePage(page int, buf []byte) error
}

// File is the backing target of a PageStore. Both *os.File and afero.File satisfy it.
type File interface {
	io.ReaderAt
	io.WriterAt
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// Limits lists the geometries a device accepts.
type Limits struct {
	PageSizes  []int
	PageCounts []int
}

func (l Limits) validate(pageSize, pageCount int) error {
	if !contains(l.PageSizes, pageSize) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}
	if !contains(l.PageCounts, pageCount) {
		return fmt.Errorf("%w: %d", ErrInvalidPageCount, pageCount)
	}
	return nil
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

type PageStore struct {
	lock      sync.Mutex
	file      File
	pageSize  int
	pageCount int
}

// New validates the geometry against l. The store is unbound; reads and writes
// are no-ops until Bind is called.
func New(l Limits, pageSize, pageCount int) (*PageStore, error) {
	if err := l.validate(pageSize, pageCount); err != nil {
		return nil, err
	}
	return &PageStore{pageSize: pageSize, pageCount: pageCount}, nil
}

// Open creates a store and binds it to name on fs, creating the file if needed.
func Open(fs afero.Fs, name string, l Limits, pageSize, pageCount int) (*PageStore, afero.File, error) {
	s, err := New(l, pageSize, pageCount)
	if err != nil {
		return nil, nil, err
	}
	fp, err := fs.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, nil, err
	}
	s.Bind(fp)
	return s, fp, nil
}

// Bind replaces the backing file. Passing nil unbinds the store.
func (s *PageStore) Bind(f File) {
	s.lock.Lock()
	s.file = f
	s.lock.Unlock()
}

// Close unbinds the store and closes the backing file if it can be closed.
func (s *PageStore) Close() error {
	s.lock.Lock()
	f := s.file
	s.file = nil
	s.lock.Unlock()

	if c, ok := f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *PageStore) Bound() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.file != nil
}

func (s *PageStore) PageSize() int {
	return s.pageSize
}

func (s *PageStore) PageCount() int {
	return s.pageCount
}

// ReadPage fills buf[:PageSize()] with the page. Out of range pages and an
// unbound store leave buf untouched.
func (s *PageStore) ReadPage(page int, buf []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.file == nil || page < 0 || page >= s.pageCount {
		return nil
	}
	if len(buf) < s.pageSize {
		return &PageError{"read", page, io.ErrShortBuffer}
	}
	if err := s.grow(page); err != nil {
		return &PageError{"read", page, err}
	}

	n, err := s.file.ReadAt(buf[:s.pageSize], s.offset(page))
	if err == io.EOF && n == s.pageSize {
		err = nil
	}
	if err != nil {
		return &PageError{"read", page, err}
	}
	return nil
}

// WritePage stores buf[:PageSize()] as the page. Out of range pages and an
// unbound store drop the write.
func (s *PageStore) WritePage(page int, buf []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.file == nil || page < 0 || page >= s.pageCount {
		return nil
	}
	if len(buf) < s.pageSize {
		return &PageError{"write", page, io.ErrShortBuffer}
	}
	if err := s.grow(page); err != nil {
		return &PageError{"write", page, err}
	}
	if _, err := s.file.WriteAt(buf[:s.pageSize], s.offset(page)); err != nil {
		return &PageError{"write", page, err}
	}
	return nil
}

func (s *PageStore) offset(page int) int64 {
	return int64(page) * int64(s.pageSize)
}

func (s *PageStore) grow(page int) error {
	fi, err := s.file.Stat()
	if err != nil {
		return err
	}
	if end := s.offset(page + 1); fi.Size() < end {
		return s.file.Truncate(end)
	}
	return nil
}

// Used returns the number of pages the backing file currently covers.
func (s *PageStore) Used() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.file == nil {
		return 0, nil
	}
	fi, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	n := int(fi.Size() / int64(s.pageSize))
	if n > s.pageCount {
		n = s.pageCount
	}
	return n, nil
}
