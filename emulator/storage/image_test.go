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

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCard(t *testing.T) {
	t.Run("FAT32", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "card.img")
		require.NoError(t, FormatCard(path, "VIRTUALSPI", testLimits, 512, 1024*1024))

		fp, err := os.Open(path)
		require.NoError(t, err)
		defer fp.Close()

		fi, err := fp.Stat()
		require.NoError(t, err)
		assert.Equal(t, int64(512*1024*1024), fi.Size())

		var mbr [512]byte
		_, err = fp.ReadAt(mbr[:], 0)
		require.NoError(t, err)
		assert.Equal(t, byte(0x55), mbr[510])
		assert.Equal(t, byte(0xAA), mbr[511])
		assert.Equal(t, byte(0x0C), mbr[0x1BE+4], "partition type")
	})

	t.Run("ClosesImage", func(t *testing.T) {
		fds, err := os.ReadDir("/proc/self/fd")
		if err != nil {
			t.Skip("no /proc/self/fd")
		}

		path := filepath.Join(t.TempDir(), "card.img")
		require.NoError(t, FormatCard(path, "VIRTUALSPI", testLimits, 512, 1024*1024))

		after, err := os.ReadDir("/proc/self/fd")
		require.NoError(t, err)
		assert.Len(t, after, len(fds), "image file left open")
	})

	t.Run("TooSmall", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "small.img")
		err := FormatCard(path, "SMALL", testLimits, 512, 1024)
		assert.True(t, errors.Is(err, ErrImageTooSmall))

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
}
