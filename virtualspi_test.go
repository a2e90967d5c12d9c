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

package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreas-jonsson/virtualspi/emulator/peripheral/at45db"
	"github.com/andreas-jonsson/virtualspi/emulator/script"
	"github.com/andreas-jonsson/virtualspi/emulator/storage"
	"github.com/andreas-jonsson/virtualspi/emulator/trace"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	old := appFs
	appFs = fs
	t.Cleanup(func() { appFs = old })
	return fs
}

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const writeBlockScript = `
# CMD24 block 0, wait, token, payload, CRC
card: 58 00 00 00 00 95 FF FF FE AA*512 FF FF FF
flash: 9F 00 00 00
`

const readBlockScript = `
card: 51 00 00 00 00 95 FF FF FF*514
`

func TestRun(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "write.txt", []byte(writeBlockScript), 0644))
	require.NoError(t, afero.WriteFile(fs, "read.txt", []byte(readBlockScript), 0644))

	out, err := execute(t, "run", "--pages", "1024", "--card", "c.img", "--flash", "f.img", "write.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "flash < 00 1F 26 00")
	assert.Contains(t, out, "card  < 00 00 00 00 00 00 00 00 00 00")

	fi, err := fs.Stat("f.img")
	require.NoError(t, err)
	assert.EqualValues(t, at45db.NumPages*at45db.PageSize, fi.Size())

	out, err = execute(t, "run", "--pages", "1024", "--card", "c.img", "--flash", "f.img", "read.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "card < 00 00 00 00 00 00 00 FE AA AA")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "AA AA FF FF"))
}

func TestRunTrace(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "s.txt", []byte(writeBlockScript), 0644))

	_, err := execute(t, "run", "--pages", "1024", "--card", "c.img", "--flash", "f.img", "--trace", "t.pcap", "s.txt")
	require.NoError(t, err)

	fp, err := fs.Open("t.pcap")
	require.NoError(t, err)
	defer fp.Close()

	txs, err := trace.ReadAll(fp)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, byte(1), txs[0].Device)
	assert.Len(t, txs[0].MOSI, 6+3+512+3)
	assert.Equal(t, byte(0), txs[1].Device)
}

func TestRunErrors(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "bad.txt", []byte("flash 9F"), 0644))
	require.NoError(t, afero.WriteFile(fs, "ok.txt", []byte("flash: 9F"), 0644))

	_, err := execute(t, "run", "missing.txt")
	assert.Error(t, err)

	_, err = execute(t, "run", "bad.txt")
	assert.ErrorIs(t, err, script.ErrSyntax)

	_, err = execute(t, "run", "--pages", "1000", "ok.txt")
	assert.ErrorIs(t, err, storage.ErrInvalidPageCount)
}

func TestGenCard(t *testing.T) {
	fs := memFs(t)

	out, err := execute(t, "gen-card", "--pages", "1024", "blank.img")
	require.NoError(t, err)
	assert.Equal(t, "blank.img: 1024 blocks of 512 bytes\n", out)

	fi, err := fs.Stat("blank.img")
	require.NoError(t, err)
	assert.EqualValues(t, 1024*512, fi.Size())

	_, err = execute(t, "gen-card", "--pages", "7", "blank.img")
	assert.ErrorIs(t, err, storage.ErrInvalidPageCount)
}

func TestGenCardFAT32(t *testing.T) {
	memFs(t)
	path := filepath.Join(t.TempDir(), "fat.img")

	_, err := execute(t, "gen-card", "--fat32", "--pages", "1024", path)
	assert.ErrorIs(t, err, storage.ErrImageTooSmall)
}

func TestInspect(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "s.txt", []byte(writeBlockScript), 0644))

	_, err := execute(t, "run", "--pages", "1024", "--card", "c.img", "--flash", "f.img", "s.txt")
	require.NoError(t, err)

	page := bytes.Repeat([]byte{0xAA}, 512)
	out, err := execute(t, "inspect", "--pages", "1024", "c.img")
	require.NoError(t, err)
	assert.Contains(t, out, "       0  ")
	assert.Contains(t, out, fmt.Sprintf("%016x", storage.Digest(page)))
	assert.Contains(t, out, "1 of 1024 pages in use")

	out, err = execute(t, "inspect", "--flash", "f.img")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 4096 pages in use")
}

func TestEnvironment(t *testing.T) {
	fs := memFs(t)
	t.Setenv(envCardImage, "env-card.img")

	_, err := execute(t, "gen-card", "--pages", "1024")
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "env-card.img")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "virtualspi v"))
}
