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
	"fmt"
	"os"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/spf13/afero"
)

const (
	sectorSize     = 512
	partitionStart = 2048

	// FAT32 needs at least 65525 clusters.
	minFAT32Size = 64 * 1024 * 1024
)

var ErrImageTooSmall = errors.New("storage: image too small for FAT32")

// CreateBlank creates a zero filled image covering every page.
func CreateBlank(fs afero.Fs, name string, l Limits, pageSize, pageCount int) error {
	if err := l.validate(pageSize, pageCount); err != nil {
		return err
	}
	fp, err := fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer fp.Close()
	return fp.Truncate(int64(pageSize) * int64(pageCount))
}

// FormatCard creates a card image at path with an MBR and a single FAT32
// partition. The path must not exist. go-diskfs works on real files, so unlike
// CreateBlank this does not go through an afero.Fs.
func FormatCard(path, label string, l Limits, pageSize, pageCount int) error {
	if err := l.validate(pageSize, pageCount); err != nil {
		return err
	}
	if pageSize != sectorSize {
		return fmt.Errorf("%w: FAT32 images need %d byte pages", ErrInvalidPageSize, sectorSize)
	}

	size := int64(pageSize) * int64(pageCount)
	if size < minFAT32Size {
		return fmt.Errorf("%w: %d bytes", ErrImageTooSmall, size)
	}

	dsk, err := diskfs.Create(path, size, diskfs.SectorSizeDefault)
	if err != nil {
		return err
	}
	if err := formatFAT32(dsk, label, pageCount); err != nil {
		dsk.Close()
		os.Remove(path)
		return err
	}
	return dsk.Close()
}

func formatFAT32(dsk *disk.Disk, label string, pageCount int) error {
	table := &mbr.Table{
		LogicalSectorSize:  sectorSize,
		PhysicalSectorSize: sectorSize,
		Partitions: []*mbr.Partition{
			{
				Bootable: false,
				Type:     mbr.Fat32LBA,
				Start:    partitionStart,
				Size:     uint32(pageCount - partitionStart),
			},
		},
	}
	if err := dsk.Partition(table); err != nil {
		return err
	}

	fatfs, err := dsk.CreateFilesystem(disk.FilesystemSpec{
		Partition:   1,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: label,
	})
	if err != nil {
		return err
	}
	return fatfs.Close()
}
