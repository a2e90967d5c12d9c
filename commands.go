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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andreas-jonsson/virtualspi/emulator/peripheral"
	"github.com/andreas-jonsson/virtualspi/emulator/peripheral/at45db"
	"github.com/andreas-jonsson/virtualspi/emulator/peripheral/sdcard"
	"github.com/andreas-jonsson/virtualspi/emulator/script"
	"github.com/andreas-jonsson/virtualspi/emulator/spi"
	"github.com/andreas-jonsson/virtualspi/emulator/storage"
	"github.com/andreas-jonsson/virtualspi/emulator/trace"
	"github.com/andreas-jonsson/virtualspi/platform"
	"github.com/andreas-jonsson/virtualspi/version"
	"github.com/gdamore/tcell"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRunCmd(opt *options) *cobra.Command {
	var tracePath string

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a transaction script against the flash and the card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.OutOrStdout(), opt, args[0], tracePath)
		},
	}
	cmd.Flags().StringVar(&tracePath, "trace", "", "Record every transaction to a pcap file")
	return cmd
}

func runScript(out io.Writer, opt *options, path, tracePath string) error {
	fp, err := appFs.Open(path)
	if err != nil {
		return err
	}
	s, err := script.Parse(fp)
	fp.Close()
	if err != nil {
		return err
	}

	flash := &at45db.Device{}
	if err := loadFlash(flash, opt.flash); err != nil {
		return err
	}

	store, err := openCard(opt, opt.card)
	if err != nil {
		return err
	}

	bus := &spi.Bus{}
	devices := []peripheral.Peripheral{flash, sdcard.New(store)}
	defer peripheral.CloseAll(devices...)

	if tracePath == "" {
		err = peripheral.InstallAll(bus, devices...)
	} else {
		var tf afero.File
		if tf, err = appFs.Create(tracePath); err != nil {
			return err
		}
		defer tf.Close()

		var tw *trace.Writer
		if tw, err = trace.NewWriter(tf); err != nil {
			return err
		}
		for i, p := range devices {
			if _, err = bus.InstallDevice(p.Name(), tw.Wrap(byte(i), p)); err != nil {
				break
			}
		}
		defer func() {
			logrus.WithField("frames", tw.Frames()).Info("trace written to ", tracePath)
		}()
	}
	if err != nil {
		return err
	}

	res, runErr := s.Run(bus, logrus.StandardLogger())
	if err := script.WriteTranscript(out, res); err != nil {
		return err
	}
	if n := flash.Faults(); n > 0 {
		logrus.WithField("faults", n).Warn("flash cursor overflow during run")
	}
	if runErr != nil {
		return runErr
	}
	return saveFlash(flash, opt.flash)
}

func loadFlash(m *at45db.Device, path string) error {
	fp, err := appFs.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithField("image", path).Debug("no flash image, starting erased")
		return nil
	}
	if err != nil {
		return err
	}
	defer fp.Close()
	return m.LoadImage(fp)
}

func saveFlash(m *at45db.Device, path string) error {
	fp, err := appFs.Create(path)
	if err != nil {
		return err
	}
	if err := m.SaveImage(fp); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// openCard binds a PageStore to the image. Closing the store closes the file.
func openCard(opt *options, path string) (*storage.PageStore, error) {
	store, _, err := storage.Open(appFs, path, sdcard.Limits, sdcard.BlockSize, opt.pages)
	if err != nil {
		return nil, fmt.Errorf("card image %s: %w", path, err)
	}
	return store, nil
}

func newGenCardCmd(opt *options) *cobra.Command {
	var (
		fat32 bool
		label string
	)

	cmd := &cobra.Command{
		Use:   "gen-card [image]",
		Short: "Create a blank SD card image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opt.card
			if len(args) > 0 {
				path = args[0]
			}

			if fat32 {
				err := storage.FormatCard(path, label, sdcard.Limits, sdcard.BlockSize, opt.pages)
				if err != nil {
					return err
				}
			} else if err := storage.CreateBlank(appFs, path, sdcard.Limits, sdcard.BlockSize, opt.pages); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d blocks of %d bytes\n", path, opt.pages, sdcard.BlockSize)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fat32, "fat32", false, "Partition the image and format it as FAT32")
	cmd.Flags().StringVar(&label, "label", "VIRTUALSPI", "FAT32 volume label")
	return cmd
}

// openSource opens an image for reading page by page. The returned count is
// the number of pages worth inspecting.
func openSource(opt *options, path string, flash bool) (storage.Pager, int, func() error, error) {
	if flash {
		m := &at45db.Device{}
		if err := loadFlash(m, path); err != nil {
			return nil, 0, nil, err
		}
		return m, m.PageCount(), func() error { return nil }, nil
	}

	store, err := openCard(opt, path)
	if err != nil {
		return nil, 0, nil, err
	}
	n, err := store.Used()
	if err != nil {
		store.Close()
		return nil, 0, nil, err
	}
	return store, n, store.Close, nil
}

func imageArg(opt *options, args []string, flash bool) string {
	switch {
	case len(args) > 0:
		return args[0]
	case flash:
		return opt.flash
	}
	return opt.card
}

func newViewCmd(opt *options) *cobra.Command {
	var (
		flash bool
		page  int
	)

	cmd := &cobra.Command{
		Use:   "view [image]",
		Short: "Browse an image page by page in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := imageArg(opt, args, flash)
			src, _, closer, err := openSource(opt, path, flash)
			if err != nil {
				return err
			}
			defer closer()

			s, err := tcell.NewScreen()
			if err != nil {
				return err
			}
			if err := s.Init(); err != nil {
				return err
			}
			defer s.Fini()

			v := platform.NewViewer(s, src)
			v.Title = filepath.Base(path)
			v.SetPage(page)
			return v.Run()
		},
	}
	cmd.Flags().BoolVar(&flash, "flash", false, "Treat the image as a serial flash image")
	cmd.Flags().IntVar(&page, "page", 0, "First page to show")
	return cmd
}

func newInspectCmd(opt *options) *cobra.Command {
	var flash bool

	cmd := &cobra.Command{
		Use:   "inspect [image]",
		Short: "List the digest of every non-empty page",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, n, closer, err := openSource(opt, imageArg(opt, args, flash), flash)
			if err != nil {
				return err
			}
			defer closer()

			digests, err := storage.Digests(src, n)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, d := range digests {
				fmt.Fprintf(w, "%8d  %016x\n", d.Page, d.Digest)
			}
			fmt.Fprintf(w, "%d of %d pages in use\n", len(digests), src.PageCount())
			return nil
		},
	}
	cmd.Flags().BoolVar(&flash, "flash", false, "Treat the image as a serial flash image")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			printLogo(w)
			if version.Hash != "" {
				fmt.Fprintln(w, version.Hash)
			}
		},
	}
}
