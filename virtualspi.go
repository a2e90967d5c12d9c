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
	"fmt"
	"io"
	"os"

	"github.com/andreas-jonsson/virtualspi/emulator/peripheral/sdcard"
	"github.com/andreas-jonsson/virtualspi/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var appFs = afero.NewOsFs()

const (
	envCardImage  = "VSPI_CARD_IMAGE"
	envFlashImage = "VSPI_FLASH_IMAGE"
)

func defaultPath(env, def string) string {
	if p, ok := os.LookupEnv(env); ok {
		return p
	}
	return def
}

type options struct {
	card    string
	flash   string
	pages   int
	verbose bool
}

func newRootCmd() *cobra.Command {
	opt := &options{}

	root := &cobra.Command{
		Use:           "virtualspi",
		Short:         "SPI serial flash and SD card emulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opt.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opt.card, "card", defaultPath(envCardImage, "card.img"), "SD card image (env "+envCardImage+")")
	pf.StringVar(&opt.flash, "flash", defaultPath(envFlashImage, "flash.img"), "Serial flash image (env "+envFlashImage+")")
	pf.IntVar(&opt.pages, "pages", sdcard.DefaultPageCount, "Number of 512 byte blocks on the card")
	pf.BoolVarP(&opt.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(opt),
		newGenCardCmd(opt),
		newViewCmd(opt),
		newInspectCmd(opt),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func printLogo(w io.Writer) {
	fmt.Fprintln(w, "virtualspi v"+version.Current.FullString())
	fmt.Fprintln(w, " ───────═════ "+version.Copyright+" ══════───────")
}
