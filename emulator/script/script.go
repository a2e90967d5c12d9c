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

// Package script runs line oriented SPI transaction scripts.
//
// Each line names a device followed by the bytes to shift out:
//
//	# read the flash device id
//	flash: 9F 00 00 00
//	card:  40 00 00 00 00 95 FF*8
//
// A byte may be followed by *N to repeat it N times. Everything after a #
// is ignored. Every line is one transaction with chip-select held low.
package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andreas-jonsson/virtualspi/emulator/spi"
	"github.com/sirupsen/logrus"
)

const maxRepeat = 0xFFFF

var (
	ErrSyntax = errors.New("expected <device>: <bytes>")
	ErrByte   = errors.New("invalid byte")
	ErrRepeat = errors.New("invalid repeat count")
)

type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("script: line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

type Step struct {
	Line   int
	Device string
	MOSI   []byte
}

type Script []Step

type Result struct {
	Step
	MISO []byte
}

func Parse(r io.Reader) (Script, error) {
	var (
		s  Script
		ln int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		ln++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}

		step, err := parseLine(line)
		if err != nil {
			return nil, &SyntaxError{Line: ln, Err: err}
		}
		step.Line = ln
		s = append(s, step)
	}
	return s, scanner.Err()
}

func parseLine(line string) (Step, error) {
	name, data, ok := strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return Step{}, ErrSyntax
	}

	var mosi []byte
	for _, tok := range strings.Fields(data) {
		b, n, err := parseToken(tok)
		if err != nil {
			return Step{}, err
		}
		for i := 0; i < n; i++ {
			mosi = append(mosi, b)
		}
	}
	if len(mosi) == 0 {
		return Step{}, ErrSyntax
	}
	return Step{Device: name, MOSI: mosi}, nil
}

func parseToken(tok string) (byte, int, error) {
	hex, rep, hasRep := strings.Cut(tok, "*")

	v, err := strconv.ParseUint(hex, 16, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w %q", ErrByte, hex)
	}
	if !hasRep {
		return byte(v), 1, nil
	}

	n, err := strconv.Atoi(rep)
	if err != nil || n < 1 || n > maxRepeat {
		return 0, 0, fmt.Errorf("%w %q", ErrRepeat, rep)
	}
	return byte(v), n, nil
}

// Run executes every step in order and stops at the first device that is not
// installed on the bus.
func (s Script) Run(b *spi.Bus, log logrus.FieldLogger) ([]Result, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	res := make([]Result, 0, len(s))
	for _, step := range s {
		miso, err := b.Transaction(step.Device, step.MOSI)
		if err != nil {
			return res, fmt.Errorf("script: line %d: %w", step.Line, err)
		}
		log.WithFields(logrus.Fields{"device": step.Device, "line": step.Line, "bytes": len(miso)}).Debug("transaction")
		res = append(res, Result{Step: step, MISO: miso})
	}
	return res, nil
}

// WriteTranscript prints each transaction as a pair of lines, bytes sent
// marked with > and bytes received marked with <.
func WriteTranscript(w io.Writer, res []Result) error {
	width := 0
	for _, r := range res {
		if len(r.Device) > width {
			width = len(r.Device)
		}
	}

	for _, r := range res {
		if _, err := fmt.Fprintf(w, "%-*s > % X\n%-*s < % X\n", width, r.Device, r.MOSI, width, r.Device, r.MISO); err != nil {
			return err
		}
	}
	return nil
}
