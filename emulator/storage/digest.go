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
	"github.com/cespare/xxhash/v2"
)

type PageDigest struct {
	Page   int
	Digest uint64
}

func Digest(p []byte) uint64 {
	return xxhash.Sum64(p)
}

// Digests hashes the first n pages of p and returns the ones that are not all
// zero.
func Digests(p Pager, n int) ([]PageDigest, error) {
	var (
		res  []PageDigest
		buf  = make([]byte, p.PageSize())
		zero = Digest(make([]byte, p.PageSize()))
	)

	for i := 0; i < n && i < p.PageCount(); i++ {
		for j := range buf {
			buf[j] = 0
		}
		if err := p.ReadPage(i, buf); err != nil {
			return res, err
		}
		if d := Digest(buf); d != zero {
			res = append(res, PageDigest{i, d})
		}
	}
	return res, nil
}
