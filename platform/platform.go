/*
Copyright (C) 2019-2020 Andreas T Jonsson

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package platform implements the terminal front-end used to inspect page images.
package platform

// PageSource is anything the viewer can page through. Both storage.PageStore and
// the serial flash device satisfy it.
type PageSource interface {
	PageSize() int
	PageCount() int
	ReadPage(page int, buf []byte) error
}

const bytesPerRow = 16

func rowsPerPage(pageSize int) int {
	return (pageSize + bytesPerRow - 1) / bytesPerRow
}
