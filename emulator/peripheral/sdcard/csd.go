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

package sdcard

// CSD is the version 2.0 card specific data register.
type CSD struct {
	Structure        byte
	TAAC             byte
	NSAC             byte
	TranSpeed        byte
	CCC              uint16
	ReadBlLen        byte
	ReadBlPartial    byte
	WriteBlkMisalign byte
	ReadBlkMisalign  byte
	DSRImp           byte
	CSize            uint32
	EraseBlkEn       byte
	SectorSize       byte
	WPGrpSize        byte
	WPGrpEnable      byte
	R2WFactor        byte
	WriteBlLen       byte
	WriteBlPartial   byte
	FileFormatGrp    byte
	Copy             byte
	PermWriteProtect byte
	TmpWriteProtect  byte
	FileFormat       byte
	CRC              byte
}

// Capacity reported to the guest, in 512 byte blocks.
const csdBlocks = 1024 * 30

func DefaultCSD() CSD {
	return CSD{
		Structure:  1,
		TAAC:       0x0E,
		TranSpeed:  0x32,
		CCC:        0b010110110101,
		ReadBlLen:  9,
		CSize:      csdBlocks/1024 - 1,
		EraseBlkEn: 1,
		SectorSize: 0x7F,
		R2WFactor:  2,
		WriteBlLen: 9,
	}
}

// Bytes packs the register MSB first. Bytes 10 and 11 keep the bit placement
// guest drivers were written against.
func (c CSD) Bytes() [16]byte {
	var d [16]byte

	d[0] = c.Structure << 6
	d[1] = c.TAAC
	d[2] = c.NSAC
	d[3] = c.TranSpeed
	d[4] = byte(c.CCC >> 4)
	d[5] = byte(c.CCC<<4) | c.ReadBlLen&0xF
	d[6] = (c.ReadBlPartial&1)<<7 | (c.WriteBlkMisalign&1)<<6 | (c.ReadBlkMisalign&1)<<5 | (c.DSRImp&1)<<4
	d[7] = byte(c.CSize>>16) & 0x3F
	d[8] = byte(c.CSize >> 8)
	d[9] = byte(c.CSize)
	d[10] = (c.SectorSize<<1)&0x3F | (c.EraseBlkEn&1)<<5
	d[11] = c.SectorSize<<7 | c.WPGrpSize&0x7F
	d[12] = (c.WriteBlLen>>2)&3 | (c.R2WFactor&7)<<2 | (c.WPGrpEnable&1)<<7
	d[13] = (c.WriteBlPartial&1)<<5 | (c.WriteBlLen&3)<<6
	d[14] = (c.FileFormat&3)<<2 | (c.TmpWriteProtect&1)<<4 | (c.PermWriteProtect&1)<<5 | (c.Copy&1)<<6 | (c.FileFormatGrp&1)<<7
	d[15] = c.CRC<<1 | 1
	return d
}
