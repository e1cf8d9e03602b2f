// Package config implements the binary connection-configuration codec
// (§4.8): a length-prefixed, little-endian, 4-byte-aligned wire format that
// transports the live connection graph — connections, producers, consumer
// lists, consumers, configurations, RT-bit bindings, and the optional
// slave-setup/parameter tables — between masters or to/from a commissioning
// tool.
package config

import "encoding/binary"

// magic bytes for the list header and each table's 4-byte tag.
var (
	headerMagic  = [6]byte{'C', 'S', 'M', 'C', 'f', 'g'}
	endOfTable   = [4]byte{'~', '^', '~', '^'}
	terminator   = [8]byte{'~', '^', '~', '^', 'e', 'N', 'D', 'E'}
	magicConn    = [4]byte{'C', 'n', 'n', 'c'}
	magicProd    = [4]byte{'P', 'r', 'd', 'c'}
	magicConsLst = [4]byte{'C', 'n', 'L', 's'}
	magicCons    = [4]byte{'C', 'n', 's', 'm'}
	magicCfg     = [4]byte{'C', 'n', 'f', 'g'}
	magicRTBt    = [4]byte{'R', 'T', 'B', 't'}
	magicSlSt    = [4]byte{'S', 'l', 'S', 't'}
	magicStPL    = [4]byte{'S', 't', 'P', 'L'}
	magicPrmt    = [4]byte{'P', 'r', 'm', 't'}
)

const (
	binConfigVersion = 0x0101
	// headerLength is the byte length of actualLength(2) + maxLength(2) +
	// magic(6) + version(2), matching CSMD_LIST_HEADER_LEN from the
	// original parser (the magic carries "CSMCfg" rather than the fuller
	// "CSMCfg_bin" so the 12-byte total is preserved).
	headerLength    = 12
	nameFieldLength = 30
)

// align4 rounds n up to the next multiple of 4.
func align4(n int) int { return (n + 3) &^ 3 }

func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getU16(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }
func getU32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
