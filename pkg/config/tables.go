package config

import sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"

// writeTable appends one table's framing (magic, record count, 2-byte pad)
// and concatenated records to out.
func writeTable(out []byte, magic [4]byte, records [][]byte) []byte {
	out = append(out, magic[:]...)
	var countPad [4]byte
	putU16(countPad[0:], uint16(len(records)))
	out = append(out, countPad[:]...)
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

// tableScanner walks the tables of a parsed buffer in the fixed canonical
// order the encoder emits them in (skipping any table the encoder omitted
// because it was empty), consuming the end-of-table marker between tables
// and recognizing the terminator that closes the list.
type tableScanner struct {
	data []byte
	pos  int
}

func newTableScanner(data []byte, start int) *tableScanner {
	return &tableScanner{data: data, pos: start}
}

// atTerminator reports whether the full 8-byte terminator starts at pos.
func (s *tableScanner) atTerminator() bool {
	return s.pos+8 <= len(s.data) && string(s.data[s.pos:s.pos+8]) == string(terminator[:])
}

// consumeMarker skips a standalone end-of-table marker, if present.
func (s *tableScanner) consumeMarker() {
	if s.pos+4 <= len(s.data) && string(s.data[s.pos:s.pos+4]) == string(endOfTable[:]) {
		s.pos += 4
	}
}

// next reports the magic at pos and whether it matches want; it does not
// advance pos.
func (s *tableScanner) peek(want [4]byte) bool {
	return s.pos+4 <= len(s.data) && string(s.data[s.pos:s.pos+4]) == string(want[:])
}

// readHeader reads a table's magic+count header at pos and advances past
// it, returning the declared record count and the offset of the first
// record byte.
func (s *tableScanner) readHeader() (count int, bodyOffset int, rc sercos3.ReturnCode) {
	if s.pos+4 > len(s.data) {
		return 0, 0, sercos3.ReturnWrongBinConfigFormat
	}
	count = int(getU16(s.data[s.pos+4:]))
	bodyOffset = s.pos + 8
	return count, bodyOffset, sercos3.ReturnOK
}
