package layout

import sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"

// telegramAssembly accumulates the descriptor sequence and running
// frame-relative offset of one telegram under construction.
type telegramAssembly struct {
	offset uint32
	descs  []sercos3.Descriptor
}

// addBlock appends a Start descriptor at the current offset, advances by
// length, appends the matching End descriptor, then rounds the cursor up
// to the next long (4-byte) boundary, per spec §4.2's numeric semantics.
func (a *telegramAssembly) addBlock(start, end sercos3.DescriptorType, length uint32) (blockStart uint32) {
	blockStart = a.offset
	a.descs = append(a.descs, sercos3.Descriptor{Offset: uint16(a.offset), Type: start})
	a.offset += length
	a.descs = append(a.descs, sercos3.Descriptor{Offset: uint16(a.offset), Type: end})
	a.offset = sercos3.AlignUp(a.offset, sercos3.LongAlignment)
	return blockStart
}

// addMarker appends a zero-length descriptor (used for the FCS position)
// at the current offset.
func (a *telegramAssembly) addMarker(kind sercos3.DescriptorType) {
	a.descs = append(a.descs, sercos3.Descriptor{Offset: uint16(a.offset), Type: kind})
}

func (a *telegramAssembly) finish(indexTableOffset uint16) sercos3.TelegramLayout {
	return sercos3.TelegramLayout{
		Enabled:          true,
		IndexTableOffset: indexTableOffset,
		Descriptors:      a.descs,
		DataLength:       a.offset,
	}
}
