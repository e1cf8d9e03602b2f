// Package layout implements the Sercos III telegram-layout builder: on
// every phase up-transition it (re)builds the Rx/Tx descriptor tables,
// buffer base pointers, and per-slave/per-connection offset tables that the
// cyclic engine and its sub-components resolve data through.
package layout

import (
	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// direction-agnostic telegram content, computed before any offset
// bookkeeping, so the same assembly code can build Rx and Tx.
type telegramContent struct {
	enabled   bool
	hasHP     bool
	efLen     uint32
	svcSlaves int // number of 6-byte SVC containers
	rtdLen    uint32
	ccLen     uint32
	hasFCS    bool
	slaves    []int    // CP1/CP2: slaves whose C-DEV/S-DEV live in this telegram's RTD
	conns     []uint32 // CP3/CP4: connection indices assigned to this telegram
}

// Build (re)constructs inst.Layout for inst.Phase. It must be called on
// every phase up-transition (CP0→CP1, CP1→CP2, CP2→CP3, CP3→CP4).
func Build(inst *sercos3.Instance) sercos3.ReturnCode {
	var rxContent, txContent [sercos3.MaxTelegramsPerDirection]telegramContent

	switch inst.Phase {
	case sercos3.CP0:
		rxContent[0] = telegramContent{enabled: true, rtdLen: uint32(sercos3.MaxSlaves)*2 + 2, hasFCS: true}
		txContent[0] = telegramContent{enabled: true, rtdLen: sercos3.MinTelegramDataLength, hasFCS: true}
	case sercos3.CP1, sercos3.CP2:
		buildDeviceContent(inst, &rxContent, &txContent)
	case sercos3.CP3, sercos3.CP4:
		buildConfiguredContent(inst, &rxContent, &txContent)
	default:
		return sercos3.ReturnWrongPhase
	}

	rxResult, rc := assemble(rxContent, sercos3.AT)
	if rc != sercos3.ReturnOK {
		return rc
	}
	txResult, rc := assemble(txContent, sercos3.MDT)
	if rc != sercos3.ReturnOK {
		return rc
	}

	tables := &sercos3.LayoutTables{Phase: inst.Phase}
	tables.RxTelegrams = rxResult.telegrams
	tables.TxTelegrams = txResult.telegrams

	if rc := placeRAM(inst, rxResult, txResult, tables); rc != sercos3.ReturnOK {
		return rc
	}

	resolveSlavePointers(inst, rxContent, txContent, rxResult, txResult, tables)
	if inst.Phase.HasConnections() || inst.Phase == sercos3.CP3 {
		resolveConnectionPointers(inst, rxContent, txContent, rxResult, txResult, tables)
	}

	inst.Layout = tables
	return sercos3.ReturnOK
}

type assembled struct {
	telegrams   [sercos3.MaxTelegramsPerDirection]sercos3.TelegramLayout
	svcOffset   [sercos3.MaxTelegramsPerDirection]uint32 // SVC block offset within the SVC region
	rtdBase     [sercos3.MaxTelegramsPerDirection]uint32 // RTD block base, relative to one buffer slot
	ccBase      [sercos3.MaxTelegramsPerDirection]uint32 // CC block base, relative to the port-relative write buffer
	dataStride  uint32                                   // per-buffer-slot stride covering HP+EF+CC+RTD across all telegrams
	svcTotal    uint32
	descRecords int
}

// assemble lays out the descriptor sequence of every enabled telegram in
// content, in the fixed region order of spec §4.2: HP, EF (MDT0 only),
// SVC, CC (AT only), RTD, FCS.
func assemble(content [sercos3.MaxTelegramsPerDirection]telegramContent, dir sercos3.TelegramDirection) (assembled, sercos3.ReturnCode) {
	var out assembled
	svcCursor := uint32(0)
	dataCursor := uint32(0)
	// The port-relative write buffer's first HotPlugFieldLength bytes are
	// reserved for the MDT0/AT0 hot-plug field (written directly by
	// pkg/hotplug); CC connections are packed after it.
	ccCursor := uint32(sercos3.HotPlugFieldLength)
	descOffset := 0

	for i, c := range content {
		if !c.enabled {
			continue
		}
		a := &telegramAssembly{}
		if c.hasHP {
			a.addBlock(sercos3.DescPortRelativeStart, sercos3.DescPortRelativeEnd, sercos3.HotPlugFieldLength)
		}
		if c.efLen > 0 {
			a.addBlock(sercos3.DescPortRelativeDataFieldDelayStart, sercos3.DescPortRelativeDataFieldDelayEnd, c.efLen)
		}
		out.svcOffset[i] = svcCursor
		if c.svcSlaves > 0 {
			svcLen := uint32(c.svcSlaves) * 6
			a.addBlock(sercos3.DescServiceChannelDataStart, sercos3.DescServiceChannelDataEnd, svcLen)
			svcCursor += sercos3.AlignUp(svcLen, sercos3.LongAlignment)
		}
		if c.ccLen > 0 {
			out.ccBase[i] = ccCursor
			a.addBlock(sercos3.DescPortRelativeCCStart, sercos3.DescPortRelativeCCEnd, c.ccLen)
			ccCursor += sercos3.AlignUp(c.ccLen, sercos3.LongAlignment)
		}
		out.rtdBase[i] = dataCursor
		if c.rtdLen > 0 {
			a.addBlock(sercos3.DescRealtimeDataStart, sercos3.DescRealtimeDataEnd, c.rtdLen)
		}
		if c.hasFCS {
			a.addMarker(sercos3.DescFcsPosition)
		}

		// The hardware pads every telegram up to the Ethernet minimum
		// before it is counted against the supported length range; only
		// a telegram whose configured content already exceeds the
		// maximum is a real configuration error.
		if a.offset < sercos3.MinTelegramDataLength {
			a.offset = sercos3.MinTelegramDataLength
		}
		if a.offset > sercos3.MaxTelegramDataLength {
			if dir == sercos3.MDT {
				return out, sercos3.ReturnFaultyMdtLength
			}
			return out, sercos3.ReturnFaultyAtLength
		}

		out.telegrams[i] = a.finish(uint16(descOffset))
		descOffset += len(a.descs) * 4
		out.descRecords += len(a.descs)

		dataCursor += sercos3.AlignUp(c.hpLenOr(0)+c.ccLen+c.rtdLen, sercos3.LongAlignment)
	}
	out.svcTotal = svcCursor
	out.dataStride = dataCursor
	return out, sercos3.ReturnOK
}

func (c telegramContent) hpLenOr(v uint32) uint32 {
	if c.hasHP {
		return sercos3.HotPlugFieldLength
	}
	return v
}

// placeRAM resolves the buffer-base pointer lists for both directions and
// checks for RAM overflow, per spec §4.2's numeric semantics: buffer bases
// are rounded up to the hardware RAM segment size at the end of the build.
func placeRAM(inst *sercos3.Instance, rx, tx assembled, tables *sercos3.LayoutTables) sercos3.ReturnCode {
	const segment = sercos3.LongAlignment

	rxSvcBase := uint32(0)
	rxDataBase := sercos3.AlignUp(rx.svcTotal, segment)
	stride := sercos3.AlignUp(rx.dataStride, segment)
	totalRx := sercos3.AlignUp(rxDataBase+uint32(sercos3.MaxBufferSets)*stride+stride /*port-relative CC area*/, segment)
	if totalRx > inst.Regs.RxRAMSize() {
		return sercos3.ReturnInsufficientRxRam
	}
	tables.RxBases.Port1SVC = rxSvcBase
	tables.RxBases.Port2SVC = rxSvcBase
	for i := 0; i < sercos3.MaxBufferSets; i++ {
		tables.RxBases.Port1Data[i] = rxDataBase + uint32(i)*stride
		tables.RxBases.Port2Data[i] = rxDataBase + uint32(i)*stride
	}
	tables.RxBases.Port1RelativeWriteTx = rxDataBase + uint32(sercos3.MaxBufferSets)*stride
	tables.RxBases.Port2RelativeWriteTx = tables.RxBases.Port1RelativeWriteTx

	txStride := sercos3.AlignUp(tx.dataStride, segment)
	txDataBase := sercos3.AlignUp(tx.svcTotal, segment)
	totalTx := sercos3.AlignUp(txDataBase+uint32(sercos3.MaxBufferSets)*txStride+txStride, segment)
	if totalTx > inst.Regs.TxRAMSize() {
		return sercos3.ReturnInsufficientTxRam
	}
	tables.TxBases.Port1SVC = 0
	tables.TxBases.Port2SVC = 0
	for i := 0; i < sercos3.MaxBufferSets; i++ {
		tables.TxBases.Port1Data[i] = txDataBase + uint32(i)*txStride
		tables.TxBases.Port2Data[i] = txDataBase + uint32(i)*txStride
	}
	tables.TxBases.Port1RelativeWriteTx = txDataBase + uint32(sercos3.MaxBufferSets)*txStride
	tables.TxBases.Port2RelativeWriteTx = tables.TxBases.Port1RelativeWriteTx
	return sercos3.ReturnOK
}
