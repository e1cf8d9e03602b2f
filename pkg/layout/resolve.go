package layout

import sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"

// resolveSlavePointers fills tables.Slaves and tables.LastSlaveIndexPerAT
// from the per-telegram slave buckets the content builders assigned. rx
// carries the AT-direction assembly (S-DEV, read by the master), tx the
// MDT-direction assembly (C-DEV, written by the master).
func resolveSlavePointers(inst *sercos3.Instance, rxContent, txContent [sercos3.MaxTelegramsPerDirection]telegramContent, rx, tx assembled, tables *sercos3.LayoutTables) {
	tables.Slaves = make([]sercos3.SlavePointers, len(inst.Slaves.Slaves))

	cumulative := 0
	for t := 0; t < sercos3.MaxTelegramsPerDirection; t++ {
		atSlaves := rxContent[t].slaves
		for pos, slaveIdx := range atSlaves {
			sp := &tables.Slaves[slaveIdx]
			sp.TelegramNumber = uint8(t)
			offset := rx.rtdBase[t] + uint32(pos)*2
			for buf := 0; buf < sercos3.MaxBufferSets; buf++ {
				sp.SDevRx[0][buf] = tables.RxBases.Port1Data[buf] + offset
				sp.SDevRx[1][buf] = tables.RxBases.Port2Data[buf] + offset
			}
		}
		cumulative += len(atSlaves)
		tables.LastSlaveIndexPerAT[t] = cumulative

		mdtSlaves := txContent[t].slaves
		for pos, slaveIdx := range mdtSlaves {
			sp := &tables.Slaves[slaveIdx]
			offset := tx.rtdBase[t] + uint32(pos)*2
			for buf := 0; buf < sercos3.MaxBufferSets; buf++ {
				sp.CDevTx[buf] = tables.TxBases.Port1Data[buf] + offset
			}
		}
	}
}

// resolveConnectionPointers fills tables.Connections with the buffer-
// relative pointers used to copy each active connection's data in and out
// of the resolved RTD regions, one entry per Instance.Connections index.
func resolveConnectionPointers(inst *sercos3.Instance, rxContent, txContent [sercos3.MaxTelegramsPerDirection]telegramContent, rx, tx assembled, tables *sercos3.LayoutTables) {
	tables.Connections = make([]sercos3.ConnectionPointers, len(inst.Connections))

	for idx := 1; idx < len(inst.Connections); idx++ {
		c := &inst.Connections[idx]
		if !c.ProducerConfig.Active {
			continue
		}
		n := c.TelegramNumber
		if n >= sercos3.MaxTelegramsPerDirection {
			continue
		}
		cp := &tables.Connections[idx]
		switch {
		case c.Direction == sercos3.AT && c.IsCC():
			// CC data is not duplicated per buffer set: the port-relative
			// write buffer is a single shared region per port.
			offset := rx.ccBase[n] + c.ByteOffset
			for buf := 0; buf < sercos3.MaxBufferSets; buf++ {
				cp.RxOffsets[0][buf] = tables.RxBases.Port1RelativeWriteTx + offset
				cp.RxOffsets[1][buf] = tables.RxBases.Port2RelativeWriteTx + offset
			}
		case c.Direction == sercos3.AT:
			offset := rx.rtdBase[n] + c.ByteOffset
			for buf := 0; buf < sercos3.MaxBufferSets; buf++ {
				cp.RxOffsets[0][buf] = tables.RxBases.Port1Data[buf] + offset
				cp.RxOffsets[1][buf] = tables.RxBases.Port2Data[buf] + offset
			}
		case c.Direction == sercos3.MDT:
			offset := tx.rtdBase[n] + c.ByteOffset
			for buf := 0; buf < sercos3.MaxBufferSets; buf++ {
				cp.TxOffsets[buf] = tables.TxBases.Port1Data[buf] + offset
			}
		}
	}
}
