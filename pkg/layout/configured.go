package layout

import sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"

// buildConfiguredContent lays out CP3/CP4: each active connection's
// real-time data at its configured telegram and byte offset, the service
// channel container for every still-projected slave, and (CP3 only) the
// hot-plug field in MDT0/AT0.
func buildConfiguredContent(inst *sercos3.Instance, rx, tx *[sercos3.MaxTelegramsPerDirection]telegramContent) {
	active := inst.Slaves.ActiveIndices()
	maxPer := maxSlavesPerTelegram(8, 0)
	buckets, _ := packSlaves(active, maxPer)

	var rxLen, txLen, ccLen [sercos3.MaxTelegramsPerDirection]uint32
	var rxConns, txConns, ccConns [sercos3.MaxTelegramsPerDirection][]uint32

	for idx := 1; idx < len(inst.Connections); idx++ {
		c := &inst.Connections[idx]
		if !c.ProducerConfig.Active {
			continue
		}
		n := c.TelegramNumber
		if n >= sercos3.MaxTelegramsPerDirection {
			continue
		}
		end := c.ByteOffset + c.Length
		switch {
		case c.Direction == sercos3.MDT:
			if end > txLen[n] {
				txLen[n] = end
			}
			txConns[n] = append(txConns[n], c.Index)
		case c.IsCC():
			// slave-to-slave data transits the port-relative write buffer,
			// never an ordinary RTD slot.
			if end > ccLen[n] {
				ccLen[n] = end
			}
			ccConns[n] = append(ccConns[n], c.Index)
		default: // AT, master-consumed
			if end > rxLen[n] {
				rxLen[n] = end
			}
			rxConns[n] = append(rxConns[n], c.Index)
		}
	}

	for i := 0; i < sercos3.MaxTelegramsPerDirection; i++ {
		haveConns := len(rxConns[i]) > 0 || len(txConns[i]) > 0 || len(ccConns[i]) > 0
		haveSlaves := len(buckets[i].indices) > 0
		if i > 0 && !haveConns && !haveSlaves {
			continue
		}
		hasHP := i == 0 && inst.Phase == sercos3.CP3 && inst.HotPlug.Enabled
		var efLen uint32
		if i == 0 {
			efLen = sercos3.SercosTimeFieldLength
		}
		rx[i] = telegramContent{
			enabled:   true,
			hasHP:     hasHP,
			svcSlaves: len(buckets[i].indices),
			rtdLen:    rxLen[i],
			ccLen:     ccLen[i],
			hasFCS:    true,
			slaves:    buckets[i].indices,
			conns:     rxConns[i],
		}
		tx[i] = telegramContent{
			enabled:   true,
			hasHP:     hasHP,
			efLen:     efLen,
			svcSlaves: len(buckets[i].indices),
			rtdLen:    txLen[i],
			hasFCS:    true,
			slaves:    buckets[i].indices,
			conns:     txConns[i],
		}
	}
}
