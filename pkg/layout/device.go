package layout

import sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"

// buildDeviceContent lays out CP1/CP2: up to 4 MDT/AT pairs, each carrying
// an SVC container and a device-control (MDT) or device-status (AT) word
// per projected slave assigned to that telegram.
func buildDeviceContent(inst *sercos3.Instance, rx, tx *[sercos3.MaxTelegramsPerDirection]telegramContent) {
	active := inst.Slaves.ActiveIndices()
	maxPer := maxSlavesPerTelegram(8, 0) // 6 bytes SVC + 2 bytes RTD per slave
	buckets, _ := packSlaves(active, maxPer)

	// MDT0/AT0 always exist, even with no projected slaves yet (CP1 before
	// any slave has advanced); telegrams 1-3 only appear once they carry
	// a bucket of slaves.
	for i, b := range buckets {
		if i > 0 && len(b.indices) == 0 {
			continue
		}
		rx[i] = telegramContent{
			enabled:   true,
			svcSlaves: len(b.indices),
			rtdLen:    uint32(len(b.indices)) * 2,
			hasFCS:    true,
			slaves:    b.indices,
		}
		tx[i] = telegramContent{
			enabled:   true,
			svcSlaves: len(b.indices),
			rtdLen:    uint32(len(b.indices)) * 2,
			hasFCS:    true,
			slaves:    b.indices,
		}
	}
}
