package layout

import sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"

// slaveBucket is one telegram's worth of projected slaves, in scan order.
type slaveBucket struct {
	indices []int
}

// packSlaves distributes active slave indices across up to
// sercos3.MaxTelegramsPerDirection telegrams, filling each telegram up to
// maxPerTelegram slaves before moving to the next. It returns one bucket
// per telegram (some may be empty) and false if there are more slaves than
// the available telegrams can carry.
func packSlaves(active []int, maxPerTelegram int) ([sercos3.MaxTelegramsPerDirection]slaveBucket, bool) {
	var buckets [sercos3.MaxTelegramsPerDirection]slaveBucket
	if maxPerTelegram <= 0 {
		return buckets, len(active) == 0
	}
	t := 0
	for _, idx := range active {
		for t < sercos3.MaxTelegramsPerDirection && len(buckets[t].indices) >= maxPerTelegram {
			t++
		}
		if t >= sercos3.MaxTelegramsPerDirection {
			return buckets, false
		}
		buckets[t].indices = append(buckets[t].indices, idx)
	}
	return buckets, true
}

// maxSlavesPerTelegram returns how many slaves' worth of bytesPerSlave fit
// in one telegram alongside reserved bytes.
func maxSlavesPerTelegram(bytesPerSlave, reserved uint32) int {
	if bytesPerSlave == 0 {
		return sercos3.MaxSlaves
	}
	avail := sercos3.MaxTelegramDataLength - reserved
	return int(avail / bytesPerSlave)
}
