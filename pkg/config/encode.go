package config

import (
	"reflect"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// Encode writes the live connection graph into buf per §4.8. appID == 0
// always matches every connection ("ALL"); otherwise positive selects
// connections whose ApplicationID equals appID and negative selects every
// connection whose ApplicationID differs.
//
// Encode always reports the exact number of bytes the encoding requires.
// If buf is too small, it writes only the list header (actual length
// field set to 0, so a reader sees an empty-but-valid list) and returns
// ReturnBufferTooSmall; no table bytes are ever written past len(buf).
func Encode(inst *sercos3.Instance, appID uint16, positive bool, buf []byte) (int, sercos3.ReturnCode) {
	marked := make([]int, 0, len(inst.Connections))
	for i := 1; i < len(inst.Connections); i++ {
		c := &inst.Connections[i]
		match := appID == 0 || (positive == (c.ApplicationID == appID))
		if match {
			marked = append(marked, i)
		}
	}

	for _, i := range marked {
		c := &inst.Connections[i]
		if len(c.Consumers) == 0 {
			return 0, sercos3.ReturnNoConsumer
		}
	}

	e := &encoder{inst: inst}
	for _, i := range marked {
		if rc := e.addConnection(i); !rc.Ok() {
			return 0, rc
		}
	}

	var body []byte
	if len(e.connRecords) > 0 {
		body = writeTable(body, magicConn, e.connRecords)
		body = append(body, endOfTable[:]...)
	}
	if len(e.prodRecords) > 0 {
		body = writeTable(body, magicProd, e.prodRecords)
		body = append(body, endOfTable[:]...)
	}
	if len(e.consLstRecords) > 0 {
		body = writeTable(body, magicConsLst, e.consLstRecords)
		body = append(body, endOfTable[:]...)
	}
	if len(e.consRecords) > 0 {
		body = writeTable(body, magicCons, e.consRecords)
		body = append(body, endOfTable[:]...)
	}
	if len(e.cfgRecords) > 0 {
		body = writeTable(body, magicCfg, e.cfgRecords)
		body = append(body, endOfTable[:]...)
	}
	if len(e.rtbRecords) > 0 {
		body = writeTable(body, magicRTBt, e.rtbRecords)
		body = append(body, endOfTable[:]...)
	}

	total := headerLength + len(body)
	if len(body) > 0 {
		total += len(terminator) - len(endOfTable) // last marker upgraded to the longer terminator
	}

	if len(buf) < total {
		if len(buf) >= headerLength {
			writeHeader(buf, 0, uint16(len(buf)))
		}
		return total, sercos3.ReturnBufferTooSmall
	}

	writeHeader(buf, uint16(total), uint16(len(buf)))
	n := headerLength
	if len(body) > 0 {
		// body currently ends in a plain 4-byte marker; replace it with the
		// 8-byte terminator.
		n += copy(buf[n:], body[:len(body)-len(endOfTable)])
		n += copy(buf[n:], terminator[:])
	}
	return total, sercos3.ReturnOK
}

func writeHeader(buf []byte, actualLength, maxLength uint16) {
	putU16(buf[0:], actualLength)
	putU16(buf[2:], maxLength)
	copy(buf[4:10], headerMagic[:])
	putU16(buf[10:12], binConfigVersion)
}

// encoder accumulates deduplicated keyed tables while walking marked
// connections in insertion order.
type encoder struct {
	inst *sercos3.Instance

	connRecords    [][]byte
	prodRecords    [][]byte
	consLstRecords [][]byte
	consRecords    [][]byte
	cfgRecords     [][]byte
	rtbRecords     [][]byte

	cfgKeys []sercos3.Configuration
	rtbKeys []sercos3.RtBitBinding

	nextConsumerListKey uint16
}

func (e *encoder) addConnection(i int) sercos3.ReturnCode {
	c := &e.inst.Connections[i]

	prodCfgKey := e.configKey(c.ProducerConfig)
	prodRTBKey := e.rtBitsKey(c.RtBitsProducer)
	prodKey := uint16(i) // one producer per connection; key it by connection index
	e.prodRecords = append(e.prodRecords, encodeProducerRecord(producerRecord{
		producerKey:        prodKey,
		sercosAddress:      participantAddress(e.inst, c.Producer),
		cycleTimeLong:      uint32(c.CycleTime.Nanoseconds()),
		connectionInstance: uint16(i),
		tag:                0,
		configKey:          prodCfgKey,
		rtBitsKey:          prodRTBKey,
	}))

	e.nextConsumerListKey++
	listKey := e.nextConsumerListKey
	consumerKeys := make([]uint16, len(c.Consumers))
	for k, cons := range c.Consumers {
		consKey := uint16(1000 + i*16 + k) // disjoint from producer-key space
		consumerKeys[k] = consKey
		cfg := sercos3.Configuration{}
		if k < len(c.ConsumerConfigs) {
			cfg = c.ConsumerConfigs[k]
		}
		var rtb sercos3.RtBitBinding
		if k < len(c.RtBitsConsumers) {
			rtb = c.RtBitsConsumers[k]
		}
		e.consRecords = append(e.consRecords, encodeConsumerRecord(consumerRecord{
			consumerKey:        consKey,
			sercosAddress:      participantAddress(e.inst, cons),
			cycleTimeLong:      uint32(c.CycleTime.Nanoseconds()),
			connectionInstance: uint16(i),
			allowedLosses:      c.AllowedMissThreshold,
			configKey:          e.configKey(cfg),
			rtBitsKey:          e.rtBitsKey(rtb),
		}))
	}
	e.consLstRecords = append(e.consLstRecords, encodeConsumerListRecord(listKey, consumerKeys))

	e.connRecords = append(e.connRecords, encodeConnRecord(connRecord{
		key:             uint16(i),
		connNumber:      uint16(c.Index),
		direction:       uint8(c.Direction),
		telegramNumber:  c.TelegramNumber,
		byteOffset:      uint16(c.ByteOffset),
		length:          uint16(c.Length),
		appID:           c.ApplicationID,
		producerKey:     prodKey,
		consumerListKey: listKey,
		name:            c.Name,
	}))
	return sercos3.ReturnOK
}

func (e *encoder) configKey(cfg sercos3.Configuration) uint16 {
	if !cfg.Active && len(cfg.Idns) == 0 && cfg.Capability == 0 {
		return 0
	}
	for i, existing := range e.cfgKeys {
		if reflect.DeepEqual(existing, cfg) {
			return uint16(i + 1)
		}
	}
	e.cfgKeys = append(e.cfgKeys, cfg)
	key := uint16(len(e.cfgKeys))
	e.cfgRecords = append(e.cfgRecords, encodeConfigRecord(key, cfg.IsProducerSide, uint8(cfg.Monitoring), cfg.Capability, cfg.Idns))
	return key
}

func (e *encoder) rtBitsKey(rtb sercos3.RtBitBinding) uint16 {
	if rtb.N == 0 {
		return 0
	}
	for i, existing := range e.rtbKeys {
		if reflect.DeepEqual(existing, rtb) {
			return uint16(i + 1)
		}
	}
	e.rtbKeys = append(e.rtbKeys, rtb)
	key := uint16(len(e.rtbKeys))
	var rec rtBitsRecord
	rec.key = key
	rec.count = rtb.N
	for i := 0; i < rtb.N && i < 4; i++ {
		rec.idns[i] = rtb.Bits[i].Idn
		rec.bits[i] = rtb.Bits[i].BitPosition
	}
	e.rtbRecords = append(e.rtbRecords, encodeRTBitsRecord(rec))
	return key
}

func participantAddress(inst *sercos3.Instance, p sercos3.ParticipantRef) uint16 {
	if p.IsMaster() {
		return 0
	}
	if p.SlaveIndex > 0 && p.SlaveIndex < len(inst.Slaves.Slaves) {
		return inst.Slaves.Slaves[p.SlaveIndex].Address
	}
	return 0
}
