package config

// Fixed-size and variable-size record encodings for each table, per the
// field lists of the spec. Exact bit-level packings not given numerically
// by the field lists (telegram-assignment, connection-setup) are this
// package's own concrete choice; see DESIGN.md.

const (
	connRecordLen = 48 // key,connNumber,direction,telegramNumber,byteOffset,length,appID,producerKey,consumerListKey,name[30],pad[2]
	prodRecordLen = 16 // producerKey,sercosAddress,cycleTimeLong,connInstance,tag,configKey,rtBitsKey
	consRecordLen = 16 // consumerKey,sercosAddress,cycleTimeLong,connInstance,allowedLosses,pad,configKey,rtBitsKey
	rtbRecordLen  = 24 // rtKey,dummy,idnLong[4],bitInIdn[4]
	slstRecordLen = 4  // slaveAddress,paramsListKey
)

type connRecord struct {
	key             uint16
	connNumber      uint16
	direction       uint8
	telegramNumber  uint8
	byteOffset      uint16
	length          uint16
	appID           uint16
	producerKey     uint16
	consumerListKey uint16
	name            string
}

func encodeConnRecord(r connRecord) []byte {
	b := make([]byte, connRecordLen)
	putU16(b[0:], r.key)
	putU16(b[2:], r.connNumber)
	b[4] = r.direction
	b[5] = r.telegramNumber
	putU16(b[6:], r.byteOffset)
	putU16(b[8:], r.length)
	putU16(b[10:], r.appID)
	putU16(b[12:], r.producerKey)
	putU16(b[14:], r.consumerListKey)
	copy(b[16:16+nameFieldLength], []byte(r.name))
	return b
}

func decodeConnRecord(b []byte) connRecord {
	var r connRecord
	r.key = getU16(b[0:])
	r.connNumber = getU16(b[2:])
	r.direction = b[4]
	r.telegramNumber = b[5]
	r.byteOffset = getU16(b[6:])
	r.length = getU16(b[8:])
	r.appID = getU16(b[10:])
	r.producerKey = getU16(b[12:])
	r.consumerListKey = getU16(b[14:])
	nameBytes := b[16 : 16+nameFieldLength]
	end := len(nameBytes)
	for end > 0 && nameBytes[end-1] == 0 {
		end--
	}
	r.name = string(nameBytes[:end])
	return r
}

type producerRecord struct {
	producerKey        uint16
	sercosAddress      uint16
	cycleTimeLong      uint32
	connectionInstance uint16
	tag                uint16
	configKey          uint16
	rtBitsKey          uint16
}

func encodeProducerRecord(r producerRecord) []byte {
	b := make([]byte, prodRecordLen)
	putU16(b[0:], r.producerKey)
	putU16(b[2:], r.sercosAddress)
	putU32(b[4:], r.cycleTimeLong)
	putU16(b[8:], r.connectionInstance)
	putU16(b[10:], r.tag)
	putU16(b[12:], r.configKey)
	putU16(b[14:], r.rtBitsKey)
	return b
}

func decodeProducerRecord(b []byte) producerRecord {
	return producerRecord{
		producerKey:        getU16(b[0:]),
		sercosAddress:      getU16(b[2:]),
		cycleTimeLong:      getU32(b[4:]),
		connectionInstance: getU16(b[8:]),
		tag:                getU16(b[10:]),
		configKey:          getU16(b[12:]),
		rtBitsKey:          getU16(b[14:]),
	}
}

type consumerRecord struct {
	consumerKey        uint16
	sercosAddress      uint16
	cycleTimeLong      uint32
	connectionInstance uint16
	allowedLosses      uint8
	configKey          uint16
	rtBitsKey          uint16
}

func encodeConsumerRecord(r consumerRecord) []byte {
	b := make([]byte, consRecordLen)
	putU16(b[0:], r.consumerKey)
	putU16(b[2:], r.sercosAddress)
	putU32(b[4:], r.cycleTimeLong)
	putU16(b[8:], r.connectionInstance)
	b[10] = r.allowedLosses
	putU16(b[12:], r.configKey)
	putU16(b[14:], r.rtBitsKey)
	return b
}

func decodeConsumerRecord(b []byte) consumerRecord {
	return consumerRecord{
		consumerKey:        getU16(b[0:]),
		sercosAddress:      getU16(b[2:]),
		cycleTimeLong:      getU32(b[4:]),
		connectionInstance: getU16(b[8:]),
		allowedLosses:      b[10],
		configKey:          getU16(b[12:]),
		rtBitsKey:          getU16(b[14:]),
	}
}

// encodeConsumerListRecord/decodeConsumerListRecord: consumerListKey, n,
// consumerKey x n, [dummy u16 if n is odd].
func encodeConsumerListRecord(key uint16, consumerKeys []uint16) []byte {
	n := len(consumerKeys)
	size := 4 + 2*n
	if n%2 != 0 {
		size += 2
	}
	b := make([]byte, size)
	putU16(b[0:], key)
	putU16(b[2:], uint16(n))
	for i, k := range consumerKeys {
		putU16(b[4+2*i:], k)
	}
	return b
}

func decodeConsumerListRecord(b []byte) (key uint16, consumerKeys []uint16, consumed int) {
	key = getU16(b[0:])
	n := int(getU16(b[2:]))
	consumerKeys = make([]uint16, n)
	for i := 0; i < n; i++ {
		consumerKeys[i] = getU16(b[4+2*i:])
	}
	consumed = 4 + 2*n
	if n%2 != 0 {
		consumed += 2
	}
	return
}

// encodeConfigRecord/decodeConfigRecord: configKey, connectionSetup (packed
// IsProducerSide|Monitoring), pad, capability, nIdns, idnLong x n.
func encodeConfigRecord(key uint16, isProducerSide bool, monitoring uint8, capability uint16, idns []uint32) []byte {
	n := len(idns)
	b := make([]byte, 8+4*n)
	putU16(b[0:], key)
	var setup uint8
	if isProducerSide {
		setup |= 0x01
	}
	setup |= (monitoring & 0x03) << 1
	b[2] = setup
	b[3] = 0
	putU16(b[4:], capability)
	putU16(b[6:], uint16(n))
	for i, idn := range idns {
		putU32(b[8+4*i:], idn)
	}
	return b
}

func decodeConfigRecord(b []byte) (key uint16, isProducerSide bool, monitoring uint8, capability uint16, idns []uint32, consumed int) {
	key = getU16(b[0:])
	setup := b[2]
	isProducerSide = setup&0x01 != 0
	monitoring = (setup >> 1) & 0x03
	capability = getU16(b[4:])
	n := int(getU16(b[6:]))
	idns = make([]uint32, n)
	for i := 0; i < n; i++ {
		idns[i] = getU32(b[8+4*i:])
	}
	consumed = 8 + 4*n
	return
}

type rtBitsRecord struct {
	key   uint16
	idns  [4]uint32
	bits  [4]uint8
	count int
}

func encodeRTBitsRecord(r rtBitsRecord) []byte {
	b := make([]byte, rtbRecordLen)
	putU16(b[0:], r.key)
	putU16(b[2:], 0)
	for i := 0; i < 4; i++ {
		putU32(b[4+4*i:], r.idns[i])
	}
	for i := 0; i < 4; i++ {
		b[20+i] = r.bits[i]
	}
	return b
}

func decodeRTBitsRecord(b []byte) rtBitsRecord {
	var r rtBitsRecord
	r.key = getU16(b[0:])
	for i := 0; i < 4; i++ {
		r.idns[i] = getU32(b[4+4*i:])
		if r.idns[i] != 0 {
			r.count = i + 1
		}
		r.bits[i] = b[20+i]
	}
	return r
}

func encodeSlaveSetupRecord(address, paramsListKey uint16) []byte {
	b := make([]byte, slstRecordLen)
	putU16(b[0:], address)
	putU16(b[2:], paramsListKey)
	return b
}

func decodeSlaveSetupRecord(b []byte) (address, paramsListKey uint16) {
	return getU16(b[0:]), getU16(b[2:])
}

// encodeParamListRecord/decodeParamListRecord: listKey, appID, n, pad,
// paramKey x n, [dummy if n odd].
func encodeParamListRecord(key, appID uint16, paramKeys []uint16) []byte {
	n := len(paramKeys)
	size := 8 + 2*n
	if n%2 != 0 {
		size += 2
	}
	b := make([]byte, size)
	putU16(b[0:], key)
	putU16(b[2:], appID)
	putU16(b[4:], uint16(n))
	for i, k := range paramKeys {
		putU16(b[8+2*i:], k)
	}
	return b
}

func decodeParamListRecord(b []byte) (key, appID uint16, paramKeys []uint16, consumed int) {
	key = getU16(b[0:])
	appID = getU16(b[2:])
	n := int(getU16(b[4:]))
	paramKeys = make([]uint16, n)
	for i := 0; i < n; i++ {
		paramKeys[i] = getU16(b[8+2*i:])
	}
	consumed = 8 + 2*n
	if n%2 != 0 {
		consumed += 2
	}
	return
}

// encodeParameterRecord/decodeParameterRecord: paramKey, length, idnLong,
// data[length] padded to 4 bytes.
func encodeParameterRecord(key uint16, idn uint32, data []byte) []byte {
	b := make([]byte, 8+align4(len(data)))
	putU16(b[0:], key)
	putU16(b[2:], uint16(len(data)))
	putU32(b[4:], idn)
	copy(b[8:], data)
	return b
}

func decodeParameterRecord(b []byte) (key uint16, idn uint32, data []byte, consumed int) {
	key = getU16(b[0:])
	length := int(getU16(b[2:]))
	idn = getU32(b[4:])
	data = append([]byte(nil), b[8:8+length]...)
	consumed = 8 + align4(length)
	return
}
