package config

import (
	"bytes"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// maxIdnsPerConnection is this package's own concrete limit; the wire
// format itself carries no cap. Connection-instance caps come from
// inst.MaxConnForMaster/MaxConnForSlave.
const maxIdnsPerConnection = 8

const (
	maxSetupParameters     = 512
	maxSetupParameterLists = 128
	maxParamsPerList       = 64
	maxSlaveSetups         = sercos3.MaxSlaves
)

type decodedParam struct {
	idn  uint32
	data []byte
}

type decodedParamList struct {
	appID     uint16
	paramKeys []uint16
}

type decodedSlaveSetup struct {
	address       uint16
	paramsListKey uint16
}

type decodedConfig struct {
	isProducerSide bool
	monitoring     uint8
	capability     uint16
	idns           []uint32
}

type decodedRTB struct {
	rec rtBitsRecord
}

// decoder holds the raw key tables parsed out of one buffer, before any
// cross-table resolution or merge into the live instance.
type decoder struct {
	conns     []connRecord
	prods     map[uint16]producerRecord
	consLists map[uint16][]uint16
	cons      map[uint16]consumerRecord
	cfgs      map[uint16]decodedConfig
	rtbs      map[uint16]decodedRTB

	params     map[uint16]decodedParam
	paramLists map[uint16]decodedParamList
	setups     []decodedSlaveSetup
}

// Decode parses data as a binary configuration list (§4.8) and merges it
// into inst's live connection graph. On any error the instance is left
// exactly as it was found.
//
// Decode does not rebuild inst.Layout; callers must call layout.Build
// after a successful Decode before the next cyclic Handle.
func Decode(inst *sercos3.Instance, data []byte) sercos3.ReturnCode {
	if len(data) < headerLength {
		return sercos3.ReturnNoBinConfig
	}
	if !bytes.Equal(data[4:10], headerMagic[:]) {
		return sercos3.ReturnNoBinConfig
	}
	if getU16(data[10:12]) != binConfigVersion {
		return sercos3.ReturnWrongBinConfigVersion
	}
	actualLength := int(getU16(data[0:2]))
	if actualLength < headerLength || actualLength > len(data) {
		return sercos3.ReturnNoBinConfig
	}
	data = data[:actualLength]

	d := &decoder{
		prods:      map[uint16]producerRecord{},
		consLists:  map[uint16][]uint16{},
		cons:       map[uint16]consumerRecord{},
		cfgs:       map[uint16]decodedConfig{},
		rtbs:       map[uint16]decodedRTB{},
		params:     map[uint16]decodedParam{},
		paramLists: map[uint16]decodedParamList{},
	}
	if rc := d.scan(data[headerLength:]); !rc.Ok() {
		return rc
	}
	if rc := d.crossValidate(); !rc.Ok() {
		return rc
	}

	conns := make([]sercos3.Connection, 0, len(d.conns))
	for _, cr := range d.conns {
		conn, rc := d.buildConnection(inst, cr)
		if !rc.Ok() {
			return rc
		}
		conns = append(conns, conn)
	}

	snap := snapshot(inst)
	if rc := d.merge(inst, conns); !rc.Ok() {
		snap.restore(inst)
		return rc
	}
	if rc := d.mergeSetups(inst); !rc.Ok() {
		snap.restore(inst)
		return rc
	}
	return sercos3.ReturnOK
}

// snapshot captures every slice Decode can mutate, so a failure partway
// through merge/mergeSetups can be undone as a single rollback.
type instanceSnapshot struct {
	connections []sercos3.Connection
	connRuntime []sercos3.ConnectionRuntime
	params      []sercos3.SetupParameter
	lists       []sercos3.SetupParameterList
	setups      []sercos3.SlaveSetup
}

func snapshot(inst *sercos3.Instance) instanceSnapshot {
	return instanceSnapshot{
		connections: append([]sercos3.Connection(nil), inst.Connections...),
		connRuntime: append([]sercos3.ConnectionRuntime(nil), inst.ConnRuntime...),
		params:      append([]sercos3.SetupParameter(nil), inst.SetupParameters...),
		lists:       append([]sercos3.SetupParameterList(nil), inst.SetupLists...),
		setups:      append([]sercos3.SlaveSetup(nil), inst.SlaveSetups...),
	}
}

func (s instanceSnapshot) restore(inst *sercos3.Instance) {
	inst.Connections = s.connections
	inst.ConnRuntime = s.connRuntime
	inst.SetupParameters = s.params
	inst.SetupLists = s.lists
	inst.SlaveSetups = s.setups
}

// scan walks the table sequence starting right after the list header,
// dispatching on each table's magic. Any table may be absent.
func (d *decoder) scan(body []byte) sercos3.ReturnCode {
	s := newTableScanner(body, 0)
	for {
		if s.pos >= len(s.data) || s.atTerminator() {
			return sercos3.ReturnOK
		}
		switch {
		case s.peek(magicConn):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+connRecordLen > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				d.conns = append(d.conns, decodeConnRecord(s.data[off:off+connRecordLen]))
				off += connRecordLen
			}
			s.pos = off
		case s.peek(magicProd):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+prodRecordLen > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				rec := decodeProducerRecord(s.data[off : off+prodRecordLen])
				d.prods[rec.producerKey] = rec
				off += prodRecordLen
			}
			s.pos = off
		case s.peek(magicConsLst):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+4 > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				key, keys, consumed := decodeConsumerListRecord(s.data[off:])
				d.consLists[key] = keys
				off += consumed
			}
			s.pos = off
		case s.peek(magicCons):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+consRecordLen > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				rec := decodeConsumerRecord(s.data[off : off+consRecordLen])
				d.cons[rec.consumerKey] = rec
				off += consRecordLen
			}
			s.pos = off
		case s.peek(magicCfg):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+8 > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				key, isProdSide, mon, capability, idns, consumed := decodeConfigRecord(s.data[off:])
				if len(idns) > maxIdnsPerConnection {
					return sercos3.ReturnTooManyIdnForConn
				}
				d.cfgs[key] = decodedConfig{isProducerSide: isProdSide, monitoring: mon, capability: capability, idns: idns}
				off += consumed
			}
			s.pos = off
		case s.peek(magicRTBt):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+rtbRecordLen > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				rec := decodeRTBitsRecord(s.data[off : off+rtbRecordLen])
				d.rtbs[rec.key] = decodedRTB{rec: rec}
				off += rtbRecordLen
			}
			s.pos = off
		case s.peek(magicSlSt):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+slstRecordLen > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				address, listKey := decodeSlaveSetupRecord(s.data[off : off+slstRecordLen])
				d.setups = append(d.setups, decodedSlaveSetup{address: address, paramsListKey: listKey})
				off += slstRecordLen
			}
			s.pos = off
		case s.peek(magicStPL):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+8 > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				key, appID, paramKeys, consumed := decodeParamListRecord(s.data[off:])
				if len(paramKeys) > maxParamsPerList {
					return sercos3.ReturnTooManyParameterInList
				}
				d.paramLists[key] = decodedParamList{appID: appID, paramKeys: paramKeys}
				off += consumed
			}
			s.pos = off
		case s.peek(magicPrmt):
			count, off, rc := s.readHeader()
			if !rc.Ok() {
				return rc
			}
			for i := 0; i < count; i++ {
				if off+8 > len(s.data) {
					return sercos3.ReturnWrongBinConfigFormat
				}
				key, idn, data, consumed := decodeParameterRecord(s.data[off:])
				d.params[key] = decodedParam{idn: idn, data: data}
				off += consumed
			}
			s.pos = off
		default:
			return sercos3.ReturnWrongBinConfigFormat
		}
		s.consumeMarker()
	}
}

func (d *decoder) crossValidate() sercos3.ReturnCode {
	for _, cr := range d.conns {
		if _, ok := d.prods[cr.producerKey]; !ok {
			return sercos3.ReturnNoProducerKey
		}
		keys, ok := d.consLists[cr.consumerListKey]
		if !ok {
			return sercos3.ReturnNoConsumerListKey
		}
		if len(keys) == 0 {
			return sercos3.ReturnNoConsumer
		}
		for _, ck := range keys {
			if _, ok := d.cons[ck]; !ok {
				return sercos3.ReturnNoConsumerKey
			}
		}
	}
	for _, list := range d.paramLists {
		for _, pk := range list.paramKeys {
			if _, ok := d.params[pk]; !ok {
				return sercos3.ReturnNoSetupParameterKey
			}
		}
	}
	for _, su := range d.setups {
		if _, ok := d.paramLists[su.paramsListKey]; !ok {
			return sercos3.ReturnNoSetupListKey
		}
	}
	return sercos3.ReturnOK
}

func (d *decoder) resolveParticipant(inst *sercos3.Instance, address uint16) (sercos3.ParticipantRef, sercos3.ReturnCode) {
	if address == 0 {
		return sercos3.ParticipantRef{Kind: sercos3.ParticipantMaster}, sercos3.ReturnOK
	}
	for i := 1; i < len(inst.Slaves.Slaves); i++ {
		if inst.Slaves.Slaves[i].Address == address {
			return sercos3.ParticipantRef{Kind: sercos3.ParticipantSlave, SlaveIndex: i}, sercos3.ReturnOK
		}
	}
	return sercos3.ParticipantRef{}, sercos3.ReturnWrongSlaveAddress
}

func toConfiguration(cfg decodedConfig) sercos3.Configuration {
	return sercos3.Configuration{
		Active:         true,
		IsProducerSide: cfg.isProducerSide,
		Monitoring:     sercos3.MonitoringType(cfg.monitoring),
		Capability:     cfg.capability,
		Idns:           append([]uint32(nil), cfg.idns...),
	}
}

func toRTBitBinding(r rtBitsRecord) sercos3.RtBitBinding {
	var b sercos3.RtBitBinding
	b.N = r.count
	for i := 0; i < r.count && i < 4; i++ {
		b.Bits[i] = sercos3.RtBit{Idn: r.idns[i], BitPosition: r.bits[i]}
	}
	return b
}

func (d *decoder) buildConnection(inst *sercos3.Instance, cr connRecord) (sercos3.Connection, sercos3.ReturnCode) {
	prod := d.prods[cr.producerKey]
	producer, rc := d.resolveParticipant(inst, prod.sercosAddress)
	if !rc.Ok() {
		return sercos3.Connection{}, rc
	}

	var producerConfig sercos3.Configuration
	if cfg, ok := d.cfgs[prod.configKey]; ok {
		producerConfig = toConfiguration(cfg)
	}
	var producerRTB sercos3.RtBitBinding
	if rtb, ok := d.rtbs[prod.rtBitsKey]; ok {
		producerRTB = toRTBitBinding(rtb.rec)
	}

	consumerKeys := d.consLists[cr.consumerListKey]
	consumers := make([]sercos3.ParticipantRef, 0, len(consumerKeys))
	consumerConfigs := make([]sercos3.Configuration, 0, len(consumerKeys))
	consumerRTBs := make([]sercos3.RtBitBinding, 0, len(consumerKeys))
	var allowedMiss uint8
	for _, ck := range consumerKeys {
		cons := d.cons[ck]
		ref, rc := d.resolveParticipant(inst, cons.sercosAddress)
		if !rc.Ok() {
			return sercos3.Connection{}, rc
		}
		consumers = append(consumers, ref)
		if cfg, ok := d.cfgs[cons.configKey]; ok {
			consumerConfigs = append(consumerConfigs, toConfiguration(cfg))
		} else {
			consumerConfigs = append(consumerConfigs, sercos3.Configuration{})
		}
		if rtb, ok := d.rtbs[cons.rtBitsKey]; ok {
			consumerRTBs = append(consumerRTBs, toRTBitBinding(rtb.rec))
		} else {
			consumerRTBs = append(consumerRTBs, sercos3.RtBitBinding{})
		}
		allowedMiss = cons.allowedLosses
	}

	return sercos3.Connection{
		Index:                uint32(cr.connNumber),
		Producer:             producer,
		ProducerConfig:       producerConfig,
		RtBitsProducer:       producerRTB,
		Consumers:            consumers,
		ConsumerConfigs:      consumerConfigs,
		RtBitsConsumers:      consumerRTBs,
		Direction:            sercos3.TelegramDirection(cr.direction),
		TelegramNumber:       cr.telegramNumber,
		ByteOffset:           uint32(cr.byteOffset),
		Length:               uint32(cr.length),
		AllowedMissThreshold: allowedMiss,
		ApplicationID:        cr.appID,
		Name:                 cr.name,
	}, sercos3.ReturnOK
}

// merge clears existing connections whose app-id is present in the
// incoming file, then appends or reuses slots for every decoded
// connection. The caller is responsible for rolling inst back to its
// pre-call snapshot if merge returns an error.
func (d *decoder) merge(inst *sercos3.Instance, conns []sercos3.Connection) sercos3.ReturnCode {
	incomingAppIDs := map[uint16]bool{}
	for _, c := range conns {
		incomingAppIDs[c.ApplicationID] = true
	}

	// masterCount/slaveCount are seeded from slots that survive the clear
	// below; freeSlots lists the indices the clear vacated, to be reused
	// before any new slot is appended.
	masterCount, slaveCount := 0, 0
	for i := 1; i < len(inst.Connections); i++ {
		if inst.Connections[i].Producer.IsMaster() {
			masterCount++
		} else {
			slaveCount++
		}
	}

	freeSlots := make([]int, 0)
	for i := 1; i < len(inst.Connections); i++ {
		if !incomingAppIDs[inst.Connections[i].ApplicationID] {
			continue
		}
		if inst.Connections[i].Producer.IsMaster() {
			masterCount--
		} else {
			slaveCount--
		}
		inst.Connections[i] = sercos3.Connection{}
		inst.ConnRuntime[i] = sercos3.ConnectionRuntime{}
		freeSlots = append(freeSlots, i)
	}

	for _, conn := range conns {
		if conn.Producer.IsMaster() {
			if masterCount >= inst.MaxConnForMaster {
				return sercos3.ReturnTooManyConnForMaster
			}
			masterCount++
		} else {
			if slaveCount >= inst.MaxConnForSlave {
				return sercos3.ReturnTooManyConnForSlave
			}
			slaveCount++
		}

		if len(freeSlots) > 0 {
			idx := freeSlots[0]
			freeSlots = freeSlots[1:]
			inst.Connections[idx] = conn
			inst.ConnRuntime[idx] = sercos3.ConnectionRuntime{}
			continue
		}
		if len(inst.Connections) == 0 {
			inst.Connections = append(inst.Connections, sercos3.Connection{})
			inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{})
		}
		inst.Connections = append(inst.Connections, conn)
		inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{})
	}

	return sercos3.ReturnOK
}

// mergeSetups appends decoded slave-setup/param-list/parameter tables into
// the instance's commissioning data, resolving file-local keys to graph
// indices. Called after merge() has already committed the connection
// graph; the caller rolls back both on failure.
func (d *decoder) mergeSetups(inst *sercos3.Instance) sercos3.ReturnCode {
	if len(d.params) == 0 && len(d.paramLists) == 0 && len(d.setups) == 0 {
		return sercos3.ReturnOK
	}
	if len(inst.SetupParameters)+len(d.params) > maxSetupParameters {
		return sercos3.ReturnTooManySetupParameter
	}
	if len(inst.SetupLists)+len(d.paramLists) > maxSetupParameterLists {
		return sercos3.ReturnTooManySetupLists
	}
	if len(inst.SlaveSetups)+len(d.setups) > maxSlaveSetups {
		return sercos3.ReturnTooManySlaveSetup
	}

	refCount := map[uint16]int{}
	for _, list := range d.paramLists {
		for _, pk := range list.paramKeys {
			refCount[pk]++
		}
	}

	paramIndex := map[uint16]int{}
	for key, p := range d.params {
		inst.SetupParameters = append(inst.SetupParameters, sercos3.SetupParameter{
			Idn:      p.idn,
			Data:     append([]byte(nil), p.data...),
			RefCount: refCount[key],
		})
		paramIndex[key] = len(inst.SetupParameters) - 1
	}

	listIndex := map[uint16]int{}
	for key, list := range d.paramLists {
		indices := make([]int, 0, len(list.paramKeys))
		for _, pk := range list.paramKeys {
			indices = append(indices, paramIndex[pk])
		}
		inst.SetupLists = append(inst.SetupLists, sercos3.SetupParameterList{
			ApplicationID: list.appID,
			ParamIndices:  indices,
		})
		listIndex[key] = len(inst.SetupLists) - 1
	}

	for _, su := range d.setups {
		inst.SlaveSetups = append(inst.SlaveSetups, sercos3.SlaveSetup{
			Address:   su.address,
			ListIndex: listIndex[su.paramsListKey],
		})
	}
	return sercos3.ReturnOK
}
