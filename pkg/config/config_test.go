package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

func newTestInstance(t *testing.T) *sercos3.Instance {
	t.Helper()
	inst := sercos3.NewInstance(nil, nil)
	_, rc := inst.Slaves.AddSlave(5, sercos3.Port1)
	require.True(t, rc.Ok())
	_, rc = inst.Slaves.AddSlave(7, sercos3.Port1)
	require.True(t, rc.Ok())
	return inst
}

func addMasterProducedConnection(inst *sercos3.Instance, appID uint16) {
	inst.Connections = append(inst.Connections, sercos3.Connection{
		Index:           uint32(len(inst.Connections)),
		Producer:        sercos3.ParticipantRef{Kind: sercos3.ParticipantMaster},
		ProducerConfig:  sercos3.Configuration{Active: true, IsProducerSide: true, Idns: []uint32{0x00700010}},
		Consumers:       []sercos3.ParticipantRef{{Kind: sercos3.ParticipantSlave, SlaveIndex: 1}, {Kind: sercos3.ParticipantSlave, SlaveIndex: 2}},
		ConsumerConfigs: []sercos3.Configuration{{Active: true}, {Active: true}},
		RtBitsProducer:  sercos3.RtBitBinding{N: 1, Bits: [4]sercos3.RtBit{{Idn: 0x00700010, BitPosition: 3}}},
		Direction:       sercos3.MDT,
		TelegramNumber:  0,
		ByteOffset:      0,
		Length:          4,
		CycleTime:       time.Millisecond,
		ApplicationID:   appID,
		Name:            "AxisCommand",
	})
	inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{})
}

func TestEncodeEmptyConfigurationIsHeaderOnly(t *testing.T) {
	inst := sercos3.NewInstance(nil, nil)
	buf := make([]byte, 64)
	n, rc := Encode(inst, 0, true, buf)
	require.True(t, rc.Ok())
	require.Equal(t, headerLength, n)

	rc = Decode(inst, buf[:n])
	require.True(t, rc.Ok())
	require.Len(t, inst.Connections, 1) // unchanged, only the reserved slot
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inst := newTestInstance(t)
	addMasterProducedConnection(inst, 1)

	buf := make([]byte, 4096)
	n, rc := Encode(inst, 0, true, buf)
	require.True(t, rc.Ok())
	require.Greater(t, n, headerLength)

	target := sercos3.NewInstance(nil, nil)
	_, rc = target.Slaves.AddSlave(5, sercos3.Port1)
	require.True(t, rc.Ok())
	_, rc = target.Slaves.AddSlave(7, sercos3.Port1)
	require.True(t, rc.Ok())

	rc = Decode(target, buf[:n])
	require.True(t, rc.Ok())
	require.Len(t, target.Connections, 2)

	got := target.Connections[1]
	require.True(t, got.Producer.IsMaster())
	require.Equal(t, sercos3.MDT, got.Direction)
	require.Equal(t, uint32(4), got.Length)
	require.Equal(t, uint16(1), got.ApplicationID)
	require.Equal(t, "AxisCommand", got.Name)
	require.Len(t, got.Consumers, 2)
	require.Equal(t, 1, got.Consumers[0].SlaveIndex)
	require.Equal(t, 2, got.Consumers[1].SlaveIndex)
	require.True(t, got.ProducerConfig.Active)
	require.Equal(t, []uint32{0x00700010}, got.ProducerConfig.Idns)
	require.Equal(t, 1, got.RtBitsProducer.N)
	require.Equal(t, uint32(0x00700010), got.RtBitsProducer.Bits[0].Idn)
	require.Equal(t, uint8(3), got.RtBitsProducer.Bits[0].BitPosition)
}

func TestEncodeBufferTooSmallReportsRequiredLengthWithoutPartialWrite(t *testing.T) {
	inst := newTestInstance(t)
	addMasterProducedConnection(inst, 1)
	addMasterProducedConnection(inst, 2)
	addMasterProducedConnection(inst, 3)

	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xAA
	}
	n, rc := Encode(inst, 0, true, buf)
	require.Equal(t, sercos3.ReturnBufferTooSmall, rc)
	require.Greater(t, n, 64)
	require.Equal(t, uint16(0), getU16(buf[0:2]))
	for i := headerLength; i < len(buf); i++ {
		require.Equal(t, byte(0xAA), buf[i], "byte %d past the header must be untouched", i)
	}
}

func TestEncodeFiltersByApplicationID(t *testing.T) {
	inst := newTestInstance(t)
	addMasterProducedConnection(inst, 1)
	addMasterProducedConnection(inst, 2)

	buf := make([]byte, 4096)
	n, rc := Encode(inst, 1, true, buf)
	require.True(t, rc.Ok())

	target := newTestInstance(t)
	require.True(t, Decode(target, buf[:n]).Ok())
	require.Len(t, target.Connections, 2)
	require.Equal(t, uint16(1), target.Connections[1].ApplicationID)
}

func TestEncodeNegativeFilterExcludesMatchingAppID(t *testing.T) {
	inst := newTestInstance(t)
	addMasterProducedConnection(inst, 1)
	addMasterProducedConnection(inst, 2)

	buf := make([]byte, 4096)
	n, rc := Encode(inst, 1, false, buf)
	require.True(t, rc.Ok())

	target := newTestInstance(t)
	require.True(t, Decode(target, buf[:n]).Ok())
	require.Len(t, target.Connections, 2)
	require.Equal(t, uint16(2), target.Connections[1].ApplicationID)
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	inst := newTestInstance(t)
	buf := make([]byte, headerLength)
	rc := Decode(inst, buf)
	require.Equal(t, sercos3.ReturnNoBinConfig, rc)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	inst := newTestInstance(t)
	buf := make([]byte, headerLength)
	putU16(buf[0:], uint16(headerLength))
	putU16(buf[2:], uint16(headerLength))
	copy(buf[4:10], headerMagic[:])
	putU16(buf[10:12], 0x0200)
	rc := Decode(inst, buf)
	require.Equal(t, sercos3.ReturnWrongBinConfigVersion, rc)
}

func TestDecodeRejectsUnknownSlaveAddress(t *testing.T) {
	inst := newTestInstance(t)
	addMasterProducedConnection(inst, 1)
	buf := make([]byte, 4096)
	n, rc := Encode(inst, 0, true, buf)
	require.True(t, rc.Ok())

	target := sercos3.NewInstance(nil, nil) // no slaves projected at all
	_, rc = target.Slaves.AddSlave(5, sercos3.Port1)
	require.True(t, rc.Ok())
	// slave 7 deliberately missing

	rc = Decode(target, buf[:n])
	require.Equal(t, sercos3.ReturnWrongSlaveAddress, rc)
	require.Len(t, target.Connections, 1, "failed decode must not mutate the instance")
}

func TestDecodeDedupsSharedConfiguration(t *testing.T) {
	inst := newTestInstance(t)
	addMasterProducedConnection(inst, 1)
	addMasterProducedConnection(inst, 1) // same app-id, same producer config shape

	buf := make([]byte, 4096)
	n, rc := Encode(inst, 0, true, buf)
	require.True(t, rc.Ok())

	// Both connections share the same ProducerConfig value, so the encoder
	// must have written exactly one Configurations-table entry for them
	// (plus the rt-bits entry, also shared).
	e := &encoder{inst: inst}
	require.True(t, e.addConnection(1).Ok())
	require.True(t, e.addConnection(2).Ok())
	require.Len(t, e.cfgKeys, 1)
	require.Len(t, e.rtbKeys, 1)

	target := newTestInstance(t)
	require.True(t, Decode(target, buf[:n]).Ok())
	require.Len(t, target.Connections, 3)
}
