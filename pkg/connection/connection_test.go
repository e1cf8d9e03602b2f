package connection

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/hal/virtual"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/layout"
)

func newMasterProducedInstance(t *testing.T) (*sercos3.Instance, *virtual.Registers) {
	t.Helper()
	regs := virtual.New(8192, 8192)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP4
	inst.Connections = append(inst.Connections, sercos3.Connection{
		Index:          1,
		Producer:       sercos3.ParticipantRef{Kind: sercos3.ParticipantMaster},
		ProducerConfig: sercos3.Configuration{Active: true, IsProducerSide: true},
		Direction:      sercos3.MDT,
		TelegramNumber: 0,
		ByteOffset:     0,
		Length:         4,
	})
	inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{})
	require.True(t, layout.Build(inst).Ok())
	return inst, regs
}

func TestSetProducerStateLifecycle(t *testing.T) {
	inst, _ := newMasterProducedInstance(t)

	require.True(t, SetProducerState(inst, 1, sercos3.ProducerReady).Ok())
	state, rc := GetConnectionState(inst, 1)
	require.True(t, rc.Ok())
	require.Equal(t, uint8(sercos3.ProducerReady), state)

	require.True(t, SetProducerState(inst, 1, sercos3.ProducerStopping).Ok())
	state, _ = GetConnectionState(inst, 1)
	require.Equal(t, uint8(sercos3.ProducerStopping), state)
}

func TestSetProducerStateRejectsWrongPhase(t *testing.T) {
	inst, _ := newMasterProducedInstance(t)
	inst.Phase = sercos3.CP3
	rc := SetProducerState(inst, 1, sercos3.ProducerReady)
	require.Equal(t, sercos3.ReturnWrongPhase, rc)
}

func TestSetConnectionDataWritesPayloadAndAdvancesState(t *testing.T) {
	inst, regs := newMasterProducedInstance(t)
	require.True(t, SetProducerState(inst, 1, sercos3.ProducerReady).Ok())

	payload := []byte{0xDE, 0xAD}
	require.True(t, SetConnectionData(inst, 1, payload, 0).Ok())

	state, _ := GetConnectionState(inst, 1)
	require.Equal(t, uint8(sercos3.ProducerProducing), state)

	cp := inst.Layout.Connections[1]
	var got [4]byte
	regs.ReadTxRAM(inst.Priv.UsableTxBuffer, cp.TxOffsets[inst.Priv.UsableTxBuffer], got[:])
	cCon := binary.LittleEndian.Uint16(got[0:2])
	require.NotEqual(t, uint16(0), cCon&sercos3.CConProducerReady)
	require.Equal(t, payload, got[2:4])
}

func TestSetConnectionDataRejectsOversizedPayload(t *testing.T) {
	inst, _ := newMasterProducedInstance(t)
	require.True(t, SetProducerState(inst, 1, sercos3.ProducerReady).Ok())
	rc := SetConnectionData(inst, 1, make([]byte, 64), 0)
	require.Equal(t, sercos3.ReturnBufferTooSmall, rc)
}

func TestMarkProductionDowngradesProducingToWaiting(t *testing.T) {
	inst, _ := newMasterProducedInstance(t)
	require.True(t, SetProducerState(inst, 1, sercos3.ProducerReady).Ok())
	require.True(t, SetConnectionData(inst, 1, nil, 0).Ok())

	MarkProduction(inst)
	require.Equal(t, sercos3.ProducerWaiting, inst.ConnRuntime[1].State)
}

func newSlaveProducedInstance(t *testing.T) (*sercos3.Instance, *virtual.Registers) {
	t.Helper()
	regs := virtual.New(8192, 8192)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP4
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())
	inst.Connections = append(inst.Connections, sercos3.Connection{
		Index:                1,
		Producer:             sercos3.ParticipantRef{Kind: sercos3.ParticipantSlave, SlaveIndex: 1},
		ProducerConfig:       sercos3.Configuration{Active: true},
		ConsumerConfigs:      []sercos3.Configuration{{Active: true, Monitoring: sercos3.MonitoringClockSynchronous}},
		Direction:            sercos3.AT,
		TelegramNumber:       0,
		ByteOffset:           0,
		Length:               2,
		AllowedMissThreshold: 1,
	})
	inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{})
	require.True(t, layout.Build(inst).Ok())
	return inst, regs
}

func writeCCon(regs *virtual.Registers, port sercos3.Port, bufSel uint8, off uint32, cCon uint16) {
	var word [2]byte
	binary.LittleEndian.PutUint16(word[:], cCon)
	regs.WriteRxRAM(port, bufSel, off, word[:])
}

func TestEvaluateConsumersTransitionsToConsuming(t *testing.T) {
	inst, regs := newSlaveProducedInstance(t)
	inst.Slaves.Slaves[1].ValidThisCycle = true
	regs.SetRxBufferValid(true, true)
	regs.SetValidTelegramsRegister(1)

	cp := inst.Layout.Connections[1]
	writeCCon(regs, sercos3.Port1, 0, cp.RxOffsets[0][0], sercos3.CConProducerReady)

	EvaluateConsumers(inst)
	require.Equal(t, sercos3.ConsumerWaiting, inst.ConnRuntime[1].ConsState)

	writeCCon(regs, sercos3.Port1, 0, cp.RxOffsets[0][0], sercos3.CConProducerReady|1)
	EvaluateConsumers(inst)
	require.Equal(t, sercos3.ConsumerConsuming, inst.ConnRuntime[1].ConsState)
}

func TestGetConnectionDataRequiresGetConnectionStateThisCycle(t *testing.T) {
	inst, regs := newSlaveProducedInstance(t)
	inst.Slaves.Slaves[1].ValidThisCycle = true
	regs.SetRxBufferValid(true, true)
	regs.SetValidTelegramsRegister(1)

	cp := inst.Layout.Connections[1]
	writeCCon(regs, sercos3.Port1, 0, cp.RxOffsets[0][0], sercos3.CConProducerReady|1)
	EvaluateConsumers(inst)

	out := make([]byte, 2)
	rc := GetConnectionData(inst, 1, out)
	require.Equal(t, sercos3.ReturnConnectionDataInvalid, rc, "EvaluateConsumers alone must not satisfy the read-state precondition")

	_, rc = GetConnectionState(inst, 1)
	require.True(t, rc.Ok())
	rc = GetConnectionData(inst, 1, out)
	require.True(t, rc.Ok())
}
