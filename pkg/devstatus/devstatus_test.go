package devstatus

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/hal/virtual"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/layout"
)

func newTestInstance(t *testing.T) (*sercos3.Instance, *virtual.Registers) {
	t.Helper()
	regs := virtual.New(16*1024, 8*1024)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP1
	return inst, regs
}

func writeSDev(regs *virtual.Registers, port sercos3.Port, bufSel uint8, off uint32, sdev uint16) {
	var word [2]byte
	binary.LittleEndian.PutUint16(word[:], sdev)
	regs.WriteRxRAM(port, bufSel, off, word[:])
}

func TestCopyDeviceControlWritesActiveSlaves(t *testing.T) {
	inst, regs := newTestInstance(t)
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())
	require.True(t, layout.Build(inst).Ok())

	inst.Slaves.Slaves[1].CDev = 0xABCD
	CopyDeviceControl(inst)

	off := inst.Layout.Slaves[1].CDevTx[0]
	var got [2]byte
	regs.ReadTxRAM(0, off, got[:])
	require.Equal(t, uint16(0xABCD), binary.LittleEndian.Uint16(got[:]))
}

func TestEvaluateDeviceStatusPreferredPortValid(t *testing.T) {
	inst, regs := newTestInstance(t)
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())
	require.True(t, layout.Build(inst).Ok())

	regs.SetRxBufferValid(true, true)
	regs.SetValidTelegramsRegister(1)
	off := inst.Layout.Slaves[1].SDevRx[0][0]
	writeSDev(regs, sercos3.Port1, 0, off, SlaveValidBit)

	rc = EvaluateDeviceStatus(inst)
	require.True(t, rc.Ok())
	slave := &inst.Slaves.Slaves[1]
	require.True(t, slave.ValidThisCycle)
	require.Equal(t, sercos3.Port1, slave.PreferredPort)
	require.Equal(t, uint8(0), slave.MissCounter)
}

func TestEvaluateDeviceStatusFallsBackToOtherPort(t *testing.T) {
	inst, regs := newTestInstance(t)
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())
	require.True(t, layout.Build(inst).Ok())

	regs.SetRxBufferValid(true, true)
	regs.SetValidTelegramsRegister(1)
	offP2 := inst.Layout.Slaves[1].SDevRx[1][0]
	writeSDev(regs, sercos3.Port2, 0, offP2, SlaveValidBit)

	rc = EvaluateDeviceStatus(inst)
	require.True(t, rc.Ok())
	slave := &inst.Slaves.Slaves[1]
	require.True(t, slave.ValidThisCycle)
	require.Equal(t, sercos3.Port2, slave.PreferredPort)
}

func TestEvaluateDeviceStatusDoubleMissEscalatesToRemoval(t *testing.T) {
	inst, _ := newTestInstance(t)
	inst.Monitoring = true
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())
	require.True(t, layout.Build(inst).Ok())
	inst.Slaves.Slaves[1].SetAllowedMisses(1)

	for i := 0; i < 3; i++ {
		rc = EvaluateDeviceStatus(inst)
		require.True(t, rc.Ok())
	}

	slave := &inst.Slaves.Slaves[1]
	require.False(t, slave.ValidThisCycle)
	require.Equal(t, sercos3.Inactive, slave.Activity)
}
