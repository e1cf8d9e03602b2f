package hotplug

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
	regs := virtual.New(8192, 8192)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP3
	inst.HotPlug.Enabled = true
	inst.HotPlug.ModeNone = false
	inst.HotPlug.RepeatRate = 2
	inst.CommCycleTimeNs = 1000
	require.True(t, layout.Build(inst).Ok())
	return inst, regs
}

func TestWriteMDT0DrivesT6ThenT7(t *testing.T) {
	inst, regs := newTestInstance(t)

	WriteMDT0(inst)
	var f0 [sercos3.HotPlugFieldLength]byte
	regs.ReadTxRAM(inst.Priv.UsableTxBuffer, inst.Layout.TxBases.Port1RelativeWriteTx, f0[:])
	require.Equal(t, controlT6, f0[1])
	require.Equal(t, uint32(2000), binary.LittleEndian.Uint32(f0[2:6]))

	WriteMDT0(inst)
	WriteMDT0(inst)
	regs.ReadTxRAM(inst.Priv.UsableTxBuffer, inst.Layout.TxBases.Port1RelativeWriteTx, f0[:])
	require.Equal(t, controlT7, f0[1])
	require.Equal(t, uint32(3000), binary.LittleEndian.Uint32(f0[2:6]))
}

func TestWriteMDT0SettlesToNoneAfterWarmup(t *testing.T) {
	inst, regs := newTestInstance(t)
	for i := 0; i < 10; i++ {
		WriteMDT0(inst)
	}
	var f0 [sercos3.HotPlugFieldLength]byte
	regs.ReadTxRAM(inst.Priv.UsableTxBuffer, inst.Layout.TxBases.Port1RelativeWriteTx, f0[:])
	require.Equal(t, controlNone, f0[1])
}

func TestReadAT0CopiesBothPorts(t *testing.T) {
	inst, regs := newTestInstance(t)
	var want [sercos3.HotPlugFieldLength]byte
	want[0] = 0x42
	regs.WriteRxRAM(sercos3.Port1, inst.Priv.UsableRxBuffer[0], inst.Layout.RxBases.Port1RelativeWriteTx, want[:])

	ReadAT0(inst)
	require.Equal(t, want, inst.HotPlug.ATField[0])
}

func TestReadAT0SkippedWhenModeNone(t *testing.T) {
	inst, regs := newTestInstance(t)
	inst.HotPlug.ModeNone = true
	var want [sercos3.HotPlugFieldLength]byte
	want[0] = 0x99
	regs.WriteRxRAM(sercos3.Port1, inst.Priv.UsableRxBuffer[0], inst.Layout.RxBases.Port1RelativeWriteTx, want[:])

	ReadAT0(inst)
	require.NotEqual(t, want, inst.HotPlug.ATField[0])
}
