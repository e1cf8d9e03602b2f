// Package hotplug drives the MDT0/AT0 hot-plug field (§4.6): during CP3
// warm-up it broadcasts the T6/T7 timing handshake on both ports, then
// hands the field's contents over to whatever external hot-plug protocol
// state machine is selecting/admitting a slave; it only emits or reads back
// the field's bytes, never runs the admission protocol itself.
package hotplug

import (
	"encoding/binary"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

const (
	controlNone byte = 0
	controlT6   byte = 1
	controlT7   byte = 2
)

// WriteMDT0 emits the MDT0 hot-plug field for the current cycle into the
// port-relative write buffer of each port. In the first 2*K cycles of CP3
// it drives the T6/T7 warm-up handshake; afterward the field reflects
// whatever the application last selected, or its zeroed default.
func WriteMDT0(inst *sercos3.Instance) {
	if !inst.Phase.HasHotPlug() || inst.Layout == nil {
		return
	}
	if inst.Phase == sercos3.CP3 {
		driveWarmup(inst)
	}
	buf := inst.Priv.UsableTxBuffer
	inst.Regs.WriteTxRAM(buf, inst.Layout.TxBases.Port1RelativeWriteTx, inst.HotPlug.Field[0][:])
	inst.Regs.WriteTxRAM(buf, inst.Layout.TxBases.Port2RelativeWriteTx, inst.HotPlug.Field[1][:])
}

// ReadAT0 reads the AT0 hot-plug field back from both ports, when hot-plug
// mode is not NONE.
func ReadAT0(inst *sercos3.Instance) {
	if inst.HotPlug.ModeNone || inst.Layout == nil {
		return
	}
	if !inst.Layout.RxTelegrams[0].Enabled {
		return
	}
	bufP1 := inst.Priv.UsableRxBuffer[0]
	bufP2 := inst.Priv.UsableRxBuffer[1]

	var f0, f1 [sercos3.HotPlugFieldLength]byte
	inst.Regs.ReadRxRAM(sercos3.Port1, bufP1, inst.Layout.RxBases.Port1RelativeWriteTx, f0[:])
	inst.Regs.ReadRxRAM(sercos3.Port2, bufP2, inst.Layout.RxBases.Port2RelativeWriteTx, f1[:])
	inst.HotPlug.ATField[0] = f0
	inst.HotPlug.ATField[1] = f1
}

// driveWarmup fills HotPlug.Field with the T6 timing value for the first K
// cycles of CP3, the T7 value for the following K cycles, then resets the
// field to its default (zeroed) contents.
func driveWarmup(inst *sercos3.Instance) {
	k := inst.HotPlug.RepeatRate
	if k <= 0 {
		k = 16
	}
	n := inst.HotPlug.AdvanceCycle()

	var control byte
	var timing uint32
	switch {
	case n <= k:
		control, timing = controlT6, uint32(inst.CommCycleTimeNs*2)
	case n <= 2*k:
		control, timing = controlT7, uint32(inst.CommCycleTimeNs*3)
	default:
		control, timing = controlNone, 0
	}

	for p := 0; p < 2; p++ {
		inst.HotPlug.Field[p][0] = 0
		inst.HotPlug.Field[p][1] = control
		binary.LittleEndian.PutUint32(inst.HotPlug.Field[p][2:6], timing)
		inst.HotPlug.Field[p][6] = 0
		inst.HotPlug.Field[p][7] = 0
	}
}
