// Package devstatus implements the device-control copier and device-status
// evaluator of §4.3: every cycle it pushes C-DEV words into Tx RAM for
// active slaves and reads S-DEV words back out of Rx RAM, tracking the
// preferred-port switch and the consecutive-miss counter that eventually
// removes a slave from its topology scan list.
package devstatus

import (
	"encoding/binary"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// SlaveValidBit is the S-DEV bit that reports the slave considers its own
// data valid this cycle.
const SlaveValidBit uint16 = 1 << 2

// CopyDeviceControl writes the per-slave C-DEV word into the currently
// usable Tx buffer for every active slave (§4.3.1). Inactive slaves are
// skipped; their Tx location keeps whatever the last active cycle wrote.
func CopyDeviceControl(inst *sercos3.Instance) {
	if inst.Layout == nil {
		return
	}
	buf := inst.Priv.UsableTxBuffer
	var word [2]byte
	for _, idx := range inst.Slaves.ActiveIndices() {
		slave := &inst.Slaves.Slaves[idx]
		binary.LittleEndian.PutUint16(word[:], slave.CDev)
		off := inst.Layout.Slaves[idx].CDevTx[buf]
		inst.Regs.WriteTxRAM(buf, off, word[:])
	}
}

// EvaluateDeviceStatus walks every active slave in AT order, preferring
// each slave's own preferred port before falling back to the other one,
// and raises a valid-miss event where neither port has fresh, valid data
// (§4.3.2).
func EvaluateDeviceStatus(inst *sercos3.Instance) sercos3.ReturnCode {
	if inst.Layout == nil {
		return sercos3.ReturnSystemError
	}

	active := inst.Slaves.ActiveIndices()
	start := 0
	for at := 0; at < sercos3.MaxTelegramsPerDirection; at++ {
		end := inst.Layout.LastSlaveIndexPerAT[at]
		if end > len(active) {
			end = len(active)
		}
		group := active[start:end]
		start = end

		if !inst.Layout.RxTelegrams[at].Enabled {
			continue
		}
		for _, idx := range group {
			evaluateOne(inst, idx, at)
		}
	}
	return sercos3.ReturnOK
}

func evaluateOne(inst *sercos3.Instance, idx, at int) {
	slave := &inst.Slaves.Slaves[idx]
	p := slave.PreferredPort

	if sdev, ok := readValidSDev(inst, idx, p, at); ok {
		slave.LastSDev = sdev
		slave.MissCounter = 0
		slave.ValidThisCycle = true
		return
	}

	other := p.Other()
	if sdev, ok := readValidSDev(inst, idx, other, at); ok {
		slave.PreferredPort = other
		slave.LastSDev = sdev
		slave.MissCounter = 0
		slave.ValidThisCycle = true
		return
	}

	validMissEvent(inst, idx)
}

// readValidSDev reports the slave's S-DEV word on port, and whether the
// port's buffer is valid for this AT and the word's Slave-Valid bit is set.
func readValidSDev(inst *sercos3.Instance, idx int, port sercos3.Port, at int) (uint16, bool) {
	if !atValidOnPort(inst, port, at) {
		return 0, false
	}
	bufSel := inst.Priv.UsableRxBuffer[port-1]
	off := inst.Layout.Slaves[idx].SDevRx[port-1][bufSel]
	var word [2]byte
	inst.Regs.ReadRxRAM(port, bufSel, off, word[:])
	sdev := binary.LittleEndian.Uint16(word[:])
	if sdev&SlaveValidBit == 0 {
		return 0, false
	}
	return sdev, true
}

func atValidOnPort(inst *sercos3.Instance, port sercos3.Port, at int) bool {
	if !inst.Priv.RxBufferValid[port-1] {
		return false
	}
	return inst.Priv.ATValidMask&(uint32(1)<<uint(at)) != 0
}

// validMissEvent zeroes the slave's public S-DEV and, in full monitoring,
// escalates the miss counter up to slave removal (§4.5).
func validMissEvent(inst *sercos3.Instance, idx int) {
	slave := &inst.Slaves.Slaves[idx]
	slave.LastSDev = 0
	slave.ValidThisCycle = false
	if !inst.Monitoring {
		return
	}
	slave.MissCounter++
	if slave.MissCounter > slave.AllowedMisses() {
		removeSlave(inst, idx)
	}
}

func removeSlave(inst *sercos3.Instance, idx int) {
	addr := inst.Slaves.Slaves[idx].Address
	if !inst.Slaves.RemoveFromPortOnward(sercos3.Port1, addr) {
		inst.Slaves.RemoveFromPortOnward(sercos3.Port2, addr)
	}
	inst.Slaves.Deactivate(addr)
}
