// Package cyclic implements cyclic_handling (§4.1): the fixed-order,
// single-pass per-cycle driver that ties buffer rotation, validation,
// topology evaluation, device-control/status copy, hot-plug field
// handling, and connection state-machine evaluation into one call.
package cyclic

import (
	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/connection"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/devstatus"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/hotplug"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/topology"
)

// Handle runs exactly one Sercos cycle. It must be called once per cycle
// tick from the interrupt or timer-driven task that owns the instance;
// while inst.Monitoring is off it returns immediately, per §4.1.
func Handle(inst *sercos3.Instance) sercos3.CyclicResult {
	if !inst.Monitoring {
		return sercos3.ReturnOK
	}

	waitForDMA(inst)
	rotateBuffers(inst)
	validate(inst)

	if inst.Phase == sercos3.CP4 {
		resetConnectionReadFlags(inst)
	}

	if inst.Phase <= sercos3.CP1 && !inst.Regs.DMAInProgress() {
		mirrorATBuffers(inst)
	}

	result := sercos3.ReturnOK

	if inst.Phase >= sercos3.CP1 {
		if rc := topology.Evaluate(inst); rc != sercos3.ReturnOK {
			result = rc
		}
	}
	if result == sercos3.ReturnOK && inst.Priv.ATValidMask == 0 {
		result = sercos3.ReturnNoTelegramsReceived
	}

	if inst.Phase.HasDeviceControl() {
		devstatus.CopyDeviceControl(inst)
		devstatus.EvaluateDeviceStatus(inst)
	}

	if inst.Phase.HasHotPlug() {
		hotplug.WriteMDT0(inst)
		hotplug.ReadAT0(inst)
	}

	if inst.Phase == sercos3.CP4 && result == sercos3.ReturnOK {
		connection.MarkProduction(inst)
		connection.EvaluateConsumers(inst)
	}

	if inst.Phase >= sercos3.CP3 {
		inst.Regs.RequestNewTxBuffer()
	}

	return result
}

// waitForDMA busy-waits on the DMA-ready flag if a transfer from the
// previous cycle is still in progress. It is expected to clear within one
// cycle period if the PCI bus is healthy; the core has no timeout of its
// own at this level.
func waitForDMA(inst *sercos3.Instance) {
	for inst.Regs.DMAInProgress() && !inst.Regs.DMAReady() {
	}
}

func rotateBuffers(inst *sercos3.Instance) {
	inst.Priv.UsableTxBuffer = inst.Regs.UsableTxBuffer()
	if !inst.Regs.DMAInProgress() {
		inst.Regs.RequestNewRxBuffer()
	}
	p1, p2 := inst.Regs.UsableRxBuffer()
	inst.Priv.UsableRxBuffer[0] = p1
	inst.Priv.UsableRxBuffer[1] = p2
}

// resetConnectionReadFlags clears the per-connection "read this cycle" mark
// at the start of every CP4 cycle, so GetConnectionData's precondition check
// (GetConnectionState must be called this cycle before it) only passes for
// connections the application actually queried since the last cycle tick.
func resetConnectionReadFlags(inst *sercos3.Instance) {
	for i := 1; i < len(inst.ConnRuntime); i++ {
		inst.ConnRuntime[i].HasReadStateThisCycle = false
	}
}

func validate(inst *sercos3.Instance) {
	v1, v2 := inst.Regs.RxBufferValid()
	inst.Priv.RxBufferValid[0] = v1
	inst.Priv.RxBufferValid[1] = v2
	inst.Priv.ATValidMask = inst.Regs.ValidTelegramsRegister()
}

// mirrorATBuffers copies AT bytes into the instance-owned mirror for
// CP0/CP1, where the hardware descriptor engine is not yet placing data
// directly. The mirror slices are reused across cycles and only
// reallocated when a telegram's resolved length changes.
func mirrorATBuffers(inst *sercos3.Instance) {
	if inst.Layout == nil {
		return
	}
	for n := 0; n < sercos3.MaxTelegramsPerDirection; n++ {
		tel := inst.Layout.RxTelegrams[n]
		if !tel.Enabled || inst.Priv.ATValidMask&(uint32(1)<<uint(n)) == 0 {
			continue
		}
		for port := 0; port < 2; port++ {
			if !inst.Priv.RxBufferValid[port] {
				continue
			}
			if len(inst.Priv.ATMirror[n][port]) != int(tel.DataLength) {
				inst.Priv.ATMirror[n][port] = make([]byte, tel.DataLength)
			}
			bufSel := inst.Priv.UsableRxBuffer[port]
			p := sercos3.Port1
			base := inst.Layout.RxBases.Port1Data[bufSel]
			if port == 1 {
				p = sercos3.Port2
				base = inst.Layout.RxBases.Port2Data[bufSel]
			}
			inst.Regs.ReadRxRAM(p, bufSel, base, inst.Priv.ATMirror[n][port])
		}
	}
}
