package connection

import (
	"encoding/binary"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// EvaluateConsumers runs the consumer state machine (§4.4.2) for every
// slave-produced connection scheduled this cycle: it reads the producer's
// preferred port first, falls back to the other port when that port's AT
// is not currently valid, and steps the consumer state from the observed
// C-CON word.
func EvaluateConsumers(inst *sercos3.Instance) {
	if inst.Phase != sercos3.CP4 || inst.Layout == nil {
		return
	}

	for i := 1; i < len(inst.Connections); i++ {
		c := &inst.Connections[i]
		if c.Producer.IsMaster() {
			continue
		}
		rt := &inst.ConnRuntime[i]

		producerIdx := c.Producer.SlaveIndex
		if producerIdx <= 0 || producerIdx >= len(inst.Slaves.Slaves) {
			continue
		}
		producer := &inst.Slaves.Slaves[producerIdx]

		var cCon uint16
		if producer.ValidThisCycle {
			port := producer.PreferredPort
			if !atValid(inst, port, c.TelegramNumber) {
				if other := port.Other(); atValid(inst, other, c.TelegramNumber) {
					producer.PreferredPort = other
					port = other
				}
			}
			cCon = readCCon(inst, i, port)
			rt.ProducerPort = port
		}
		stepConsumer(c, rt, cCon)
	}
}

func atValid(inst *sercos3.Instance, port sercos3.Port, telegramNumber uint8) bool {
	if !inst.Priv.RxBufferValid[port-1] {
		return false
	}
	return inst.Priv.ATValidMask&(uint32(1)<<uint(telegramNumber)) != 0
}

func readCCon(inst *sercos3.Instance, connIdx int, port sercos3.Port) uint16 {
	bufSel := inst.Priv.UsableRxBuffer[port-1]
	cp := inst.Layout.Connections[connIdx]
	off := cp.RxOffsets[port-1][bufSel]
	var word [2]byte
	inst.Regs.ReadRxRAM(port, bufSel, off, word[:])
	return binary.LittleEndian.Uint16(word[:])
}

func stepConsumer(c *sercos3.Connection, rt *sercos3.ConnectionRuntime, cCon uint16) {
	ready := cCon&sercos3.CConProducerReady != 0
	flow := cCon&sercos3.CConFlowControl != 0

	switch rt.ConsState {
	case sercos3.ConsumerPrepare:
		if !ready {
			return
		}
		rt.ExpectedCCon = cCon & sercos3.CConProducerReady
		rt.AbsoluteErr = 0
		rt.ConsState = sercos3.ConsumerWaiting
		stepWaiting(rt, cCon, ready, flow)
	case sercos3.ConsumerWaiting:
		stepWaiting(rt, cCon, ready, flow)
	case sercos3.ConsumerConsuming, sercos3.ConsumerWarning:
		stepConsuming(c, rt, cCon, ready, flow)
	case sercos3.ConsumerStopped:
		if ready && !flow {
			rt.ConsState = sercos3.ConsumerPrepare
		}
	case sercos3.ConsumerError, sercos3.ConsumerInit:
		// no cycle-driven transition; cleared by ClearConnectionError.
	}
}

func stepWaiting(rt *sercos3.ConnectionRuntime, cCon uint16, ready, flow bool) {
	if !ready {
		rt.ConsState = sercos3.ConsumerPrepare
		return
	}
	if flow {
		rt.ConsState = sercos3.ConsumerStopped
		return
	}
	counter := sercos3.CConCounter(cCon)
	if cCon&sercos3.CConNewData != 0 || counter > 0 {
		rt.ExpectedCCon = cCon
		rt.LastCCon = cCon
		rt.ConsecutiveErr = 0
		if counter != 0 {
			rt.CheckMode = sercos3.CheckModeCounter
		} else {
			rt.CheckMode = sercos3.CheckModeNewDataOnly
		}
		rt.ConsState = sercos3.ConsumerConsuming
	}
}

func stepConsuming(c *sercos3.Connection, rt *sercos3.ConnectionRuntime, cCon uint16, ready, flow bool) {
	monitoring := sercos3.MonitoringClockSynchronous
	if len(c.ConsumerConfigs) > 0 {
		monitoring = c.ConsumerConfigs[0].Monitoring
	}

	switch monitoring {
	case sercos3.MonitoringAsyncWithWatchdog, sercos3.MonitoringCyclicNoNewData:
		rt.ConsState = sercos3.ConsumerError

	case sercos3.MonitoringAsyncNoWatchdog:
		if flow {
			rt.ConsState = sercos3.ConsumerStopped
			return
		}
		if !ready || cCon == rt.LastCCon {
			rt.AbsoluteErr++
			rt.ConsState = sercos3.ConsumerWarning
			return
		}
		rt.LastCCon = cCon
		rt.ConsState = sercos3.ConsumerConsuming

	default: // clock-synchronous
		if flow {
			rt.ConsState = sercos3.ConsumerStopped
			return
		}
		if !ready || cCon == rt.LastCCon || !counterOrToggleOk(rt, cCon) {
			invalidData(c, rt)
			return
		}
		rt.LastCCon = cCon
		rt.ConsecutiveErr = 0
		rt.ConsState = sercos3.ConsumerConsuming
	}
}

func counterOrToggleOk(rt *sercos3.ConnectionRuntime, cCon uint16) bool {
	if rt.CheckMode == sercos3.CheckModeCounter {
		expected := sercos3.CConCounter(sercos3.NextCConCounter(rt.LastCCon))
		return sercos3.CConCounter(cCon) == expected
	}
	return (cCon & sercos3.CConNewData) != (rt.LastCCon & sercos3.CConNewData)
}

func invalidData(c *sercos3.Connection, rt *sercos3.ConnectionRuntime) {
	rt.ConsecutiveErr++
	rt.AbsoluteErr++
	if rt.ConsecutiveErr <= c.AllowedMissThreshold {
		rt.ConsState = sercos3.ConsumerWarning
	} else {
		rt.ConsState = sercos3.ConsumerError
	}
}
