package connection

import (
	"encoding/binary"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

func lookup(inst *sercos3.Instance, connIdx int) (*sercos3.Connection, *sercos3.ConnectionRuntime, sercos3.ReturnCode) {
	if connIdx <= 0 || connIdx >= len(inst.Connections) {
		return nil, nil, sercos3.ReturnConnectionNotConfigured
	}
	return &inst.Connections[connIdx], &inst.ConnRuntime[connIdx], sercos3.ReturnOK
}

// SetProducerState drives the master-produced side's lifecycle (§4.4.3).
// Only valid in CP4, and only for connections the master itself produces.
func SetProducerState(inst *sercos3.Instance, connIdx int, state sercos3.ProducerState) sercos3.ReturnCode {
	if inst.Phase != sercos3.CP4 {
		return sercos3.ReturnWrongPhase
	}
	c, rt, rc := lookup(inst, connIdx)
	if !rc.Ok() {
		return rc
	}
	if !c.Producer.IsMaster() {
		return sercos3.ReturnConnectionNotMasterProduced
	}

	switch state {
	case sercos3.ProducerReady:
		if rt.State != sercos3.ProducerPrepare && rt.State != sercos3.ProducerStopping {
			return sercos3.ReturnIllegalConnectionState
		}
		rt.CCon = sercos3.CConProducerReady
		rt.State = sercos3.ProducerReady
	case sercos3.ProducerStopping:
		rt.CCon |= sercos3.CConFlowControl
		rt.State = sercos3.ProducerStopping
	case sercos3.ProducerPrepare:
		rt.CCon = 0
		rt.State = sercos3.ProducerPrepare
	default:
		return sercos3.ReturnIllegalConnectionState
	}
	return sercos3.ReturnOK
}

// GetConnectionState returns the configured side's current state: the
// producer state for a master-produced connection, the consumer state for
// a slave-produced one. It also marks the connection as read this cycle,
// which GetConnectionData requires before it will release data.
func GetConnectionState(inst *sercos3.Instance, connIdx int) (uint8, sercos3.ReturnCode) {
	if inst.Phase != sercos3.CP4 {
		return 0, sercos3.ReturnWrongPhase
	}
	c, rt, rc := lookup(inst, connIdx)
	if !rc.Ok() {
		return 0, rc
	}
	rt.HasReadStateThisCycle = true
	if c.Producer.IsMaster() {
		return uint8(rt.State), sercos3.ReturnOK
	}
	return uint8(rt.ConsState), sercos3.ReturnOK
}

// SetConnectionData composes the Tx-RAM word for a master-produced
// connection — [C-CON | rt_bits, payload...] — and advances {READY,
// WAITING} to PRODUCING. Must be called after the cycle has run.
func SetConnectionData(inst *sercos3.Instance, connIdx int, payload []byte, rtBits uint8) sercos3.ReturnCode {
	if inst.Phase != sercos3.CP4 {
		return sercos3.ReturnWrongPhase
	}
	c, rt, rc := lookup(inst, connIdx)
	if !rc.Ok() {
		return rc
	}
	if !c.Producer.IsMaster() {
		return sercos3.ReturnConnectionNotMasterProduced
	}
	if rt.State != sercos3.ProducerReady && rt.State != sercos3.ProducerWaiting {
		return sercos3.ReturnIllegalConnectionState
	}
	if uint32(len(payload)) > c.Length {
		return sercos3.ReturnBufferTooSmall
	}
	if inst.Layout == nil || connIdx >= len(inst.Layout.Connections) {
		return sercos3.ReturnSystemError
	}

	rt.CCon = (rt.CCon &^ sercos3.CConRTBitsMask) | ((uint16(rtBits) << sercos3.CConRTBitsShift) & sercos3.CConRTBitsMask)

	cp := inst.Layout.Connections[connIdx]
	buf := inst.Priv.UsableTxBuffer
	var header [2]byte
	binary.LittleEndian.PutUint16(header[:], rt.CCon)
	inst.Regs.WriteTxRAM(buf, cp.TxOffsets[buf], header[:])
	if len(payload) > 0 {
		inst.Regs.WriteTxRAM(buf, cp.TxOffsets[buf]+2, payload)
	}

	rt.State = sercos3.ProducerProducing
	rt.WasJustSetProducing = true
	return sercos3.ReturnOK
}

// GetConnectionData copies a slave-produced connection's payload out of
// Rx RAM into out. Requires GetConnectionState to have been called for
// this connection this cycle, and the producer to have zero outstanding
// misses — the commented-out CONSUMING-state guard in the original is
// deliberately not reinstated; see the spec's noted current behavior.
func GetConnectionData(inst *sercos3.Instance, connIdx int, out []byte) sercos3.ReturnCode {
	if inst.Phase != sercos3.CP4 {
		return sercos3.ReturnWrongPhase
	}
	c, rt, rc := lookup(inst, connIdx)
	if !rc.Ok() {
		return rc
	}
	if c.Producer.IsMaster() {
		return sercos3.ReturnConnectionNotSlaveProduced
	}
	if !rt.HasReadStateThisCycle {
		return sercos3.ReturnConnectionDataInvalid
	}

	producerIdx := c.Producer.SlaveIndex
	if producerIdx <= 0 || producerIdx >= len(inst.Slaves.Slaves) {
		return sercos3.ReturnConnectionDataInvalid
	}
	producer := &inst.Slaves.Slaves[producerIdx]
	if producer.MissCounter != 0 {
		return sercos3.ReturnConnectionDataInvalid
	}
	if inst.Layout == nil || connIdx >= len(inst.Layout.Connections) {
		return sercos3.ReturnSystemError
	}
	if uint32(len(out)) > c.Length {
		return sercos3.ReturnBufferTooSmall
	}

	port := rt.ProducerPort
	bufSel := inst.Priv.UsableRxBuffer[port-1]
	cp := inst.Layout.Connections[connIdx]
	inst.Regs.ReadRxRAM(port, bufSel, cp.RxOffsets[port-1][bufSel]+2, out)
	return sercos3.ReturnOK
}

// GetDataDelay returns the consumer's consecutive-error count.
func GetDataDelay(inst *sercos3.Instance, connIdx int) (uint8, sercos3.ReturnCode) {
	_, rt, rc := lookup(inst, connIdx)
	if !rc.Ok() {
		return 0, rc
	}
	return rt.ConsecutiveErr, sercos3.ReturnOK
}

// ClearConnectionError resets a consumer stuck in ERROR back to PREPARE
// and zeroes its error counters. A no-op outside ERROR.
func ClearConnectionError(inst *sercos3.Instance, connIdx int) sercos3.ReturnCode {
	_, rt, rc := lookup(inst, connIdx)
	if !rc.Ok() {
		return rc
	}
	if rt.ConsState != sercos3.ConsumerError {
		return sercos3.ReturnOK
	}
	rt.ConsState = sercos3.ConsumerPrepare
	rt.ConsecutiveErr = 0
	rt.AbsoluteErr = 0
	return sercos3.ReturnOK
}
