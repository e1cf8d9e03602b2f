package cyclic

import (
	"testing"

	"github.com/stretchr/testify/require"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/hal/virtual"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/layout"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/topology"
)

func TestHandleNoopWhileNotMonitoring(t *testing.T) {
	regs := virtual.New(16*1024, 8*1024)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP0

	rc := Handle(inst)
	require.True(t, rc.Ok())
}

func TestHandleCP1RunsDeviceStatusButNotConnections(t *testing.T) {
	regs := virtual.New(16*1024, 8*1024)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP1
	inst.Monitoring = true
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())
	require.True(t, layout.Build(inst).Ok())

	regs.SetTGSR(sercos3.Port1, 0) // no link: dominates the cycle result

	result := Handle(inst)
	require.Equal(t, sercos3.ReturnNoLinkAttached, result)
}

func TestHandleCP4DrivesConnectionStateMachines(t *testing.T) {
	regs := virtual.New(16*1024, 8*1024)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP4
	inst.Monitoring = true
	inst.Connections = append(inst.Connections, sercos3.Connection{
		Index:          1,
		Producer:       sercos3.ParticipantRef{Kind: sercos3.ParticipantMaster},
		ProducerConfig: sercos3.Configuration{Active: true, IsProducerSide: true},
		Direction:      sercos3.MDT,
		TelegramNumber: 0,
		Length:         2,
	})
	inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{
		State: sercos3.ProducerProducing,
	})
	require.True(t, layout.Build(inst).Ok())

	regs.SetTGSR(sercos3.Port1, topology.BitMstValid)
	regs.SetTGSR(sercos3.Port2, topology.BitMstValid)
	regs.SetValidTelegramsRegister(0xF)

	result := Handle(inst)
	require.Equal(t, sercos3.ReturnTopologyChanged, result)
	// Connection marking only runs when the cycle result is clean; the
	// first cycle reports a topology change so production marking is
	// skipped until the next call.
	require.Equal(t, sercos3.ProducerProducing, inst.ConnRuntime[1].State)

	// The virtual TGSR is a dumb register, not hardware re-asserting
	// MST-valid every cycle on its own; redrive it before the next call.
	regs.SetTGSR(sercos3.Port1, topology.BitMstValid)
	regs.SetTGSR(sercos3.Port2, topology.BitMstValid)

	result = Handle(inst)
	require.True(t, result.Ok())
	require.Equal(t, sercos3.ProducerWaiting, inst.ConnRuntime[1].State)
}

func TestHandleResetsConnectionReadFlagEveryCycle(t *testing.T) {
	regs := virtual.New(16*1024, 8*1024)
	inst := sercos3.NewInstance(regs, nil)
	inst.Phase = sercos3.CP4
	inst.Monitoring = true
	inst.Connections = append(inst.Connections, sercos3.Connection{
		Index:          1,
		Producer:       sercos3.ParticipantRef{Kind: sercos3.ParticipantMaster},
		ProducerConfig: sercos3.Configuration{Active: true, IsProducerSide: true},
		Direction:      sercos3.MDT,
		TelegramNumber: 0,
		Length:         2,
	})
	inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{})
	require.True(t, layout.Build(inst).Ok())

	regs.SetTGSR(sercos3.Port1, topology.BitMstValid)
	regs.SetTGSR(sercos3.Port2, topology.BitMstValid)
	regs.SetValidTelegramsRegister(0xF)

	inst.ConnRuntime[1].HasReadStateThisCycle = true
	Handle(inst)
	require.False(t, inst.ConnRuntime[1].HasReadStateThisCycle, "each cycle must clear the prior cycle's read mark")
}
