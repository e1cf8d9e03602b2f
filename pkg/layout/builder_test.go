package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
	"github.com/aschiffler/linuxcnc-sercos3-sub005/pkg/hal/virtual"
)

func newTestInstance(t *testing.T) *sercos3.Instance {
	t.Helper()
	regs := virtual.New(16*1024, 8*1024)
	return sercos3.NewInstance(regs, nil)
}

func TestBuildCP0(t *testing.T) {
	inst := newTestInstance(t)
	inst.Phase = sercos3.CP0

	rc := Build(inst)
	require.True(t, rc.Ok(), rc.Error())
	require.NotNil(t, inst.Layout)
	require.True(t, inst.Layout.RxTelegrams[0].Enabled)
	require.True(t, inst.Layout.TxTelegrams[0].Enabled)
	require.GreaterOrEqual(t, inst.Layout.TxTelegrams[0].DataLength, uint32(sercos3.MinTelegramDataLength))
	require.False(t, inst.Layout.RxTelegrams[1].Enabled)
}

func TestBuildCP1SingleSlave(t *testing.T) {
	inst := newTestInstance(t)
	inst.Phase = sercos3.CP1
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())

	rc = Build(inst)
	require.True(t, rc.Ok(), rc.Error())
	require.True(t, inst.Layout.RxTelegrams[0].Enabled)
	// One slave's S-DEV/C-DEV pads out to the Ethernet minimum rather than
	// failing the length check.
	require.Equal(t, uint32(sercos3.MinTelegramDataLength), inst.Layout.RxTelegrams[0].DataLength)
	require.Len(t, inst.Layout.Slaves, 2) // index 0 reserved + slave 1
	sp := inst.Layout.Slaves[1]
	require.Equal(t, uint8(0), sp.TelegramNumber)
}

func TestBuildCP1ManySlavesSpanTelegrams(t *testing.T) {
	inst := newTestInstance(t)
	inst.Phase = sercos3.CP1
	maxPer := maxSlavesPerTelegram(8, 0)
	for a := uint16(1); a <= uint16(maxPer+1); a++ {
		_, rc := inst.Slaves.AddSlave(a, sercos3.Port1)
		require.True(t, rc.Ok())
	}

	rc := Build(inst)
	require.True(t, rc.Ok(), rc.Error())
	require.True(t, inst.Layout.RxTelegrams[0].Enabled)
	require.True(t, inst.Layout.RxTelegrams[1].Enabled)
	require.Equal(t, maxPer, inst.Layout.LastSlaveIndexPerAT[0])
}

func TestBuildCP3WithConnection(t *testing.T) {
	inst := newTestInstance(t)
	inst.Phase = sercos3.CP3
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())

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

	rc = Build(inst)
	require.True(t, rc.Ok(), rc.Error())
	require.Len(t, inst.Layout.Connections, 2)
	cp := inst.Layout.Connections[1]
	require.Equal(t, inst.Layout.TxBases.Port1Data[0], cp.TxOffsets[0])
}

func TestBuildCP4WithCCConnection(t *testing.T) {
	inst := newTestInstance(t)
	inst.Phase = sercos3.CP4
	_, rc := inst.Slaves.AddSlave(1, sercos3.Port1)
	require.True(t, rc.Ok())
	_, rc = inst.Slaves.AddSlave(2, sercos3.Port1)
	require.True(t, rc.Ok())

	inst.Connections = append(inst.Connections, sercos3.Connection{
		Index:          1,
		Producer:       sercos3.ParticipantRef{Kind: sercos3.ParticipantSlave, SlaveIndex: 1},
		ProducerConfig: sercos3.Configuration{Active: true, IsProducerSide: true},
		Consumers:      []sercos3.ParticipantRef{{Kind: sercos3.ParticipantSlave, SlaveIndex: 2}},
		Direction:      sercos3.AT,
		TelegramNumber: 0,
		ByteOffset:     0,
		Length:         4,
	})
	inst.ConnRuntime = append(inst.ConnRuntime, sercos3.ConnectionRuntime{})
	require.True(t, inst.Connections[1].IsCC())

	rc = Build(inst)
	require.True(t, rc.Ok(), rc.Error())
	require.Len(t, inst.Layout.Connections, 2)
	cp := inst.Layout.Connections[1]

	// CC data resolves into the shared port-relative write buffer, never the
	// per-buffer-set RTD data area.
	require.Equal(t, inst.Layout.RxBases.Port1RelativeWriteTx+sercos3.HotPlugFieldLength, cp.RxOffsets[0][0])
	require.Equal(t, inst.Layout.RxBases.Port2RelativeWriteTx+sercos3.HotPlugFieldLength, cp.RxOffsets[1][0])
	for _, base := range inst.Layout.RxBases.Port1Data {
		require.NotEqual(t, base, cp.RxOffsets[0][0]-sercos3.HotPlugFieldLength)
	}
}

func TestBuildWrongPhase(t *testing.T) {
	inst := newTestInstance(t)
	inst.Phase = sercos3.CommPhase(99)

	rc := Build(inst)
	require.Equal(t, sercos3.ReturnWrongPhase, rc)
}
