package setup

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

func TestLoadDefaultsWhenSectionsAbsent(t *testing.T) {
	cfg, err := Load([]byte(""))
	require.NoError(t, err)
	require.Equal(t, defaultMaxConnForMaster, cfg.MaxConnForMaster)
	require.Equal(t, defaultMaxConnForSlave, cfg.MaxConnForSlave)
	require.Equal(t, defaultBufferSets, cfg.BufferSets)
	require.Equal(t, time.Millisecond, cfg.CycleTime)
	require.Equal(t, defaultHALDriver, cfg.HALDriver)
	require.Empty(t, cfg.Slaves)
}

func TestLoadParsesMasterAndSlaveSections(t *testing.T) {
	doc := `
[master]
MaxConnForMaster = 32
MaxConnForSlave = 64
BufferSets = 3
CycleTimeNs = 500000
HAL = mmap
Device = /dev/uio0

[slaves]
5 = 1
7 = 2
`
	cfg, err := Load([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 32, cfg.MaxConnForMaster)
	require.Equal(t, 64, cfg.MaxConnForSlave)
	require.Equal(t, 3, cfg.BufferSets)
	require.Equal(t, 500*time.Microsecond, cfg.CycleTime)
	require.Equal(t, "mmap", cfg.HALDriver)
	require.Equal(t, "/dev/uio0", cfg.Device)
	require.ElementsMatch(t, []SlaveSeed{
		{Address: 5, PreferredPort: sercos3.Port1},
		{Address: 7, PreferredPort: sercos3.Port2},
	}, cfg.Slaves)
}

func TestLoadRejectsMalformedSlaveAddress(t *testing.T) {
	doc := "[slaves]\nnotanumber = 1\n"
	_, err := Load([]byte(doc))
	require.Error(t, err)
}

func TestLoadRejectsMalformedPreferredPort(t *testing.T) {
	doc := "[slaves]\n5 = notaport\n"
	_, err := Load([]byte(doc))
	require.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := &MasterConfig{
		MaxConnForMaster: 10,
		MaxConnForSlave:  20,
		BufferSets:       3,
		CycleTime:        2 * time.Millisecond,
		HALDriver:        "mmap",
		Device:           "/dev/uio1",
		Slaves: []SlaveSeed{
			{Address: 1, PreferredPort: sercos3.Port1},
			{Address: 2, PreferredPort: sercos3.Port2},
		},
	}

	path := t.TempDir() + "/master.ini"
	require.NoError(t, Save(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.MaxConnForMaster, got.MaxConnForMaster)
	require.Equal(t, cfg.MaxConnForSlave, got.MaxConnForSlave)
	require.Equal(t, cfg.BufferSets, got.BufferSets)
	require.Equal(t, cfg.CycleTime, got.CycleTime)
	require.Equal(t, cfg.HALDriver, got.HALDriver)
	require.Equal(t, cfg.Device, got.Device)
	require.ElementsMatch(t, cfg.Slaves, got.Slaves)
}

func TestSaveOmitsDeviceAndSlavesSectionWhenEmpty(t *testing.T) {
	cfg := &MasterConfig{
		MaxConnForMaster: defaultMaxConnForMaster,
		MaxConnForSlave:  defaultMaxConnForSlave,
		BufferSets:       defaultBufferSets,
		CycleTime:        time.Millisecond,
		HALDriver:        defaultHALDriver,
	}

	path := t.TempDir() + "/master.ini"
	require.NoError(t, Save(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, got.Device)
	require.Empty(t, got.Slaves)
}

func TestApplySeedsInstanceFromConfig(t *testing.T) {
	cfg := &MasterConfig{
		MaxConnForMaster: 12,
		MaxConnForSlave:  34,
		CycleTime:        250 * time.Microsecond,
		Slaves: []SlaveSeed{
			{Address: 5, PreferredPort: sercos3.Port1},
			{Address: 7, PreferredPort: sercos3.Port2},
		},
	}

	inst := sercos3.NewInstance(nil, nil)
	rc := Apply(cfg, inst)
	require.True(t, rc.Ok())
	require.Equal(t, 12, inst.MaxConnForMaster)
	require.Equal(t, 34, inst.MaxConnForSlave)
	require.Equal(t, uint64(250_000), inst.CommCycleTimeNs)
	require.Len(t, inst.Slaves.Slaves, 3) // reserved slot 0 + two seeded slaves
	require.Equal(t, uint16(5), inst.Slaves.Slaves[1].Address)
	require.Equal(t, uint16(7), inst.Slaves.Slaves[2].Address)
}

func TestApplyPropagatesSlaveProjectionFailure(t *testing.T) {
	cfg := &MasterConfig{
		Slaves: []SlaveSeed{
			{Address: 5, PreferredPort: sercos3.Port1},
			{Address: 5, PreferredPort: sercos3.Port1}, // duplicate address
		},
	}

	inst := sercos3.NewInstance(nil, nil)
	rc := Apply(cfg, inst)
	require.False(t, rc.Ok())
}

func TestSaveProducesParsableIniSections(t *testing.T) {
	cfg := &MasterConfig{
		MaxConnForMaster: 1,
		MaxConnForSlave:  1,
		BufferSets:       1,
		CycleTime:        time.Millisecond,
		HALDriver:        "virtual",
	}
	path := t.TempDir() + "/master.ini"
	require.NoError(t, Save(cfg, path))

	raw, err := Load(path)
	require.NoError(t, err)
	require.True(t, strings.EqualFold("virtual", raw.HALDriver))
}
