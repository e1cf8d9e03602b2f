// Package setup loads and saves the master bring-up configuration file: an
// ini document naming the compile-time maxima (slave count, connection
// counts, buffer-set count, cycle time) and the HAL driver to open, plus
// the projected slave table. It is the ini-file counterpart of an EDS for
// a single master instance rather than a per-device object dictionary.
package setup

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// SlaveSeed is one row of the [slaves] section: a projected Sercos address
// and its preferred scan port.
type SlaveSeed struct {
	Address       uint16
	PreferredPort sercos3.Port
}

// MasterConfig is the parsed content of a master bring-up file.
type MasterConfig struct {
	MaxConnForMaster int
	MaxConnForSlave  int
	BufferSets       int
	CycleTime        time.Duration
	HALDriver        string // "mmap" or "virtual"
	Device           string // PCI-resource / UIO device path, mmap only

	Slaves []SlaveSeed
}

const (
	sectionMaster = "master"
	sectionSlaves = "slaves"

	defaultMaxConnForMaster = 256
	defaultMaxConnForSlave  = 256
	defaultBufferSets       = 2
	defaultCycleTimeNs      = 1_000_000
	defaultHALDriver        = "virtual"
)

// Load parses a master bring-up file. file may be a path, []byte, or
// io.Reader, anything gopkg.in/ini.v1 accepts.
func Load(file any) (*MasterConfig, error) {
	doc, err := ini.Load(file)
	if err != nil {
		return nil, fmt.Errorf("setup: load: %w", err)
	}

	cfg := &MasterConfig{
		MaxConnForMaster: defaultMaxConnForMaster,
		MaxConnForSlave:  defaultMaxConnForSlave,
		BufferSets:       defaultBufferSets,
		CycleTime:        defaultCycleTimeNs * time.Nanosecond,
		HALDriver:        defaultHALDriver,
	}

	if doc.HasSection(sectionMaster) {
		sec := doc.Section(sectionMaster)
		cfg.MaxConnForMaster = sec.Key("MaxConnForMaster").MustInt(defaultMaxConnForMaster)
		cfg.MaxConnForSlave = sec.Key("MaxConnForSlave").MustInt(defaultMaxConnForSlave)
		cfg.BufferSets = sec.Key("BufferSets").MustInt(defaultBufferSets)
		cfg.CycleTime = time.Duration(sec.Key("CycleTimeNs").MustInt64(defaultCycleTimeNs)) * time.Nanosecond
		cfg.HALDriver = sec.Key("HAL").MustString(defaultHALDriver)
		cfg.Device = sec.Key("Device").String()
	}

	if doc.HasSection(sectionSlaves) {
		for _, key := range doc.Section(sectionSlaves).Keys() {
			address, err := strconv.ParseUint(key.Name(), 10, 16)
			if err != nil {
				return nil, fmt.Errorf("setup: slave address %q: %w", key.Name(), err)
			}
			port, err := strconv.ParseUint(key.Value(), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("setup: slave %s preferred port %q: %w", key.Name(), key.Value(), err)
			}
			cfg.Slaves = append(cfg.Slaves, SlaveSeed{
				Address:       uint16(address),
				PreferredPort: sercos3.Port(port),
			})
		}
	}

	return cfg, nil
}

// Save writes cfg to filename as an ini document in the same layout Load
// accepts.
func Save(cfg *MasterConfig, filename string) error {
	doc := ini.Empty()

	master, err := doc.NewSection(sectionMaster)
	if err != nil {
		return err
	}
	master.Key("MaxConnForMaster").SetValue(strconv.Itoa(cfg.MaxConnForMaster))
	master.Key("MaxConnForSlave").SetValue(strconv.Itoa(cfg.MaxConnForSlave))
	master.Key("BufferSets").SetValue(strconv.Itoa(cfg.BufferSets))
	master.Key("CycleTimeNs").SetValue(strconv.FormatInt(cfg.CycleTime.Nanoseconds(), 10))
	master.Key("HAL").SetValue(cfg.HALDriver)
	if cfg.Device != "" {
		master.Key("Device").SetValue(cfg.Device)
	}

	if len(cfg.Slaves) > 0 {
		slaves, err := doc.NewSection(sectionSlaves)
		if err != nil {
			return err
		}
		for _, s := range cfg.Slaves {
			slaves.Key(strconv.FormatUint(uint64(s.Address), 10)).SetValue(strconv.FormatUint(uint64(s.PreferredPort), 10))
		}
	}

	return doc.SaveTo(filename)
}

// Apply seeds inst's connection-instance maxima and projected slave table
// from cfg. It must be called before the master enters CP1.
func Apply(cfg *MasterConfig, inst *sercos3.Instance) sercos3.ReturnCode {
	inst.MaxConnForMaster = cfg.MaxConnForMaster
	inst.MaxConnForSlave = cfg.MaxConnForSlave
	inst.CommCycleTimeNs = uint64(cfg.CycleTime.Nanoseconds())

	for _, s := range cfg.Slaves {
		if _, rc := inst.Slaves.AddSlave(s.Address, s.PreferredPort); !rc.Ok() {
			return rc
		}
	}
	return sercos3.ReturnOK
}
