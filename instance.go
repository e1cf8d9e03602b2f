package sercos3

import "log/slog"

// PrivateState is the cycle-local scratch state written by one cyclic-
// engine step and consumed by a later one within the same cycle. It is
// never read by the application between cycles.
type PrivateState struct {
	UsableTxBuffer uint8
	UsableRxBuffer [2]uint8

	RxBufferValid [2]bool
	ATValidMask   uint32

	TGSR              [2]uint32
	PrimaryMstValid   [2]bool
	SecondaryMstValid [2]bool

	TSrefCounter uint16

	// CC: local mirror of AT bytes copied in CP0/CP1 without DMA.
	ATMirror [MaxTelegramsPerDirection][2][]byte

	TopologyChanged bool
}

// Instance is the process-wide master state: the configuration graph, the
// slave list, the resolved telegram layout, and the private per-cycle
// scratch state. Created by NewInstance, torn down by Shutdown; all cycle
// operations borrow it mutably and are expected to run from the single
// thread that owns the cycle.
type Instance struct {
	Logger *slog.Logger
	Regs   Registers

	Phase      CommPhase
	Monitoring bool // cyclic_handling is a no-op while false

	Slaves *SlaveList

	Connections []Connection // index 0 reserved, matches Sercos connection numbering
	ConnRuntime []ConnectionRuntime

	SetupParameters []SetupParameter
	SetupLists      []SetupParameterList
	SlaveSetups     []SlaveSetup

	Layout *LayoutTables

	HotPlug HotPlugState

	Priv PrivateState

	// CommCycleTimeNs is the configured Sercos cycle time, in nanoseconds
	// (250000..65000000). Every connection's CycleTime must be an integer
	// multiple of it.
	CommCycleTimeNs uint64

	// MaxConnForMaster / MaxConnForSlave bound connection-instance
	// auto-assignment during binary-config decode.
	MaxConnForMaster int
	MaxConnForSlave  int
}

// HotPlugState is the mutable state the hot-plug field handler keeps on
// the instance (moved here, per the design notes, instead of module-scope
// globals).
type HotPlugState struct {
	Enabled      bool
	RepeatRate   int // K, normally 16
	cyclesInCP3  int
	Field        [2][HotPlugFieldLength]byte // MDT0 field sent on port 1 / port 2
	ATField      [2][HotPlugFieldLength]byte // last AT0 field read back per port
	ModeNone     bool
}

// NewInstance creates a fresh, CP0, non-monitoring Instance bound to regs.
func NewInstance(regs Registers, logger *slog.Logger) *Instance {
	if logger == nil {
		logger = slog.Default()
	}
	inst := &Instance{
		Logger:           logger.With("component", "sercos3"),
		Regs:             regs,
		Phase:            CP0,
		Slaves:           NewSlaveList(),
		Connections:      make([]Connection, 1),
		ConnRuntime:      make([]ConnectionRuntime, 1),
		CommCycleTimeNs:  1_000_000,
		MaxConnForMaster: 256,
		MaxConnForSlave:  256,
		HotPlug: HotPlugState{
			RepeatRate: 16,
			ModeNone:   true,
		},
	}
	return inst
}

// AdvanceCycle increments and returns the number of cycles elapsed since
// CP3 was entered, used by the hot-plug field handler's warm-up timing.
func (h *HotPlugState) AdvanceCycle() int {
	h.cyclesInCP3++
	return h.cyclesInCP3
}

// ResetCycles zeroes the CP3 cycle counter. Called on every CP3 entry.
func (h *HotPlugState) ResetCycles() {
	h.cyclesInCP3 = 0
}

// Selection returns the hot-plug selection byte last read back in AT0,
// preferring port 1's reading when both ports carry one.
func (h *HotPlugState) Selection() byte {
	if h.ATField[0][0] != 0 {
		return h.ATField[0][0]
	}
	return h.ATField[1][0]
}

// Shutdown releases the instance. The core itself owns no OS resources
// directly (the Registers implementation does); Shutdown exists so the
// lifetime documented in spec §3 ("created by an init call, torn down by
// shutdown") has a concrete call site to hang cleanup on.
func (inst *Instance) Shutdown() {
	inst.Monitoring = false
	inst.Phase = CP0
}
