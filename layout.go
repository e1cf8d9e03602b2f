package sercos3

// TelegramLayout is the resolved layout of one MDT or one AT: the
// descriptor sequence bracketing its regions, and the word-aligned offset
// of that sequence inside the descriptor table (the Rx/Tx descriptor index
// table entry).
type TelegramLayout struct {
	Enabled         bool
	IndexTableOffset uint16
	Descriptors     []Descriptor
	DataLength      uint32 // total telegram data-field length, bytes
}

// BufferBases are the named base-pointer regions the layout builder
// resolves once per phase transition.
type BufferBases struct {
	Port1SVC             uint32
	Port2SVC             uint32
	Port1Data            [MaxBufferSets]uint32
	Port2Data            [MaxBufferSets]uint32
	Port1RelativeWriteTx uint32
	Port2RelativeWriteTx uint32
}

// SlavePointers are the per-slave pointers the layout builder resolves:
// into Rx RAM for S-DEV (per port, per buffer) and into Tx RAM for C-DEV
// (per buffer).
type SlavePointers struct {
	SDevRx [2][MaxBufferSets]uint32
	CDevTx [MaxBufferSets]uint32
	// TelegramNumber is the AT/MDT index (0..3) this slave is assigned to,
	// used by the device-status evaluator to group slaves per telegram.
	TelegramNumber uint8
}

// LayoutTables is the full output of one telegram-layout build: everything
// the cyclic engine and its sub-components need to locate data in the
// hardware RAM windows for the phase that was just built.
type LayoutTables struct {
	Phase CommPhase

	RxTelegrams [MaxTelegramsPerDirection]TelegramLayout
	TxTelegrams [MaxTelegramsPerDirection]TelegramLayout

	RxBases BufferBases
	TxBases BufferBases

	// LastSlaveIndexPerAT[n] is the cumulative count of slaves assigned up
	// to and including AT n, used by the device-status evaluator to
	// iterate the slave range of a given AT without re-deriving it.
	LastSlaveIndexPerAT [MaxTelegramsPerDirection]int

	// Slave and connection pointer tables, indexed like Instance.Slaves
	// and Instance.Connections respectively.
	Slaves      []SlavePointers
	Connections []ConnectionPointers
}
