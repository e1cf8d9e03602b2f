package sercos3

// Registers is the register-level HAL contract the cyclic core requires
// from the hardware (or simulated) FPGA interface, per spec §6. It is
// deliberately narrow: word/long MMIO, descriptor writes, DMA-channel
// configuration, and timer/interrupt plumbing are assumed to already work
// underneath it. Implementations live in pkg/hal (pkg/hal/virtual for
// tests, a memory-mapped implementation for real hardware).
type Registers interface {
	// Buffer index acquisition.
	UsableTxBuffer() uint8
	UsableRxBuffer() (p1, p2 uint8)
	RequestNewTxBuffer()
	RequestNewRxBuffer()

	// Validity flags.
	RxBufferValid() (p1, p2 bool)
	ValidTelegramsRegister() uint32

	// Telegram status.
	GetTGSR(port Port) uint32
	ClearTGSR(port Port, bits uint32)

	// Descriptor writes.
	SetRxDescriptor(offset uint16, bufOffset uint32, bufSel uint8, telOffset uint16, kind DescriptorType)
	SetTxDescriptor(offset uint16, bufOffset uint32, bufSel uint8, telOffset uint16, kind DescriptorType)
	SetDescIdxTableOffsetRx(offset uint16)
	SetDescIdxTableOffsetTx(offset uint16)

	// Base-pointer register writes at named indices for Tx and Rx.
	SetRxBufferBase(index uint8, offset uint32)
	SetTxBufferBase(index uint8, offset uint32)

	// Interrupt status.
	GetInterrupt() uint32
	ClearInterrupt(mask uint32)

	// SVC machine control.
	SetSVCTimeouts(busy, hs uint32)
	SetSVCTriggerPort(p Port)
	SetSVCTriggerLastAT(n uint8)
	CtrlSVCRedundancy(on bool)

	// DMA (optional; a Registers implementation that does not support DMA
	// may make these no-ops and report DMAReady() == true always).
	SetDMALocalAddr(dir uint8, channel uint8, addr uint32)
	SetDMAPCIAddr(dir uint8, channel uint8, addr uint32)
	SetDMACounterAddr(dir uint8, channel uint8, addr uint32)
	SetDMARdyAddr(dir uint8, channel uint8, addr uint32)
	ResetRxDMA()
	ResetTxDMA()
	StartRxDMA(channels uint8)
	StartTxDMA(channels uint8)
	EnableRxDMA(channels uint8)
	DMAInProgress() bool
	DMAReady() bool

	// Counters.
	GetTSrefCounter() uint16

	// RAM access: reads/writes are byte-addressed into the named RAM
	// region; bufSel selects one of the M configured buffer sets.
	ReadRxRAM(port Port, bufSel uint8, offset uint32, data []byte)
	WriteTxRAM(bufSel uint8, offset uint32, data []byte)
	ReadTxRAM(bufSel uint8, offset uint32, data []byte)

	// RAM sizing, in bytes, used by the layout builder to detect overflow.
	RxRAMSize() uint32
	TxRAMSize() uint32
}
