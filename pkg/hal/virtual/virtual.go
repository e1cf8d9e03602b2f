// Package virtual provides an in-memory fake of the sercos3.Registers
// contract, used by tests and by hosts with no FPGA attached, the way
// pkg/can/virtual fakes a CAN bus for the teacher library.
package virtual

import (
	"sync"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// Registers is an in-memory simulation of the FPGA register window: plain
// byte slices stand in for Rx/Tx RAM, and every register write is recorded
// rather than driving real hardware. DMA is reported as always ready so
// the cyclic engine never blocks.
type Registers struct {
	mu sync.Mutex

	rxRAM [2][sercos3.MaxBufferSets][]byte
	txRAM [sercos3.MaxBufferSets][]byte

	rxRAMSize uint32
	txRAMSize uint32

	usableTx   uint8
	usableRxP1 uint8
	usableRxP2 uint8

	rxValidP1 bool
	rxValidP2 bool

	atValidMask uint32
	tgsr        [2]uint32
	interrupt   uint32
	tsref       uint16

	dmaEnabled    bool
	dmaInProgress bool

	rxDescriptors []descriptorWrite
	txDescriptors []descriptorWrite
}

type descriptorWrite struct {
	Offset    uint16
	BufOffset uint32
	BufSel    uint8
	TelOffset uint16
	Kind      sercos3.DescriptorType
}

// New creates a virtual register set with the given Rx/Tx RAM sizes.
func New(rxRAMSize, txRAMSize uint32) *Registers {
	r := &Registers{rxRAMSize: rxRAMSize, txRAMSize: txRAMSize}
	for p := 0; p < 2; p++ {
		for b := 0; b < sercos3.MaxBufferSets; b++ {
			r.rxRAM[p][b] = make([]byte, rxRAMSize)
		}
	}
	for b := 0; b < sercos3.MaxBufferSets; b++ {
		r.txRAM[b] = make([]byte, txRAMSize)
	}
	return r
}

func (r *Registers) UsableTxBuffer() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usableTx
}

func (r *Registers) UsableRxBuffer() (uint8, uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usableRxP1, r.usableRxP2
}

func (r *Registers) RequestNewTxBuffer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usableTx = (r.usableTx + 1) % sercos3.MaxBufferSets
}

func (r *Registers) RequestNewRxBuffer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usableRxP1 = (r.usableRxP1 + 1) % sercos3.MaxBufferSets
	r.usableRxP2 = (r.usableRxP2 + 1) % sercos3.MaxBufferSets
}

func (r *Registers) RxBufferValid() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rxValidP1, r.rxValidP2
}

// SetRxBufferValid lets tests drive the simulated validity flags.
func (r *Registers) SetRxBufferValid(p1, p2 bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rxValidP1, r.rxValidP2 = p1, p2
}

func (r *Registers) ValidTelegramsRegister() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.atValidMask
}

// SetValidTelegramsRegister lets tests drive the AT-valid bitmask.
func (r *Registers) SetValidTelegramsRegister(mask uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.atValidMask = mask
}

func (r *Registers) GetTGSR(port sercos3.Port) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tgsr[port-1]
}

func (r *Registers) ClearTGSR(port sercos3.Port, bits uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tgsr[port-1] &^= bits
}

// SetTGSR lets tests drive telegram-status register contents.
func (r *Registers) SetTGSR(port sercos3.Port, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tgsr[port-1] = value
}

func (r *Registers) SetRxDescriptor(offset uint16, bufOffset uint32, bufSel uint8, telOffset uint16, kind sercos3.DescriptorType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rxDescriptors = append(r.rxDescriptors, descriptorWrite{offset, bufOffset, bufSel, telOffset, kind})
}

func (r *Registers) SetTxDescriptor(offset uint16, bufOffset uint32, bufSel uint8, telOffset uint16, kind sercos3.DescriptorType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txDescriptors = append(r.txDescriptors, descriptorWrite{offset, bufOffset, bufSel, telOffset, kind})
}

func (r *Registers) SetDescIdxTableOffsetRx(uint16) {}
func (r *Registers) SetDescIdxTableOffsetTx(uint16) {}
func (r *Registers) SetRxBufferBase(uint8, uint32)  {}
func (r *Registers) SetTxBufferBase(uint8, uint32)  {}

func (r *Registers) GetInterrupt() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interrupt
}

func (r *Registers) ClearInterrupt(mask uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupt &^= mask
}

func (r *Registers) SetSVCTimeouts(uint32, uint32)    {}
func (r *Registers) SetSVCTriggerPort(sercos3.Port)   {}
func (r *Registers) SetSVCTriggerLastAT(uint8)        {}
func (r *Registers) CtrlSVCRedundancy(bool)           {}

func (r *Registers) SetDMALocalAddr(uint8, uint8, uint32)   {}
func (r *Registers) SetDMAPCIAddr(uint8, uint8, uint32)     {}
func (r *Registers) SetDMACounterAddr(uint8, uint8, uint32) {}
func (r *Registers) SetDMARdyAddr(uint8, uint8, uint32)     {}

func (r *Registers) ResetRxDMA() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dmaInProgress = false
}

func (r *Registers) ResetTxDMA() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dmaInProgress = false
}

func (r *Registers) StartRxDMA(uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dmaInProgress = true
}

func (r *Registers) StartTxDMA(uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dmaInProgress = true
}

func (r *Registers) EnableRxDMA(uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dmaEnabled = true
}

func (r *Registers) DMAInProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dmaInProgress
}

// DMAReady is always true in the simulator: there is no real transfer
// latency to wait out.
func (r *Registers) DMAReady() bool { return true }

func (r *Registers) GetTSrefCounter() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tsref
}

// SetTSrefCounter lets tests drive the cycle-slot counter.
func (r *Registers) SetTSrefCounter(v uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tsref = v
}

func (r *Registers) ReadRxRAM(port sercos3.Port, bufSel uint8, offset uint32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(data, r.rxRAM[port-1][bufSel][offset:])
}

func (r *Registers) WriteTxRAM(bufSel uint8, offset uint32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(r.txRAM[bufSel][offset:], data)
}

func (r *Registers) ReadTxRAM(bufSel uint8, offset uint32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(data, r.txRAM[bufSel][offset:])
}

func (r *Registers) RxRAMSize() uint32 { return r.rxRAMSize }
func (r *Registers) TxRAMSize() uint32 { return r.txRAMSize }

// WriteRxRAM is a test helper for injecting received telegram bytes.
func (r *Registers) WriteRxRAM(port sercos3.Port, bufSel uint8, offset uint32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(r.rxRAM[port-1][bufSel][offset:], data)
}

var _ sercos3.Registers = (*Registers)(nil)
