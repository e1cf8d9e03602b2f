// Package mmap implements sercos3.Registers against a real FPGA register
// window, opened by memory-mapping a PCI-resource or UIO device file the way
// the teacher library's bus_manager.go opens a raw SocketCAN file descriptor.
// pkg/hal/virtual is the in-process stand-in used where no card is present.
package mmap

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	sercos3 "github.com/aschiffler/linuxcnc-sercos3-sub005"
)

// Register and table offsets within the mapped window. Byte positions are
// this package's own layout, not dictated by any wire format; real firmware
// would fix these per the FPGA build.
const (
	regTGSRPort1        = 0x000
	regTGSRPort2        = 0x004
	regTGSRClearPort1   = 0x008
	regTGSRClearPort2   = 0x00C
	regInterruptStatus  = 0x010
	regInterruptClear   = 0x014
	regUsableTxBuffer   = 0x018
	regUsableRxBuffer   = 0x01C // byte 0 = port 1, byte 1 = port 2
	regRequestTxBuffer  = 0x020 // any write advances the buffer toggle
	regRequestRxBuffer  = 0x024
	regRxBufferValid    = 0x028 // bit0 port1, bit1 port2
	regValidTelegrams   = 0x02C
	regTSrefCounter     = 0x030
	regDescIdxTableRx   = 0x034
	regDescIdxTableTx   = 0x038
	regSVCTimeoutBusy   = 0x03C
	regSVCTimeoutHS     = 0x040
	regSVCTriggerPort   = 0x044
	regSVCTriggerLastAT = 0x048
	regSVCRedundancy    = 0x04C

	regRxBufferBaseTable = 0x060 // 16 x u32, indexed by SetRxBufferBase's index
	regTxBufferBaseTable = 0x0A0

	regDMAControl = 0x0E0 // bit0 reset rx strobe, bit1 reset tx strobe,
	// bits[8:16) start-rx channel mask, bits[16:24) start-tx channel mask,
	// bits[24:32) rx-enable channel mask (read-modify-write, persistent)
	regDMAStatus = 0x0E4

	regRxDescTableOff  = 0x1000
	regRxDescTableSize = 0x4000
	regTxDescTableOff  = regRxDescTableOff + regRxDescTableSize
	regTxDescTableSize = 0x4000
	regDMABlockOff     = regTxDescTableOff + regTxDescTableSize
	regTotalSize       = regDMABlockOff + dmaDirCount*dmaChannelCount*dmaBlockSize
)

// descriptorSlotSize is the packed size of one Rx/Tx descriptor record:
// bufOffset(u32) + bufSel(u8) + kind(u8) + telOffset(u16).
const descriptorSlotSize = 8

// DMA per-(direction,channel) block layout, grounded on the bit constants
// CSMD_HAL_DMA_STAT_BUSY/_COMPLETE/_ERROR from the original driver's
// CSMD_HAL_DMA.h.
const (
	dmaLocalAddrOff   = 0x00
	dmaPCIAddrOff     = 0x04
	dmaCounterAddrOff = 0x08
	dmaRdyAddrOff     = 0x0C

	dmaDirCount     = 2
	dmaChannelCount = 4
	dmaBlockSize    = 0x20

	dmaStatBusy     uint32 = 0x00000100
	dmaStatComplete uint32 = 0x00000200
	dmaStatError    uint32 = 0x00000400
)

// Registers drives a memory-mapped Sercos III FPGA core. The mapped window
// holds, in order: the scalar/control registers, the Rx and Tx descriptor
// tables, the DMA channel blocks, and finally the Rx/Tx packet RAM regions
// sized for the caller's buffer-set count.
type Registers struct {
	mu sync.Mutex

	f   *os.File
	mem []byte

	rxRAMSize   uint32
	txRAMSize   uint32
	rxRAMOffset uint32
	txRAMOffset uint32
}

// Open maps devicePath (a PCI-resource or UIO file) and lays out Rx/Tx
// packet RAM for sercos3.MaxBufferSets buffer sets of the given sizes.
func Open(devicePath string, rxRAMSize, txRAMSize uint32) (*Registers, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("hal/mmap: open %s: %w", devicePath, err)
	}

	rxRegion := 2 * uint32(sercos3.MaxBufferSets) * rxRAMSize
	txRegion := uint32(sercos3.MaxBufferSets) * txRAMSize
	rxOffset := uint32(regTotalSize)
	txOffset := rxOffset + rxRegion
	total := int(txOffset + txRegion)

	mem, err := unix.Mmap(int(f.Fd()), 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hal/mmap: mmap %s: %w", devicePath, err)
	}
	if err := unix.Madvise(mem, unix.MADV_DONTFORK); err != nil {
		unix.Munmap(mem)
		f.Close()
		return nil, fmt.Errorf("hal/mmap: madvise %s: %w", devicePath, err)
	}

	return &Registers{
		f: f, mem: mem,
		rxRAMSize: rxRAMSize, txRAMSize: txRAMSize,
		rxRAMOffset: rxOffset, txRAMOffset: txOffset,
	}, nil
}

// Close unmaps the register window and closes the underlying device file.
func (r *Registers) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := unix.Munmap(r.mem); err != nil {
		return fmt.Errorf("hal/mmap: munmap: %w", err)
	}
	return r.f.Close()
}

func (r *Registers) u32(off int) uint32          { return binary.LittleEndian.Uint32(r.mem[off:]) }
func (r *Registers) putU32(off int, v uint32)    { binary.LittleEndian.PutUint32(r.mem[off:], v) }
func (r *Registers) u16(off int) uint16          { return binary.LittleEndian.Uint16(r.mem[off:]) }
func (r *Registers) putU16(off int, v uint16)    { binary.LittleEndian.PutUint16(r.mem[off:], v) }

func (r *Registers) UsableTxBuffer() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mem[regUsableTxBuffer]
}

func (r *Registers) UsableRxBuffer() (uint8, uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mem[regUsableRxBuffer], r.mem[regUsableRxBuffer+1]
}

func (r *Registers) RequestNewTxBuffer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regRequestTxBuffer, 1)
}

func (r *Registers) RequestNewRxBuffer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regRequestRxBuffer, 1)
}

func (r *Registers) RxBufferValid() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.u32(regRxBufferValid)
	return v&0x1 != 0, v&0x2 != 0
}

func (r *Registers) ValidTelegramsRegister() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.u32(regValidTelegrams)
}

func (r *Registers) GetTGSR(port sercos3.Port) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.u32(r.tgsrOffset(port))
}

func (r *Registers) ClearTGSR(port sercos3.Port, bits uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	off := regTGSRClearPort1
	if port == sercos3.Port2 {
		off = regTGSRClearPort2
	}
	r.putU32(off, bits) // write-one-to-clear
}

func (r *Registers) tgsrOffset(port sercos3.Port) int {
	if port == sercos3.Port2 {
		return regTGSRPort2
	}
	return regTGSRPort1
}

func (r *Registers) descriptor(table int, offset uint16, bufOffset uint32, bufSel uint8, telOffset uint16, kind sercos3.DescriptorType) {
	slot := table + int(offset)*descriptorSlotSize
	r.putU32(slot, bufOffset)
	r.mem[slot+4] = bufSel
	r.mem[slot+5] = uint8(kind)
	r.putU16(slot+6, telOffset)
}

func (r *Registers) SetRxDescriptor(offset uint16, bufOffset uint32, bufSel uint8, telOffset uint16, kind sercos3.DescriptorType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptor(regRxDescTableOff, offset, bufOffset, bufSel, telOffset, kind)
}

func (r *Registers) SetTxDescriptor(offset uint16, bufOffset uint32, bufSel uint8, telOffset uint16, kind sercos3.DescriptorType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptor(regTxDescTableOff, offset, bufOffset, bufSel, telOffset, kind)
}

func (r *Registers) SetDescIdxTableOffsetRx(offset uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU16(regDescIdxTableRx, offset)
}

func (r *Registers) SetDescIdxTableOffsetTx(offset uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU16(regDescIdxTableTx, offset)
}

func (r *Registers) SetRxBufferBase(index uint8, offset uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regRxBufferBaseTable+int(index)*4, offset)
}

func (r *Registers) SetTxBufferBase(index uint8, offset uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regTxBufferBaseTable+int(index)*4, offset)
}

func (r *Registers) GetInterrupt() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.u32(regInterruptStatus)
}

func (r *Registers) ClearInterrupt(mask uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regInterruptClear, mask)
}

func (r *Registers) SetSVCTimeouts(busy, hs uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regSVCTimeoutBusy, busy)
	r.putU32(regSVCTimeoutHS, hs)
}

func (r *Registers) SetSVCTriggerPort(p sercos3.Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mem[regSVCTriggerPort] = uint8(p)
}

func (r *Registers) SetSVCTriggerLastAT(n uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mem[regSVCTriggerLastAT] = n
}

func (r *Registers) CtrlSVCRedundancy(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.mem[regSVCRedundancy] = 1
	} else {
		r.mem[regSVCRedundancy] = 0
	}
}

func (r *Registers) dmaBlock(dir, channel uint8) int {
	return regDMABlockOff + (int(dir)*dmaChannelCount+int(channel))*dmaBlockSize
}

func (r *Registers) SetDMALocalAddr(dir, channel uint8, addr uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(r.dmaBlock(dir, channel)+dmaLocalAddrOff, addr)
}

func (r *Registers) SetDMAPCIAddr(dir, channel uint8, addr uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(r.dmaBlock(dir, channel)+dmaPCIAddrOff, addr)
}

func (r *Registers) SetDMACounterAddr(dir, channel uint8, addr uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(r.dmaBlock(dir, channel)+dmaCounterAddrOff, addr)
}

func (r *Registers) SetDMARdyAddr(dir, channel uint8, addr uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(r.dmaBlock(dir, channel)+dmaRdyAddrOff, addr)
}

func (r *Registers) ResetRxDMA() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regDMAControl, 0x1)
}

func (r *Registers) ResetTxDMA() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regDMAControl, 0x2)
}

func (r *Registers) StartRxDMA(channels uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regDMAControl, uint32(channels)<<8)
}

func (r *Registers) StartTxDMA(channels uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putU32(regDMAControl, uint32(channels)<<16)
}

func (r *Registers) EnableRxDMA(channels uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.u32(regDMAControl)
	v = v&0x00FFFFFF | uint32(channels)<<24
	r.putU32(regDMAControl, v)
}

func (r *Registers) DMAInProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.u32(regDMAStatus)&dmaStatBusy != 0
}

func (r *Registers) DMAReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.u32(regDMAStatus)
	return status&dmaStatError == 0 && (status&dmaStatBusy == 0 || status&dmaStatComplete != 0)
}

func (r *Registers) GetTSrefCounter() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.u16(regTSrefCounter)
}

func (r *Registers) rxRAMBase(port sercos3.Port, bufSel uint8) uint32 {
	portIndex := uint32(0)
	if port == sercos3.Port2 {
		portIndex = 1
	}
	return r.rxRAMOffset + (portIndex*uint32(sercos3.MaxBufferSets)+uint32(bufSel))*r.rxRAMSize
}

func (r *Registers) ReadRxRAM(port sercos3.Port, bufSel uint8, offset uint32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := r.rxRAMBase(port, bufSel) + offset
	copy(data, r.mem[base:])
}

func (r *Registers) txRAMBase(bufSel uint8) uint32 {
	return r.txRAMOffset + uint32(bufSel)*r.txRAMSize
}

func (r *Registers) WriteTxRAM(bufSel uint8, offset uint32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := r.txRAMBase(bufSel) + offset
	copy(r.mem[base:], data)
}

func (r *Registers) ReadTxRAM(bufSel uint8, offset uint32, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := r.txRAMBase(bufSel) + offset
	copy(data, r.mem[base:])
}

func (r *Registers) RxRAMSize() uint32 { return r.rxRAMSize }
func (r *Registers) TxRAMSize() uint32 { return r.txRAMSize }

var _ sercos3.Registers = (*Registers)(nil)
