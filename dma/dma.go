// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// Package dma is a low-level driver for the DMA streams of STM32 class
// microcontrollers.
//
// A Channel binds one stream of a DMA controller. Channels are shared
// hardware - a user gains exclusive access to one by reserving it through a
// Handle, and holds it until the handle is released:
//
//	var h dma.Handle
//	err := h.Reserve(channel, request, handler)
//	if err != nil {
//		return err
//	}
//	defer h.Release()
//	err = h.ConfigureTransfer(memAddr, periphAddr, n, flags)
//	...
//	err = h.StartTransfer()
//
// Transfers are asynchronous. When the hardware finishes - either the
// expected number of transactions were executed or an error was detected -
// exactly one of the handler's methods is invoked from interrupt context.
package dma

import (
	"sync"

	"github.com/mcukit/stm32dev/mmio"
	"golang.org/x/sys/unix"
)

// MaxRequest is the maximum allowed value for a request identifier - the
// capacity of the stream CR CHSEL field.
const MaxRequest = 0xf

// maxTransactions is the capacity of the hardware transaction counter.
const maxTransactions = 0xffff

// Handler is notified about transfer events on a reserved channel.
//
// Handlers run in interrupt context and must not block. A handler may stop
// the transfer from within a notification, but must not call any other
// channel operation.
type Handler interface {
	// TransferCompleteEvent indicates that the expected number of
	// transactions were executed.
	TransferCompleteEvent()

	// TransferErrorEvent indicates that the transfer was aborted by the
	// hardware with the given number of transactions still outstanding.
	TransferErrorEvent(transactionsLeft int)
}

// HalfTransferHandler is implemented by handlers that enable the
// half-transfer interrupt.
type HalfTransferHandler interface {
	// HalfTransferEvent indicates that half of the expected transactions
	// were executed.
	HalfTransferEvent()
}

// Peripheral provides access to the shared registers of a DMA controller.
type Peripheral interface {
	ReadLisr() uint32
	ReadHisr() uint32
	WriteLifcr(uint32)
	WriteHifcr(uint32)
}

// StreamPeripheral provides access to the registers of a single DMA stream.
type StreamPeripheral interface {
	ID() uint8
	ReadCr() uint32
	WriteCr(uint32)
	ReadNdtr() uint32
	WriteNdtr(uint32)
	WritePar(uintptr)
	WriteM0ar(uintptr)
	WriteFcr(uint32)
}

// Channel is a low-level driver for one DMA stream.
type Channel struct {
	dma    Peripheral
	stream StreamPeripheral

	// mu covers handler and request during reservation and release.
	// The interrupt handler reads them without the lock - it can only
	// observe a reserved channel, as an unreserved channel has all of its
	// interrupt enables cleared.
	mu      sync.Mutex
	handler Handler
	request uint8
}

// NewChannel creates a channel bound to one stream of a DMA controller.
func NewChannel(dma Peripheral, stream StreamPeripheral) *Channel {
	return &Channel{
		dma:    dma,
		stream: stream,
	}
}

// InterruptHandler processes the stream's interrupt.
//
// It is called by the platform IRQ dispatcher and must not be called by user
// code.
func (c *Channel) InterruptHandler() {
	shift := mmio.StreamShift(c.stream.ID())
	tcFlag := mmio.ISRTcif0 << shift
	htFlag := mmio.ISRHtif0 << shift
	teFlag := mmio.ISRTeif0 << shift
	flags := c.readIsr() & (tcFlag | htFlag | teFlag)
	if flags == 0 {
		return
	}

	cr := c.stream.ReadCr()
	var enabled uint32
	if flags&tcFlag != 0 && cr&mmio.SxCRTcie != 0 {
		enabled |= tcFlag
	}
	if flags&htFlag != 0 && cr&mmio.SxCRHtie != 0 {
		enabled |= htFlag
	}
	if flags&teFlag != 0 && cr&mmio.SxCRTeie != 0 {
		enabled |= teFlag
	}
	if enabled == 0 {
		return
	}

	// clear the handled flags before dispatching so the handler may
	// legally restart the channel.
	c.writeIfcr(enabled)

	if enabled&tcFlag != 0 {
		c.handler.TransferCompleteEvent()
	}
	if enabled&htFlag != 0 {
		if h, ok := c.handler.(HalfTransferHandler); ok {
			h.HalfTransferEvent()
		}
	}
	if enabled&teFlag != 0 {
		c.handler.TransferErrorEvent(int(c.stream.ReadNdtr()))
	}
}

func (c *Channel) readIsr() uint32 {
	if c.stream.ID() <= 3 {
		return c.dma.ReadLisr()
	}
	return c.dma.ReadHisr()
}

func (c *Channel) writeIfcr(v uint32) {
	if c.stream.ID() <= 3 {
		c.dma.WriteLifcr(v)
		return
	}
	c.dma.WriteHifcr(v)
}

func (c *Channel) reserve(request uint8, handler Handler) error {
	if request > MaxRequest {
		return unix.EINVAL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler != nil {
		return unix.EBUSY
	}
	c.handler = handler
	c.request = request
	return nil
}

func (c *Channel) release() {
	c.stopTransfer()
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
}

func (c *Channel) configureTransfer(memoryAddress, peripheralAddress uintptr, transactions int, flags Flags) error {
	if c.stream.ReadCr()&mmio.SxCREn != 0 {
		return unix.EBUSY
	}

	memoryDataSize := flags.memoryDataSize()
	peripheralDataSize := flags.peripheralDataSize()
	if memoryDataSize == 0 || peripheralDataSize == 0 {
		return unix.EINVAL
	}
	memoryAlignment := memoryDataSize * flags.memoryBurstSize()
	if memoryAlignment > 16 {
		memoryAlignment = 16
	}
	if memoryAddress%memoryAlignment != 0 {
		return unix.EINVAL
	}
	if peripheralAddress%(peripheralDataSize*flags.peripheralBurstSize()) != 0 {
		return unix.EINVAL
	}
	if transactions <= 0 {
		return unix.EINVAL
	}
	if transactions > maxTransactions {
		return unix.ENOTSUP
	}

	c.stream.WriteCr(uint32(c.request)<<mmio.SxCRChselShift |
		uint32(flags)&crMask |
		mmio.SxCRTeie)
	c.stream.WriteNdtr(uint32(transactions))
	c.stream.WritePar(peripheralAddress)
	c.stream.WriteM0ar(memoryAddress)
	c.stream.WriteFcr(mmio.SxFCRDmdis | mmio.SxFCRFth)
	return nil
}

func (c *Channel) startTransfer() error {
	cr := c.stream.ReadCr()
	if cr&mmio.SxCREn != 0 {
		return unix.EBUSY
	}
	c.stream.WriteCr(cr | mmio.SxCREn)
	return nil
}

func (c *Channel) stopTransfer() {
	cr := c.stream.ReadCr()
	c.stream.WriteCr(cr &^ (mmio.SxCRTcie | mmio.SxCRHtie | mmio.SxCRTeie |
		mmio.SxCRDmeie | mmio.SxCREn))
	// the stream disables itself only once any outstanding bus
	// transaction has drained.
	for c.stream.ReadCr()&mmio.SxCREn != 0 {
	}
	allFlags := mmio.ISRTcif0 | mmio.ISRHtif0 | mmio.ISRTeif0 |
		mmio.ISRDmeif0 | mmio.ISRFeif0
	c.writeIfcr(allFlags << mmio.StreamShift(c.stream.ID()))
}

func (c *Channel) transactionsLeft() int {
	return int(c.stream.ReadNdtr())
}

// Handle provides exclusive access to a reserved channel.
//
// The zero value is an empty handle, not associated with any channel. A
// handle holds at most one reservation - reserving through a handle that
// already holds one releases the previous reservation first. A Handle must
// not be copied.
type Handle struct {
	ch *Channel
}

// Reserve associates the handle with a channel for exclusive use.
//
// The request identifier selects which peripheral drives the channel. The
// handler is notified about transfer events until the handle is released.
func (h *Handle) Reserve(channel *Channel, request uint8, handler Handler) error {
	h.Release()
	if err := channel.reserve(request, handler); err != nil {
		return err
	}
	h.ch = channel
	return nil
}

// Release stops any transfer and returns the channel to the available state.
//
// It is a no-op on an empty handle. A released handle can no longer trigger
// handler callbacks.
func (h *Handle) Release() {
	if h.ch == nil {
		return
	}
	h.ch.release()
	h.ch = nil
}

// Close releases the handle.
func (h *Handle) Close() error {
	h.Release()
	return nil
}

// ConfigureTransfer stores the parameters of a transfer into the channel
// without starting it.
//
// The memory address must be aligned to the memory data size multiplied by
// the memory burst size, capped at 16 bytes; the peripheral address must be
// aligned to the peripheral data size multiplied by the peripheral burst
// size. At most 65535 transactions can be configured.
func (h *Handle) ConfigureTransfer(memoryAddress, peripheralAddress uintptr, transactions int, flags Flags) error {
	if h.ch == nil {
		return unix.EBADF
	}
	return h.ch.configureTransfer(memoryAddress, peripheralAddress, transactions, flags)
}

// StartTransfer starts the configured transfer.
//
// It returns immediately. When the transfer is physically finished - either
// the expected number of transactions were executed or an error was detected
// - one of the handler's methods is invoked from interrupt context.
func (h *Handle) StartTransfer() error {
	if h.ch == nil {
		return unix.EBADF
	}
	return h.ch.startTransfer()
}

// StopTransfer stops any ongoing transfer and clears the pending stream
// flags.
//
// It should also be used after a transfer has finished to restore the
// channel to a clean state. It is safe to call from within a handler
// notification.
func (h *Handle) StopTransfer() error {
	if h.ch == nil {
		return unix.EBADF
	}
	h.ch.stopTransfer()
	return nil
}

// TransactionsLeft returns the current value of the hardware remaining
// transactions counter.
func (h *Handle) TransactionsLeft() (int, error) {
	if h.ch == nil {
		return 0, unix.EBADF
	}
	return h.ch.transactionsLeft(), nil
}
