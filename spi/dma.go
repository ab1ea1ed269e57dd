// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package spi

import (
	"unsafe"

	"github.com/mcukit/stm32dev/dma"
	"github.com/mcukit/stm32dev/mmio"
	"golang.org/x/sys/unix"
)

// DMAMaster is a low-level SPI master driver that offloads the transfer to a
// pair of DMA channels attached to the peripheral's data register.
//
// The RX channel drains the data register at very high priority; the TX
// channel feeds it at low priority. The RX channel necessarily finishes last
// on a full-duplex bus, so its transfer-complete interrupt is the one that
// terminates the transfer. An error on either channel terminates the
// transfer with the partial byte count.
type DMAMaster struct {
	p Peripheral

	rxChannel *dma.Channel
	txChannel *dma.Channel
	rxRequest uint8
	txRequest uint8
	rxHandle  dma.Handle
	txHandle  dma.Handle
	rxHandler rxDMAHandler
	txHandler txDMAHandler

	observer    Observer
	size        int
	wordLen     uint8
	txDummyData uint16
	rxDummyData uint16
	started     bool
}

// NewDMAMaster creates a DMA-based driver for an SPI peripheral instance.
//
// The request identifiers select the SPI RX and TX request lines on the
// respective channels; the board's DMA request mapping table defines them.
func NewDMAMaster(p Peripheral, rxChannel *dma.Channel, rxRequest uint8, txChannel *dma.Channel, txRequest uint8) *DMAMaster {
	m := &DMAMaster{
		p:         p,
		rxChannel: rxChannel,
		txChannel: txChannel,
		rxRequest: rxRequest,
		txRequest: txRequest,
	}
	m.rxHandler.owner = m
	m.txHandler.owner = m
	return m
}

// Configure implements Master.Configure.
func (m *DMAMaster) Configure(mode Mode, clockFrequency uint32, wordLen uint8, lsbFirst bool, dummyData uint16) (uint32, error) {
	if wordLen < MinWordLength || wordLen > MaxWordLength {
		return 0, unix.EINVAL
	}
	if !m.started {
		return 0, unix.EBADF
	}
	if m.transferInProgress() {
		return 0, unix.EBUSY
	}
	frequency, err := configurePeripheral(m.p, mode, clockFrequency, wordLen, lsbFirst)
	if err != nil {
		return 0, err
	}
	m.txDummyData = dummyData
	m.wordLen = wordLen
	return frequency, nil
}

// Start implements Master.Start.
//
// Both DMA channels are reserved until the driver is stopped; if the TX
// channel cannot be reserved the RX reservation is rolled back.
func (m *DMAMaster) Start() error {
	if m.started {
		return unix.EBADF
	}
	if err := m.rxHandle.Reserve(m.rxChannel, m.rxRequest, &m.rxHandler); err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			m.rxHandle.Release()
		}
	}()
	if err := m.txHandle.Reserve(m.txChannel, m.txRequest, &m.txHandler); err != nil {
		return err
	}
	ok = true

	m.wordLen = 8
	m.p.WriteCr1(initialCr1)
	m.p.WriteCr2(mmio.CR2Frxth | (8-1)<<mmio.CR2DsShift | mmio.CR2Txdmaen | mmio.CR2Rxdmaen)
	m.started = true
	return nil
}

// Stop implements Master.Stop.
func (m *DMAMaster) Stop() error {
	if !m.started {
		return unix.EBADF
	}
	if m.transferInProgress() {
		return unix.EBUSY
	}
	m.rxHandle.Release()
	m.txHandle.Release()
	// reset peripheral
	m.p.WriteCr1(0)
	m.p.WriteCr2(0)
	m.started = false
	return nil
}

// StartTransfer implements Master.StartTransfer.
func (m *DMAMaster) StartTransfer(observer Observer, write, read []byte) error {
	size, err := transferSize(write, read)
	if err != nil {
		return err
	}
	if size == 0 {
		return unix.EINVAL
	}
	if !m.started {
		return unix.EBADF
	}
	if m.transferInProgress() {
		return unix.EBUSY
	}
	dataSize := wordSize(m.wordLen)
	if size%dataSize != 0 {
		return unix.EINVAL
	}
	transactions := size / dataSize

	commonFlags := dma.PeripheralFixed | dma.DataSize1
	if dataSize == 2 {
		commonFlags = dma.PeripheralFixed | dma.DataSize2
	}

	memoryAddress := uintptr(unsafe.Pointer(&m.rxDummyData))
	rxFlags := dma.TransferCompleteInterruptEnable |
		dma.PeripheralToMemory |
		dma.MemoryFixed |
		dma.VeryHighPriority
	if read != nil {
		memoryAddress = uintptr(unsafe.Pointer(&read[0]))
		rxFlags |= dma.MemoryIncrement
	}
	if err := m.rxHandle.ConfigureTransfer(memoryAddress, m.p.DrAddress(), transactions, commonFlags|rxFlags); err != nil {
		return err
	}

	memoryAddress = uintptr(unsafe.Pointer(&m.txDummyData))
	txFlags := dma.TransferCompleteInterruptDisable |
		dma.MemoryToPeripheral |
		dma.LowPriority
	if write != nil {
		memoryAddress = uintptr(unsafe.Pointer(&write[0]))
		txFlags |= dma.MemoryIncrement
	}
	if err := m.txHandle.ConfigureTransfer(memoryAddress, m.p.DrAddress(), transactions, commonFlags|txFlags); err != nil {
		return err
	}

	m.observer = observer
	m.size = size

	// starting cannot fail here - both channels were just configured.
	// RX starts first; starting TX initiates the clocking.
	m.rxHandle.StartTransfer()
	m.txHandle.StartTransfer()
	return nil
}

// eventHandler finishes the transfer with the given number of transactions
// outstanding on the RX channel.
//
// TX is stopped before RX so no further words are pushed while the RX
// channel drains.
func (m *DMAMaster) eventHandler(transactionsLeft int) {
	m.txHandle.StopTransfer()
	m.rxHandle.StopTransfer()

	bytesTransferred := m.size - transactionsLeft*wordSize(m.wordLen)
	m.size = 0

	observer := m.observer
	m.observer = nil
	observer.TransferCompleteEvent(bytesTransferred)
}

func (m *DMAMaster) transferInProgress() bool {
	return m.size != 0
}

// rxDMAHandler terminates the transfer on either outcome of the RX channel.
type rxDMAHandler struct {
	owner *DMAMaster
}

func (h *rxDMAHandler) TransferCompleteEvent() {
	h.owner.eventHandler(0)
}

func (h *rxDMAHandler) TransferErrorEvent(transactionsLeft int) {
	h.owner.eventHandler(transactionsLeft)
}

// txDMAHandler terminates the transfer only on error - the TX
// transfer-complete interrupt is not enabled, as completion of the transmit
// side says nothing about the words still in flight on the bus.
type txDMAHandler struct {
	owner *DMAMaster
}

func (h *txDMAHandler) TransferCompleteEvent() {
}

func (h *txDMAHandler) TransferErrorEvent(transactionsLeft int) {
	h.owner.eventHandler(transactionsLeft)
}
