// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package spi

import (
	"github.com/mcukit/stm32dev/mmio"
	"golang.org/x/sys/unix"
)

// InterruptMaster is a low-level SPI master driver that pumps the transfer
// purely from the peripheral's interrupts.
//
// After a transfer is started the driver interleaves writes and reads: each
// received word enables the TXE interrupt, and each transmitted word disables
// it again until the next word has been received. The word count therefore
// never runs more than one frame ahead of the reads, which keeps the receive
// FIFO from overflowing regardless of interrupt latency.
type InterruptMaster struct {
	p Peripheral

	observer      Observer
	write         []byte
	read          []byte
	size          int
	readPosition  int
	writePosition int
	dummyData     uint16
	started       bool
}

// NewInterruptMaster creates an interrupt-based driver for an SPI peripheral
// instance.
func NewInterruptMaster(p Peripheral) *InterruptMaster {
	return &InterruptMaster{p: p}
}

// Configure implements Master.Configure.
func (m *InterruptMaster) Configure(mode Mode, clockFrequency uint32, wordLen uint8, lsbFirst bool, dummyData uint16) (uint32, error) {
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
	m.dummyData = dummyData
	return frequency, nil
}

// Start implements Master.Start.
func (m *InterruptMaster) Start() error {
	if m.started {
		return unix.EBADF
	}
	m.p.WriteCr1(initialCr1)
	m.p.WriteCr2(mmio.CR2Frxth | (8-1)<<mmio.CR2DsShift)
	m.started = true
	return nil
}

// Stop implements Master.Stop.
func (m *InterruptMaster) Stop() error {
	if !m.started {
		return unix.EBADF
	}
	if m.transferInProgress() {
		return unix.EBUSY
	}
	// reset peripheral
	m.p.WriteCr1(0)
	m.p.WriteCr2(0)
	m.started = false
	return nil
}

// StartTransfer implements Master.StartTransfer.
func (m *InterruptMaster) StartTransfer(observer Observer, write, read []byte) error {
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
	cr2 := m.p.ReadCr2()
	wordLen := wordLength(cr2)
	if size%wordSize(wordLen) != 0 {
		return unix.EINVAL
	}

	m.observer = observer
	m.write = write
	m.read = read
	m.size = size
	m.readPosition = 0
	m.writePosition = 0

	modifyCr2(m.p, cr2, 0, mmio.CR2Rxneie|mmio.CR2Errie)
	m.writeNextWord(wordLen) // push the first word to start the transfer
	return nil
}

// InterruptHandler processes the peripheral's interrupt.
//
// It is called by the platform IRQ dispatcher and must not be called by user
// code.
func (m *InterruptMaster) InterruptHandler() {
	sr := m.p.ReadSr()
	cr2 := m.p.ReadCr2()
	wordLen := wordLength(cr2)

	if sr&mmio.SROvr != 0 && cr2&mmio.CR2Errie != 0 { // overrun?
		// reading DR and then SR clears the overrun
		m.p.ReadDr(wordLen)
		m.p.ReadSr()
		modifyCr2(m.p, cr2, mmio.CR2Txeie, 0)
		if sr&mmio.SRBsy == 0 {
			m.complete(cr2 &^ mmio.CR2Txeie)
		}
		return
	}

	if sr&mmio.SRRxne != 0 && cr2&mmio.CR2Rxneie != 0 { // read?
		word := m.p.ReadDr(wordLen)
		if m.read != nil {
			m.read[m.readPosition] = uint8(word)
			m.readPosition++
			if wordLen > 8 {
				m.read[m.readPosition] = uint8(word >> 8)
				m.readPosition++
			}
		} else {
			m.readPosition += wordSize(wordLen)
		}
		if m.readPosition == m.size { // transfer finished?
			m.complete(cr2)
			return
		}
		modifyCr2(m.p, cr2, 0, mmio.CR2Txeie) // enable TXE interrupt
		return
	}

	if sr&mmio.SRTxe != 0 && cr2&mmio.CR2Txeie != 0 { // write?
		m.writeNextWord(wordLen)
		modifyCr2(m.p, cr2, mmio.CR2Txeie, 0) // disable TXE interrupt
	}
}

// complete finishes the transfer, clearing all transfer state before the
// observer is notified.
func (m *InterruptMaster) complete(cr2 uint32) {
	modifyCr2(m.p, cr2, mmio.CR2Txeie|mmio.CR2Rxneie|mmio.CR2Errie, 0)

	bytesTransferred := m.readPosition
	m.write = nil
	m.read = nil
	m.size = 0
	m.readPosition = 0
	m.writePosition = 0

	observer := m.observer
	m.observer = nil
	observer.TransferCompleteEvent(bytesTransferred)
}

// writeNextWord pushes the next word of the transfer into the data register.
func (m *InterruptMaster) writeNextWord(wordLen uint8) {
	var word uint16
	if m.write != nil {
		word = uint16(m.write[m.writePosition])
		m.writePosition++
		if wordLen > 8 {
			word |= uint16(m.write[m.writePosition]) << 8
			m.writePosition++
		}
	} else {
		m.writePosition += wordSize(wordLen)
		word = m.dummyData
	}
	m.p.WriteDr(wordLen, word)
}

func (m *InterruptMaster) transferInProgress() bool {
	return m.size != 0
}
