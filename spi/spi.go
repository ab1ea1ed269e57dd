// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// Package spi provides low-level SPI master drivers for STM32 class
// microcontrollers.
//
// Two variants are available with an identical external contract, so a board
// can select either at build time: InterruptMaster drives the peripheral
// purely from the TXE/RXNE interrupts, DMAMaster programs a pair of DMA
// channels attached to the peripheral's data register.
//
// Transfers are asynchronous and full-duplex. A transfer is started with
// StartTransfer and finishes with a single TransferCompleteEvent notification
// delivered from interrupt context. The drivers do not manage slave select -
// that is the caller's responsibility.
package spi

import (
	"math/bits"

	"github.com/mcukit/stm32dev/mmio"
	"golang.org/x/sys/unix"
)

// Word length limits of the peripheral, bits.
const (
	MinWordLength = 4
	MaxWordLength = 16
)

// Mode is the SPI clock polarity/phase mode.
type Mode int

const (
	// Mode0 samples on the first edge of an idle-low clock.
	Mode0 Mode = iota

	// Mode1 samples on the second edge of an idle-low clock.
	Mode1

	// Mode2 samples on the first edge of an idle-high clock.
	Mode2

	// Mode3 samples on the second edge of an idle-high clock.
	Mode3
)

func (m Mode) String() string {
	switch m {
	case Mode0:
		return "mode0"
	case Mode1:
		return "mode1"
	case Mode2:
		return "mode2"
	case Mode3:
		return "mode3"
	}
	return "unknown"
}

// cpol returns the clock polarity of the mode.
func (m Mode) cpol() bool {
	return m == Mode2 || m == Mode3
}

// cpha returns the clock phase of the mode.
func (m Mode) cpha() bool {
	return m == Mode1 || m == Mode3
}

// Observer is notified about a completed transfer.
//
// The notification runs in interrupt context and must not block. The driver
// clears all of its transfer state, including its reference to the observer,
// before dispatching, so the observer may legally start another transfer
// from within the notification.
type Observer interface {
	// TransferCompleteEvent indicates that the transfer finished, with
	// the number of bytes that were physically transferred.
	TransferCompleteEvent(bytesTransferred int)
}

// Master is the contract shared by the low-level SPI master driver variants.
type Master interface {
	// Configure sets the parameters of the peripheral and returns the
	// effective clock frequency, which is the highest frequency not
	// above the requested one that the peripheral clock dividers can
	// produce. A requested frequency of 0 selects the minimum bit rate.
	Configure(mode Mode, clockFrequency uint32, wordLength uint8, lsbFirst bool, dummyData uint16) (uint32, error)

	// Start starts the driver, configuring the peripheral as a master
	// with software slave management at the minimum bit rate.
	Start() error

	// Stop stops the driver, leaving the control registers in their
	// reset state.
	Stop() error

	// StartTransfer starts an asynchronous full-duplex transfer.
	//
	// When write is nil the configured dummy data is clocked out; when
	// read is nil the incoming bytes are discarded. When both are
	// provided they must be of equal length. The length must be a
	// positive multiple of the configured word size.
	StartTransfer(observer Observer, write, read []byte) error
}

// Peripheral provides access to the registers of an SPI peripheral instance.
type Peripheral interface {
	// Frequency returns the peripheral clock frequency, in Hz.
	Frequency() uint32

	ReadCr1() uint32
	WriteCr1(uint32)
	ReadCr2() uint32
	WriteCr2(uint32)
	ReadSr() uint32

	// ReadDr and WriteDr access the data register with the access width
	// implied by the word length - byte-wide for word lengths of 8 bits
	// or less, half-word-wide above.
	ReadDr(wordLength uint8) uint16
	WriteDr(wordLength uint8, word uint16)

	// DrAddress returns the physical address of the data register, for
	// use as a DMA peripheral address.
	DrAddress() uintptr
}

// initialCr1 is the CR1 state of a freshly started driver: master mode,
// software slave management, minimum bit rate, peripheral enabled.
const initialCr1 = mmio.CR1Ssm | mmio.CR1Ssi | mmio.CR1Spe | mmio.CR1Br | mmio.CR1Mstr

// wordLength extracts the configured word length from a CR2 value.
func wordLength(cr2 uint32) uint8 {
	return uint8((cr2&mmio.CR2Ds)>>mmio.CR2DsShift) + 1
}

// wordSize returns the size of a frame in bytes for the given word length.
func wordSize(wordLen uint8) int {
	return (int(wordLen) + 7) / 8
}

// modifyCr1 clears and sets bits in the CR1 register, returning the value
// written.
func modifyCr1(p Peripheral, cr1, clear, set uint32) uint32 {
	cr1 = cr1&^clear | set
	p.WriteCr1(cr1)
	return cr1
}

// modifyCr2 clears and sets bits in the CR2 register, returning the value
// written.
func modifyCr2(p Peripheral, cr2, clear, set uint32) uint32 {
	cr2 = cr2&^clear | set
	p.WriteCr2(cr2)
	return cr2
}

// configurePeripheral applies mode, bit rate, word length and bit order to
// the peripheral and returns the effective clock frequency.
func configurePeripheral(p Peripheral, mode Mode, clockFrequency uint32, wordLen uint8, lsbFirst bool) (uint32, error) {
	peripheralFrequency := p.Frequency()
	divider := uint32(256)
	if clockFrequency != 0 {
		divider = (peripheralFrequency + clockFrequency - 1) / clockFrequency
	}
	if divider > 256 {
		return 0, unix.EINVAL
	}
	var br uint32
	if divider > 2 {
		br = uint32(bits.Len32(divider-1)) - 1
	}

	var set uint32
	if lsbFirst {
		set |= mmio.CR1Lsbfirst
	}
	set |= br << mmio.CR1BrShift
	if mode.cpol() {
		set |= mmio.CR1Cpol
	}
	if mode.cpha() {
		set |= mmio.CR1Cpha
	}
	modifyCr1(p, p.ReadCr1(), mmio.CR1Lsbfirst|mmio.CR1Br|mmio.CR1Cpol|mmio.CR1Cpha, set)

	set = uint32(wordLen-1) << mmio.CR2DsShift
	if wordLen <= 8 {
		set |= mmio.CR2Frxth
	}
	modifyCr2(p, p.ReadCr2(), mmio.CR2Frxth|mmio.CR2Ds, set)

	return peripheralFrequency / (1 << (br + 1)), nil
}

// transferSize returns the length in bytes of the transfer described by the
// write and read buffers.
func transferSize(write, read []byte) (int, error) {
	if write != nil && read != nil && len(write) != len(read) {
		return 0, unix.EINVAL
	}
	if write != nil {
		return len(write), nil
	}
	return len(read), nil
}
