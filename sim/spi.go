// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package sim

import "github.com/mcukit/stm32dev/mmio"

// SPI is a register-level simulation of an SPI peripheral instance.
//
// The shift register completes instantly: every word written to the data
// register is logged, and the next queued receive word becomes available at
// once. An empty receive queue yields idle-high words (0xffff), as an
// undriven bus would.
type SPI struct {
	tracer
	freq uint32

	cr1 uint32
	cr2 uint32
	sr  uint32
	dr  uint16

	rx []uint16
	tx []uint16

	// armed after DR is read while an overrun is pending - the
	// subsequent SR read completes the clearing sequence.
	ovrClearArmed bool
}

// NewSPI creates a simulated SPI peripheral with the given peripheral clock
// frequency.
func NewSPI(peripheralFrequency uint32, options ...Option) *SPI {
	return &SPI{
		tracer: newTracer("spi", options...),
		freq:   peripheralFrequency,
		sr:     mmio.SRTxe,
	}
}

// Frequency returns the peripheral clock frequency, in Hz.
func (p *SPI) Frequency() uint32 {
	return p.freq
}

// ReadCr1 returns the current value of the CR1 register.
func (p *SPI) ReadCr1() uint32 {
	return p.cr1
}

// WriteCr1 writes a value to the CR1 register.
func (p *SPI) WriteCr1(v uint32) {
	p.trace("write", "CR1", v)
	p.cr1 = v
}

// ReadCr2 returns the current value of the CR2 register.
func (p *SPI) ReadCr2() uint32 {
	return p.cr2
}

// WriteCr2 writes a value to the CR2 register.
func (p *SPI) WriteCr2(v uint32) {
	p.trace("write", "CR2", v)
	p.cr2 = v
}

// ReadSr returns the current value of the SR register.
//
// Reading SR after reading DR completes the overrun clearing sequence.
func (p *SPI) ReadSr() uint32 {
	sr := p.sr
	if p.ovrClearArmed {
		p.sr &^= mmio.SROvr
		p.ovrClearArmed = false
	}
	return sr
}

// ReadDr reads one word from the data register, clearing RXNE.
func (p *SPI) ReadDr(wordLength uint8) uint16 {
	if p.sr&mmio.SROvr != 0 {
		p.ovrClearArmed = true
	}
	p.sr &^= mmio.SRRxne
	if wordLength <= 8 {
		return p.dr & 0xff
	}
	return p.dr
}

// WriteDr writes one word to the data register.
//
// The word is logged as shifted out and the next queued receive word becomes
// readable immediately.
func (p *SPI) WriteDr(wordLength uint8, word uint16) {
	p.trace("write", "DR", uint32(word))
	if wordLength <= 8 {
		word &= 0xff
	}
	p.tx = append(p.tx, word)
	p.dr = 0xffff
	if len(p.rx) > 0 {
		p.dr = p.rx[0]
		p.rx = p.rx[1:]
	}
	p.sr |= mmio.SRRxne | mmio.SRTxe
}

// DrAddress returns a stand-in address for the data register.
//
// The simulation performs no bus accesses, so the address only has to be
// well aligned.
func (p *SPI) DrAddress() uintptr {
	return 0x4001300c
}

// QueueRx queues words to be received from the wire, in order.
func (p *SPI) QueueRx(words ...uint16) {
	p.rx = append(p.rx, words...)
}

// TxWords returns the words shifted out so far.
func (p *SPI) TxWords() []uint16 {
	return p.tx
}

// RaiseOverrun raises the overrun flag, as the hardware does when a word
// arrives while RXNE is still set.
func (p *SPI) RaiseOverrun() {
	p.sr |= mmio.SROvr
}

// SetBusy sets or clears the bus-busy flag.
func (p *SPI) SetBusy(busy bool) {
	if busy {
		p.sr |= mmio.SRBsy
		return
	}
	p.sr &^= mmio.SRBsy
}

// PendingInterrupt reports whether an enabled interrupt condition is
// pending.
func (p *SPI) PendingInterrupt() bool {
	if p.sr&mmio.SRRxne != 0 && p.cr2&mmio.CR2Rxneie != 0 {
		return true
	}
	if p.sr&mmio.SRTxe != 0 && p.cr2&mmio.CR2Txeie != 0 {
		return true
	}
	if p.sr&mmio.SROvr != 0 && p.cr2&mmio.CR2Errie != 0 {
		return true
	}
	return false
}
