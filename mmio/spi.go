// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package mmio

import "unsafe"

// SPI CR1 register bits.
const (
	CR1Cpha     uint32 = 1 << 0
	CR1Cpol     uint32 = 1 << 1
	CR1Mstr     uint32 = 1 << 2
	CR1BrShift         = 3
	CR1Br       uint32 = 0x7 << CR1BrShift
	CR1Spe      uint32 = 1 << 6
	CR1Lsbfirst uint32 = 1 << 7
	CR1Ssi      uint32 = 1 << 8
	CR1Ssm      uint32 = 1 << 9
)

// SPI CR2 register bits.
const (
	CR2Rxdmaen uint32 = 1 << 0
	CR2Txdmaen uint32 = 1 << 1
	CR2Errie   uint32 = 1 << 5
	CR2Rxneie  uint32 = 1 << 6
	CR2Txeie   uint32 = 1 << 7
	CR2DsShift        = 8
	CR2Ds      uint32 = 0xf << CR2DsShift
	CR2Frxth   uint32 = 1 << 12
)

// SPI SR register bits.
const (
	SRRxne uint32 = 1 << 0
	SRTxe  uint32 = 1 << 1
	SRModf uint32 = 1 << 5
	SROvr  uint32 = 1 << 6
	SRBsy  uint32 = 1 << 7
)

// SPIRegs is the register file of an SPI peripheral instance.
type SPIRegs struct {
	CR1    U32
	CR2    U32
	SR     U32
	DR     U32
	CRCPR  U32
	RXCRCR U32
	TXCRCR U32
}

// SPI provides access to the registers of a single SPI peripheral instance.
//
// The peripheral clock frequency is the frequency of the bus the instance
// hangs off (APB1 or APB2), which the board configuration knows.
type SPI struct {
	regs *SPIRegs
	freq uint32
}

// NewSPI maps the SPI register file at base.
func NewSPI(base uintptr, peripheralFrequency uint32) *SPI {
	return &SPI{
		regs: (*SPIRegs)(unsafe.Pointer(base)),
		freq: peripheralFrequency,
	}
}

// Frequency returns the peripheral clock frequency, in Hz.
func (p *SPI) Frequency() uint32 {
	return p.freq
}

// ReadCr1 returns the current value of the CR1 register.
func (p *SPI) ReadCr1() uint32 {
	return p.regs.CR1.Load()
}

// WriteCr1 writes a value to the CR1 register.
func (p *SPI) WriteCr1(v uint32) {
	p.regs.CR1.Store(v)
}

// ReadCr2 returns the current value of the CR2 register.
func (p *SPI) ReadCr2() uint32 {
	return p.regs.CR2.Load()
}

// WriteCr2 writes a value to the CR2 register.
func (p *SPI) WriteCr2(v uint32) {
	p.regs.CR2.Store(v)
}

// ReadSr returns the current value of the SR register.
func (p *SPI) ReadSr() uint32 {
	return p.regs.SR.Load()
}

// ReadDr reads one word from the data register.
//
// The access must be byte-wide for word lengths of 8 bits or less, otherwise
// the RX FIFO would return two packed frames.
func (p *SPI) ReadDr(wordLength uint8) uint16 {
	if wordLength <= 8 {
		return uint16(p.regs.DR.LoadU8())
	}
	return p.regs.DR.LoadU16()
}

// WriteDr writes one word to the data register.
//
// The access must be byte-wide for word lengths of 8 bits or less, otherwise
// the TX FIFO would queue two frames.
func (p *SPI) WriteDr(wordLength uint8, word uint16) {
	if wordLength <= 8 {
		p.regs.DR.StoreU8(uint8(word))
		return
	}
	p.regs.DR.StoreU16(word)
}

// DrAddress returns the physical address of the data register, for use as a
// DMA peripheral address.
func (p *SPI) DrAddress() uintptr {
	return p.regs.DR.Addr()
}
