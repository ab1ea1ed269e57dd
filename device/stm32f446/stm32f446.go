// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// Package stm32f446 provides the peripheral layout of the STM32F446 for
// stm32dev.
package stm32f446

import (
	"github.com/mcukit/stm32dev/dma"
	"github.com/mcukit/stm32dev/mmio"
	"github.com/mcukit/stm32dev/spi"
)

// Peripheral base addresses.
const (
	SPI1Base uintptr = 0x40013000
	SPI2Base uintptr = 0x40003800
	SPI3Base uintptr = 0x40003c00
	SPI4Base uintptr = 0x40013400
	DMA1Base uintptr = 0x40026000
	DMA2Base uintptr = 0x40026400
)

// IRQ numbers.
const (
	SPI1IRQ = 35
	SPI2IRQ = 36
	SPI3IRQ = 51
	SPI4IRQ = 84

	DMA1Stream0IRQ = 11
	DMA1Stream5IRQ = 16
	DMA2Stream0IRQ = 56
	DMA2Stream3IRQ = 59
)

// DMA request mapping for the SPI peripherals.
//
// SPI1 is served by DMA2, SPI3 by DMA1, per the request mapping table of the
// reference manual.
const (
	SPI1RxStream  uint8 = 0
	SPI1RxRequest uint8 = 3
	SPI1TxStream  uint8 = 3
	SPI1TxRequest uint8 = 3

	SPI3RxStream  uint8 = 0
	SPI3RxRequest uint8 = 0
	SPI3TxStream  uint8 = 5
	SPI3TxRequest uint8 = 0
)

// Default bus clock frequencies, Hz, for the stock clock tree.
const (
	APB1Frequency = 45000000
	APB2Frequency = 90000000
)

// DMA1 maps the DMA1 controller.
func DMA1() *mmio.DMA {
	return mmio.NewDMA(DMA1Base)
}

// DMA2 maps the DMA2 controller.
func DMA2() *mmio.DMA {
	return mmio.NewDMA(DMA2Base)
}

// SPI1InterruptMaster creates the interrupt-based driver for SPI1.
func SPI1InterruptMaster() *spi.InterruptMaster {
	return spi.NewInterruptMaster(mmio.NewSPI(SPI1Base, APB2Frequency))
}

// SPI1DMAMaster creates the DMA-based driver for SPI1, on its DMA2 streams.
func SPI1DMAMaster() *spi.DMAMaster {
	controller := DMA2()
	rx := dma.NewChannel(controller, controller.Stream(SPI1RxStream))
	tx := dma.NewChannel(controller, controller.Stream(SPI1TxStream))
	return spi.NewDMAMaster(mmio.NewSPI(SPI1Base, APB2Frequency),
		rx, SPI1RxRequest, tx, SPI1TxRequest)
}

// SPI3InterruptMaster creates the interrupt-based driver for SPI3.
func SPI3InterruptMaster() *spi.InterruptMaster {
	return spi.NewInterruptMaster(mmio.NewSPI(SPI3Base, APB1Frequency))
}

// SPI3DMAMaster creates the DMA-based driver for SPI3, on its DMA1 streams.
func SPI3DMAMaster() *spi.DMAMaster {
	controller := DMA1()
	rx := dma.NewChannel(controller, controller.Stream(SPI3RxStream))
	tx := dma.NewChannel(controller, controller.Stream(SPI3TxStream))
	return spi.NewDMAMaster(mmio.NewSPI(SPI3Base, APB1Frequency),
		rx, SPI3RxRequest, tx, SPI3TxRequest)
}
