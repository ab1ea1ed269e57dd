// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package dma

import "github.com/mcukit/stm32dev/mmio"

// Flags describe the parameters of a single transfer.
//
// The bit layout matches the stream CR register, so a set of flags can be
// programmed into the hardware directly. Each field has an explicit zero
// alias so a transfer description reads completely at the call site.
type Flags uint32

// Transfer-complete interrupt selection.
const (
	TransferCompleteInterruptDisable Flags = 0
	TransferCompleteInterruptEnable  Flags = Flags(mmio.SxCRTcie)
)

// Half-transfer interrupt selection.
const (
	HalfTransferInterruptDisable Flags = 0
	HalfTransferInterruptEnable  Flags = Flags(mmio.SxCRHtie)
)

// Flow controller selection.
const (
	DmaFlowController        Flags = 0
	PeripheralFlowController Flags = Flags(mmio.SxCRPfctrl)
)

// Transfer direction.
const (
	PeripheralToMemory Flags = 0 << mmio.SxCRDirShift
	MemoryToPeripheral Flags = 1 << mmio.SxCRDirShift
)

// Peripheral address increment selection.
const (
	PeripheralFixed     Flags = 0
	PeripheralIncrement Flags = Flags(mmio.SxCRPinc)
)

// Memory address increment selection.
const (
	MemoryFixed     Flags = 0
	MemoryIncrement Flags = Flags(mmio.SxCRMinc)
)

// Peripheral data size, bytes per transaction on the peripheral port.
const (
	PeripheralDataSize1 Flags = 0 << mmio.SxCRPsizeShift
	PeripheralDataSize2 Flags = 1 << mmio.SxCRPsizeShift
	PeripheralDataSize4 Flags = 2 << mmio.SxCRPsizeShift
)

// Memory data size, bytes per transaction on the memory port.
const (
	MemoryDataSize1 Flags = 0 << mmio.SxCRMsizeShift
	MemoryDataSize2 Flags = 1 << mmio.SxCRMsizeShift
	MemoryDataSize4 Flags = 2 << mmio.SxCRMsizeShift
)

// Symmetric data size for both ports.
const (
	DataSize1 Flags = PeripheralDataSize1 | MemoryDataSize1
	DataSize2 Flags = PeripheralDataSize2 | MemoryDataSize2
	DataSize4 Flags = PeripheralDataSize4 | MemoryDataSize4
)

// Channel priority.
const (
	LowPriority      Flags = 0 << mmio.SxCRPlShift
	MediumPriority   Flags = 1 << mmio.SxCRPlShift
	HighPriority     Flags = 2 << mmio.SxCRPlShift
	VeryHighPriority Flags = 3 << mmio.SxCRPlShift
)

// Peripheral burst size, beats.
const (
	PeripheralBurstSize1  Flags = 0 << mmio.SxCRPburstShift
	PeripheralBurstSize4  Flags = 1 << mmio.SxCRPburstShift
	PeripheralBurstSize8  Flags = 2 << mmio.SxCRPburstShift
	PeripheralBurstSize16 Flags = 3 << mmio.SxCRPburstShift
)

// Memory burst size, beats.
const (
	MemoryBurstSize1  Flags = 0 << mmio.SxCRMburstShift
	MemoryBurstSize4  Flags = 1 << mmio.SxCRMburstShift
	MemoryBurstSize8  Flags = 2 << mmio.SxCRMburstShift
	MemoryBurstSize16 Flags = 3 << mmio.SxCRMburstShift
)

// Symmetric burst size for both ports.
const (
	BurstSize1  Flags = PeripheralBurstSize1 | MemoryBurstSize1
	BurstSize4  Flags = PeripheralBurstSize4 | MemoryBurstSize4
	BurstSize8  Flags = PeripheralBurstSize8 | MemoryBurstSize8
	BurstSize16 Flags = PeripheralBurstSize16 | MemoryBurstSize16
)

// crMask covers the CR bits that Flags may legally set.
const crMask = mmio.SxCRTcie | mmio.SxCRHtie | mmio.SxCRPfctrl | mmio.SxCRDir |
	mmio.SxCRPinc | mmio.SxCRMinc | mmio.SxCRPsize | mmio.SxCRMsize |
	mmio.SxCRPl | mmio.SxCRPburst | mmio.SxCRMburst

// memoryDataSize returns the memory port transaction size in bytes, or 0 for
// the reserved field encoding.
func (f Flags) memoryDataSize() uintptr {
	return decodeSize(uint32(f) >> mmio.SxCRMsizeShift)
}

// peripheralDataSize returns the peripheral port transaction size in bytes,
// or 0 for the reserved field encoding.
func (f Flags) peripheralDataSize() uintptr {
	return decodeSize(uint32(f) >> mmio.SxCRPsizeShift)
}

// memoryBurstSize returns the memory port burst size in beats.
func (f Flags) memoryBurstSize() uintptr {
	return decodeBurst(uint32(f) >> mmio.SxCRMburstShift)
}

// peripheralBurstSize returns the peripheral port burst size in beats.
func (f Flags) peripheralBurstSize() uintptr {
	return decodeBurst(uint32(f) >> mmio.SxCRPburstShift)
}

func decodeSize(field uint32) uintptr {
	switch field & 0x3 {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	}
	return 0
}

func decodeBurst(field uint32) uintptr {
	switch field & 0x3 {
	case 0:
		return 1
	case 1:
		return 4
	case 2:
		return 8
	}
	return 16
}
