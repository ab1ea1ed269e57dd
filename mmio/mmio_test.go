// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package mmio

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestU32(t *testing.T) {
	var r U32
	assert.Zero(t, r.Load())
	r.Store(0x12345678)
	assert.Equal(t, uint32(0x12345678), r.Load())
	r.StoreU16(0xabcd)
	assert.Equal(t, uint16(0xabcd), r.LoadU16())
	r.StoreU8(0x42)
	assert.Equal(t, uint8(0x42), r.LoadU8())
	assert.Equal(t, uintptr(unsafe.Pointer(&r)), r.Addr())
}

func TestSPIRegsLayout(t *testing.T) {
	// register offsets per the reference manual
	assert.Equal(t, uintptr(0x00), unsafe.Offsetof(SPIRegs{}.CR1))
	assert.Equal(t, uintptr(0x04), unsafe.Offsetof(SPIRegs{}.CR2))
	assert.Equal(t, uintptr(0x08), unsafe.Offsetof(SPIRegs{}.SR))
	assert.Equal(t, uintptr(0x0c), unsafe.Offsetof(SPIRegs{}.DR))
	assert.Equal(t, uintptr(0x10), unsafe.Offsetof(SPIRegs{}.CRCPR))
}

func TestDMARegsLayout(t *testing.T) {
	assert.Equal(t, uintptr(0x00), unsafe.Offsetof(DMARegs{}.LISR))
	assert.Equal(t, uintptr(0x04), unsafe.Offsetof(DMARegs{}.HISR))
	assert.Equal(t, uintptr(0x08), unsafe.Offsetof(DMARegs{}.LIFCR))
	assert.Equal(t, uintptr(0x0c), unsafe.Offsetof(DMARegs{}.HIFCR))
	// stream register blocks repeat every 0x18 bytes
	assert.Equal(t, uintptr(0x18), unsafe.Sizeof(StreamRegs{}))
	assert.Equal(t, uintptr(0x14), unsafe.Offsetof(StreamRegs{}.FCR))
}

func TestStreamShift(t *testing.T) {
	shifts := []uint8{0, 6, 16, 22, 0, 6, 16, 22}
	for stream, shift := range shifts {
		assert.Equal(t, shift, StreamShift(uint8(stream)), "stream %d", stream)
	}
}
