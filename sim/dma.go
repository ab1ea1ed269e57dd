// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package sim

import (
	"fmt"
	"unsafe"

	"github.com/mcukit/stm32dev/mmio"
)

// DMA is a register-level simulation of a DMA controller.
//
// Streams are created on demand with Stream. The controller records the
// order of significant stream operations in Trace, which tests use to verify
// sequencing across streams.
type DMA struct {
	tracer
	lisr uint32
	hisr uint32

	streams [8]*Stream

	// Trace records stream enable/disable operations, in order.
	Trace []string
}

// NewDMA creates a simulated DMA controller.
func NewDMA(options ...Option) *DMA {
	return &DMA{tracer: newTracer("dma", options...)}
}

// ReadLisr returns the current value of the LISR register.
func (d *DMA) ReadLisr() uint32 {
	return d.lisr
}

// ReadHisr returns the current value of the HISR register.
func (d *DMA) ReadHisr() uint32 {
	return d.hisr
}

// WriteLifcr clears the given flags in the LISR register.
func (d *DMA) WriteLifcr(v uint32) {
	d.trace("write", "LIFCR", v)
	d.lisr &^= v
}

// WriteHifcr clears the given flags in the HISR register.
func (d *DMA) WriteHifcr(v uint32) {
	d.trace("write", "HIFCR", v)
	d.hisr &^= v
}

// Stream returns the simulated stream with the given id.
func (d *DMA) Stream(id uint8) *Stream {
	if d.streams[id] == nil {
		d.streams[id] = &Stream{dma: d, id: id}
	}
	return d.streams[id]
}

// raise sets interrupt status flags for a stream.
func (d *DMA) raise(stream uint8, flags uint32) {
	flags <<= mmio.StreamShift(stream)
	if stream <= 3 {
		d.lisr |= flags
		return
	}
	d.hisr |= flags
}

// Stream is a register-level simulation of a single DMA stream.
type Stream struct {
	dma *DMA
	id  uint8

	cr   uint32
	ndtr uint32
	par  uintptr
	m0ar uintptr
	fcr  uint32
}

// ID returns the index of the stream within its controller.
func (s *Stream) ID() uint8 {
	return s.id
}

// ReadCr returns the current value of the stream's CR register.
func (s *Stream) ReadCr() uint32 {
	return s.cr
}

// WriteCr writes a value to the stream's CR register.
//
// Unlike the hardware, which lets outstanding bus transactions drain first,
// the simulated stream disables immediately.
func (s *Stream) WriteCr(v uint32) {
	s.dma.trace("write", fmt.Sprintf("S%dCR", s.id), v)
	const activeMask = mmio.SxCREn | mmio.SxCRTcie | mmio.SxCRHtie |
		mmio.SxCRTeie | mmio.SxCRDmeie
	switch {
	case s.cr&mmio.SxCREn == 0 && v&mmio.SxCREn != 0:
		s.dma.Trace = append(s.dma.Trace, fmt.Sprintf("stream%d:start", s.id))
	case s.cr&activeMask != 0 && v&activeMask == 0:
		s.dma.Trace = append(s.dma.Trace, fmt.Sprintf("stream%d:stop", s.id))
	}
	s.cr = v
}

// ReadNdtr returns the current value of the stream's NDTR register.
func (s *Stream) ReadNdtr() uint32 {
	return s.ndtr
}

// WriteNdtr writes a value to the stream's NDTR register.
func (s *Stream) WriteNdtr(v uint32) {
	s.ndtr = v
}

// WritePar writes a peripheral address to the stream's PAR register.
func (s *Stream) WritePar(addr uintptr) {
	s.par = addr
}

// WriteM0ar writes a memory address to the stream's M0AR register.
func (s *Stream) WriteM0ar(addr uintptr) {
	s.m0ar = addr
}

// WriteFcr writes a value to the stream's FCR register.
func (s *Stream) WriteFcr(v uint32) {
	s.fcr = v
}

// PAR returns the programmed peripheral address.
func (s *Stream) PAR() uintptr {
	return s.par
}

// M0AR returns the programmed memory address.
func (s *Stream) M0AR() uintptr {
	return s.m0ar
}

// Enabled reports whether the stream is running.
func (s *Stream) Enabled() bool {
	return s.cr&mmio.SxCREn != 0
}

// Complete finishes the running transfer successfully.
//
// For peripheral-to-memory transfers with memory increment, fill is copied
// to the programmed memory address first, standing in for the data the
// stream would have moved. The transfer-complete flag is raised; the caller
// pumps the channel's interrupt handler to deliver it.
func (s *Stream) Complete(fill []byte) {
	if fill != nil && s.cr&mmio.SxCRDir == 0 && s.cr&mmio.SxCRMinc != 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(s.m0ar)), len(fill)), fill)
	}
	s.ndtr = 0
	s.cr &^= mmio.SxCREn
	s.dma.raise(s.id, mmio.ISRTcif0)
}

// HalfComplete raises the half-transfer flag without stopping the stream.
func (s *Stream) HalfComplete() {
	s.dma.raise(s.id, mmio.ISRHtif0)
}

// Fail aborts the running transfer with the given number of transactions
// outstanding, raising the transfer-error flag.
func (s *Stream) Fail(transactionsLeft int) {
	s.ndtr = uint32(transactionsLeft)
	s.cr &^= mmio.SxCREn
	s.dma.raise(s.id, mmio.ISRTeif0)
}
