// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package sim

import (
	"github.com/mcukit/stm32dev/sdmmc"
	"golang.org/x/sys/unix"
)

// SDHost is a simulation of a low-level SD/MMC card driver.
//
// Transactions are accepted and held until the test resolves them with
// Complete or Expire, standing in for the host controller's terminal
// interrupt or hardware timeout.
type SDHost struct {
	tracer

	started bool
	busMode sdmmc.BusMode
	clock   uint32

	card     sdmmc.Card
	command  uint8
	argument uint32
	response sdmmc.Response
	transfer sdmmc.Transfer
}

// NewSDHost creates a simulated SD/MMC host controller.
func NewSDHost(options ...Option) *SDHost {
	return &SDHost{tracer: newTracer("sdmmc", options...)}
}

// Configure implements sdmmc.CardLowLevel.Configure.
func (h *SDHost) Configure(busMode sdmmc.BusMode, clockFrequency uint32) error {
	if !h.started {
		return unix.EBADF
	}
	if h.card != nil {
		return unix.EBUSY
	}
	if clockFrequency == 0 {
		return unix.EINVAL
	}
	h.busMode = busMode
	h.clock = clockFrequency
	return nil
}

// Start implements sdmmc.CardLowLevel.Start.
func (h *SDHost) Start() error {
	if h.started {
		return unix.EBADF
	}
	h.started = true
	return nil
}

// Stop implements sdmmc.CardLowLevel.Stop.
func (h *SDHost) Stop() error {
	if !h.started {
		return unix.EBADF
	}
	if h.card != nil {
		return unix.EBUSY
	}
	h.busMode = sdmmc.Bus1Bit
	h.clock = 0
	h.started = false
	return nil
}

// StartTransaction implements sdmmc.CardLowLevel.StartTransaction.
func (h *SDHost) StartTransaction(card sdmmc.Card, command uint8, argument uint32, response sdmmc.Response, transfer sdmmc.Transfer) error {
	if err := sdmmc.CheckTransaction(command, response, transfer); err != nil {
		return err
	}
	if !h.started {
		return unix.EBADF
	}
	if h.card != nil {
		return unix.EBUSY
	}
	h.trace("start", "CMD", uint32(command))
	h.card = card
	h.command = command
	h.argument = argument
	h.response = response
	h.transfer = transfer
	return nil
}

// Command returns the command index of the transaction in progress.
func (h *SDHost) Command() uint8 {
	return h.command
}

// Argument returns the argument of the transaction in progress.
func (h *SDHost) Argument() uint32 {
	return h.argument
}

// BusMode returns the configured bus mode.
func (h *SDHost) BusMode() sdmmc.BusMode {
	return h.busMode
}

// Complete finishes the transaction in progress successfully.
//
// The response words are copied into the caller's response storage and, for
// read transfers, data is copied into the transfer buffer.
func (h *SDHost) Complete(response []uint32, data []byte) {
	copy(h.response, response)
	if h.transfer.Direction() == sdmmc.DirectionRead {
		copy(h.transfer.ReadBuffer(), data)
	}
	h.finish(sdmmc.ResultSuccess)
}

// Expire finishes the transaction in progress with a timeout, as the
// hardware does when the card fails to respond within the transfer timeout.
func (h *SDHost) Expire() {
	h.finish(sdmmc.ResultTimeout)
}

// Fail finishes the transaction in progress with a hardware failure.
func (h *SDHost) Fail() {
	h.finish(sdmmc.ResultFailure)
}

// finish clears the transaction state before the card is notified, so the
// notification may start another transaction.
func (h *SDHost) finish(result sdmmc.Result) {
	card := h.card
	h.card = nil
	h.command = 0
	h.argument = 0
	h.response = nil
	h.transfer = sdmmc.Transfer{}
	card.TransactionCompleteEvent(result)
}
