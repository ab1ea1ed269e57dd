// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// Package sdmmc defines the contract of low-level SD/MMC card drivers.
//
// A driver executes asynchronous transactions: a command with its argument
// is sent to the card, the response of the expected width is captured into
// caller storage, and an optional data transfer is performed, all as a
// single operation finishing with one TransactionCompleteEvent notification.
// The command encoding and the card protocol above the transaction primitive
// are the concern of the layers either side of this one.
package sdmmc

import (
	"time"

	"golang.org/x/sys/unix"
)

// MaxCommand is the maximum allowed command index.
const MaxCommand = 63

// BusMode is the width of the data bus between host and card.
type BusMode uint8

const (
	// Bus1Bit transfers data on a single line.
	Bus1Bit BusMode = iota

	// Bus4Bit transfers data on four lines.
	Bus4Bit

	// Bus8Bit transfers data on eight lines.
	Bus8Bit
)

func (m BusMode) String() string {
	switch m {
	case Bus1Bit:
		return "1-bit"
	case Bus4Bit:
		return "4-bit"
	case Bus8Bit:
		return "8-bit"
	}
	return "unknown"
}

// Response is the caller storage into which a command response is captured.
//
// Its length determines the expected response width: empty for commands with
// no response, one word for a short response, four words for a long one.
type Response []uint32

// ShortResponse wraps storage for a 32-bit response.
func ShortResponse(response *[1]uint32) Response {
	return response[:]
}

// LongResponse wraps storage for a 128-bit response.
func LongResponse(response *[4]uint32) Response {
	return response[:]
}

// Direction indicates the direction of the data transfer attached to a
// transaction.
type Direction int

const (
	// DirectionNone indicates no data transfer is attached.
	DirectionNone Direction = iota

	// DirectionRead indicates a card-to-host transfer.
	DirectionRead

	// DirectionWrite indicates a host-to-card transfer.
	DirectionWrite
)

// Transfer describes the data transfer attached to a transaction.
//
// The zero value attaches no transfer.
type Transfer struct {
	read      []byte
	write     []byte
	blockSize int
	timeout   time.Duration
}

// ReadTransfer describes a card-to-host transfer into buf.
//
// The length of buf must be a multiple of the block size. The timeout is
// applied per block.
func ReadTransfer(buf []byte, blockSize int, timeout time.Duration) Transfer {
	return Transfer{
		read:      buf,
		blockSize: blockSize,
		timeout:   timeout,
	}
}

// WriteTransfer describes a host-to-card transfer from buf.
//
// The length of buf must be a multiple of the block size. The timeout is
// applied per block.
func WriteTransfer(buf []byte, blockSize int, timeout time.Duration) Transfer {
	return Transfer{
		write:     buf,
		blockSize: blockSize,
		timeout:   timeout,
	}
}

// Direction returns the direction of the transfer.
func (t Transfer) Direction() Direction {
	switch {
	case t.write != nil:
		return DirectionWrite
	case t.read != nil:
		return DirectionRead
	}
	return DirectionNone
}

// Size returns the total size of the transfer, in bytes.
func (t Transfer) Size() int {
	if t.write != nil {
		return len(t.write)
	}
	return len(t.read)
}

// BlockSize returns the block size of the transfer, in bytes.
func (t Transfer) BlockSize() int {
	return t.blockSize
}

// Timeout returns the per-block timeout of the transfer.
func (t Transfer) Timeout() time.Duration {
	return t.timeout
}

// ReadBuffer returns the buffer into which data will be read, valid only for
// read transfers.
func (t Transfer) ReadBuffer() []byte {
	return t.read
}

// WriteBuffer returns the buffer with the data to be written, valid only for
// write transfers.
func (t Transfer) WriteBuffer() []byte {
	return t.write
}

// Result is the terminal status of a transaction.
type Result uint8

const (
	// ResultSuccess indicates the command, response and any attached
	// transfer completed.
	ResultSuccess Result = iota

	// ResultTimeout indicates the card did not respond or the attached
	// transfer did not finish within its timeout.
	ResultTimeout

	// ResultFailure indicates the hardware reported an error.
	ResultFailure
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTimeout:
		return "timeout"
	case ResultFailure:
		return "failure"
	}
	return "unknown"
}

// Err returns the error corresponding to the result, or nil for success.
func (r Result) Err() error {
	switch r {
	case ResultSuccess:
		return nil
	case ResultTimeout:
		return unix.ETIMEDOUT
	}
	return unix.EIO
}

// Card is notified about a completed transaction.
//
// The notification runs in interrupt context and must not block. The driver
// clears its transaction state before dispatching, so the card may legally
// start another transaction from within the notification.
type Card interface {
	// TransactionCompleteEvent indicates that the transaction reached a
	// terminal state.
	TransactionCompleteEvent(result Result)
}

// CardLowLevel is the contract of a low-level SD/MMC card driver.
type CardLowLevel interface {
	// Configure sets the bus mode and clock frequency of the interface.
	Configure(busMode BusMode, clockFrequency uint32) error

	// Start starts the driver.
	Start() error

	// Stop stops the driver, leaving the interface in its reset state.
	Stop() error

	// StartTransaction starts an asynchronous transaction.
	//
	// The command index must be in [0; MaxCommand]. The width of the
	// expected response is determined by the length of response. When
	// the transaction is physically finished - either command, response
	// and any attached transfer were executed or an error or timeout was
	// detected - card.TransactionCompleteEvent is invoked.
	StartTransaction(card Card, command uint8, argument uint32, response Response, transfer Transfer) error
}

// CheckTransaction validates the parameters of a transaction.
//
// Implementations of CardLowLevel call it before touching any hardware so
// parameter errors never leave a partially programmed controller behind.
func CheckTransaction(command uint8, response Response, transfer Transfer) error {
	if command > MaxCommand {
		return unix.EINVAL
	}
	if l := len(response); l != 0 && l != 1 && l != 4 {
		return unix.EINVAL
	}
	if transfer.Direction() != DirectionNone {
		if transfer.blockSize <= 0 {
			return unix.EINVAL
		}
		if transfer.Size() == 0 || transfer.Size()%transfer.blockSize != 0 {
			return unix.EINVAL
		}
		if transfer.timeout <= 0 {
			return unix.EINVAL
		}
	}
	return nil
}
