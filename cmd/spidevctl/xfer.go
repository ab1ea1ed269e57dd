// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mcukit/stm32dev/spi"
	"github.com/spf13/cobra"
)

func init() {
	xferCmd.Flags().StringVarP(&xferOpts.Device, "device", "d", "SPI1", "the driver to transfer on (SPI1 or SPI3)")
	xferCmd.Flags().UintVarP(&xferOpts.WordLength, "word-length", "w", 8, "the word length in bits [4..16]")
	xferCmd.Flags().UintVarP(&xferOpts.Mode, "mode", "m", 0, "the SPI mode [0..3]")
	xferCmd.Flags().Uint32VarP(&xferOpts.Speed, "speed", "s", 1000000, "the clock frequency in Hz, 0 for minimum")
	xferCmd.Flags().BoolVarP(&xferOpts.LsbFirst, "lsb", "l", false, "shift the least significant bit first")
	xferCmd.Flags().StringVarP(&xferOpts.Rx, "rx", "r", "", "hex bytes the simulated slave returns")
	rootCmd.AddCommand(xferCmd)
}

var (
	xferCmd = &cobra.Command{
		Use:                   "xfer [flags] <hexbytes>",
		Short:                 "Run a full-duplex transfer",
		Long:                  `Run a full-duplex transfer of the given hex bytes and print the bytes received from the simulated slave.`,
		Args:                  cobra.MaximumNArgs(1),
		RunE:                  xfer,
		DisableFlagsInUseLine: true,
	}
	xferOpts = struct {
		Device     string
		WordLength uint
		Mode       uint
		Speed      uint32
		LsbFirst   bool
		Rx         string
	}{}
)

type xferObserver struct {
	bytesTransferred int
	done             bool
}

func (o *xferObserver) TransferCompleteEvent(bytesTransferred int) {
	o.bytesTransferred = bytesTransferred
	o.done = true
}

func xfer(cmd *cobra.Command, args []string) error {
	if xferOpts.Mode > 3 {
		return fmt.Errorf("invalid mode: %d", xferOpts.Mode)
	}
	var tx []byte
	if len(args) == 1 {
		b, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			return fmt.Errorf("can't parse tx bytes: %w", err)
		}
		tx = b
	}
	var rxData []byte
	if len(xferOpts.Rx) != 0 {
		b, err := hex.DecodeString(xferOpts.Rx)
		if err != nil {
			return fmt.Errorf("can't parse rx bytes: %w", err)
		}
		rxData = b
	}
	size := len(tx)
	if size == 0 {
		size = len(rxData)
	}
	if size == 0 {
		return fmt.Errorf("nothing to transfer")
	}

	var m spi.Master
	switch xferOpts.Device {
	case "SPI1":
		m = board.spi1Drv
	case "SPI3":
		m = board.spi3Drv
	default:
		return fmt.Errorf("unknown device: %s", xferOpts.Device)
	}

	freq, err := m.Configure(spi.Mode(xferOpts.Mode), xferOpts.Speed,
		uint8(xferOpts.WordLength), xferOpts.LsbFirst, 0xffff)
	if err != nil {
		logErr(cmd, err)
		return nil
	}
	log.WithField("frequency", freq).Debug("configured")

	rx := make([]byte, size)
	o := xferObserver{}
	if xferOpts.Device == "SPI1" {
		// the first queued word is latched by the transfer start
		queueWords(rxData, int(xferOpts.WordLength))
	}
	if err = m.StartTransfer(&o, tx, rx); err != nil {
		logErr(cmd, err)
		return nil
	}
	deliver(rxData, size)
	if !o.done {
		return fmt.Errorf("transfer did not complete")
	}
	fmt.Printf("%s\n", hex.EncodeToString(rx[:o.bytesTransferred]))
	return nil
}

// deliver stands in for the hardware, feeding the scripted slave data and
// pumping the interrupt handlers until the transfer resolves.
func deliver(rxData []byte, size int) {
	switch xferOpts.Device {
	case "SPI1":
		for i := 0; board.spi1.PendingInterrupt() && i < 10*size+16; i++ {
			board.spi1Drv.InterruptHandler()
		}
	case "SPI3":
		fill := make([]byte, size)
		copy(fill, rxData)
		board.rxStream.Complete(fill)
		board.rxCh.InterruptHandler()
	}
}

// queueWords packs the scripted rx bytes into frames of the configured word
// length and queues them on the simulated peripheral.
func queueWords(rxData []byte, wordLength int) {
	if wordLength <= 8 {
		for _, b := range rxData {
			board.spi1.QueueRx(uint16(b))
		}
		return
	}
	for i := 0; i+1 < len(rxData); i += 2 {
		board.spi1.QueueRx(uint16(rxData[i]) | uint16(rxData[i+1])<<8)
	}
}
