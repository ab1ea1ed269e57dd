// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// A utility to exercise the stm32dev drivers against the built-in
// peripheral simulation.
package main

import (
	"fmt"
	"os"

	"github.com/mcukit/stm32dev"
	"github.com/mcukit/stm32dev/dma"
	"github.com/mcukit/stm32dev/sim"
	"github.com/mcukit/stm32dev/spi"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:               "spidevctl",
	Short:             "spidevctl is a utility to exercise the stm32dev SPI drivers",
	Long:              "spidevctl drives the stm32dev SPI master drivers against the register-level peripheral simulation, which is useful to check driver behaviour and timing parameters off-target.",
	PersistentPreRunE: setupBoard,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var (
	verbose bool
	log     = logrus.New()
)

// board holds the simulated peripherals behind the registered drivers.
type simBoard struct {
	spi1     *sim.SPI
	spi3     *sim.SPI
	dma1     *sim.DMA
	spi1Drv  *spi.InterruptMaster
	spi3Drv  *spi.DMAMaster
	rxStream *sim.Stream
	rxCh     *dma.Channel
}

var board simBoard

const simFrequency = 90000000

// setupBoard registers a simulated SPI1 (interrupt based) and SPI3 (DMA
// based) and brings the image up.
func setupBoard(cmd *cobra.Command, args []string) error {
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	opts := []sim.Option{sim.WithLogger(log)}

	board.spi1 = sim.NewSPI(simFrequency, opts...)
	board.spi1Drv = spi.NewInterruptMaster(board.spi1)

	board.spi3 = sim.NewSPI(simFrequency, opts...)
	board.dma1 = sim.NewDMA(opts...)
	board.rxStream = board.dma1.Stream(0)
	board.rxCh = dma.NewChannel(board.dma1, board.rxStream)
	txCh := dma.NewChannel(board.dma1, board.dma1.Stream(5))
	board.spi3Drv = spi.NewDMAMaster(board.spi3, board.rxCh, 0, txCh, 0)

	if err := stm32dev.Register("SPI1", board.spi1Drv); err != nil {
		return err
	}
	if err := stm32dev.Register("SPI3", board.spi3Drv); err != nil {
		return err
	}
	return stm32dev.Init()
}

func main() {
	defer stm32dev.Teardown()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"trace register accesses")
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "spidevctl %s: %s\n", cmd.Name(), err)
}
