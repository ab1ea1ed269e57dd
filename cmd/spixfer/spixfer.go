// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// A minimal tool to run one SPI transfer against the peripheral simulation.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/mcukit/stm32dev/sim"
	"github.com/mcukit/stm32dev/spi"
	"github.com/warthog618/config"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/keys"
	"github.com/warthog618/config/pflag"
)

var version = "undefined"

func main() {
	cfg, flags := loadConfig()
	tx, err := hex.DecodeString(flags.Args()[0])
	if err != nil {
		die("can't parse tx bytes: " + err.Error())
	}

	p := sim.NewSPI(uint32(cfg.MustGet("clock").Uint()))
	m := spi.NewInterruptMaster(p)
	if err = m.Start(); err != nil {
		die(err.Error())
	}
	defer m.Stop()
	freq, err := m.Configure(spi.Mode(cfg.MustGet("mode").Uint()),
		uint32(cfg.MustGet("speed").Uint()),
		uint8(cfg.MustGet("word-length").Uint()),
		cfg.MustGet("lsb").Bool(),
		0xffff)
	if err != nil {
		die("error configuring driver: " + err.Error())
	}

	if rx := cfg.MustGet("rx").String(); len(rx) != 0 {
		rxData, rerr := hex.DecodeString(rx)
		if rerr != nil {
			die("can't parse rx bytes: " + rerr.Error())
		}
		for _, b := range rxData {
			p.QueueRx(uint16(b))
		}
	}

	done := false
	rx := make([]byte, len(tx))
	err = m.StartTransfer(completeFunc(func(bytesTransferred int) {
		rx = rx[:bytesTransferred]
		done = true
	}), tx, rx)
	if err != nil {
		die("error starting transfer: " + err.Error())
	}
	for i := 0; p.PendingInterrupt() && i < 10*len(tx)+16; i++ {
		m.InterruptHandler()
	}
	if !done {
		die("transfer did not complete")
	}
	fmt.Printf("%d Hz: %s\n", freq, hex.EncodeToString(rx))
}

// completeFunc adapts a func to the driver's observer contract.
type completeFunc func(bytesTransferred int)

func (f completeFunc) TransferCompleteEvent(bytesTransferred int) {
	f(bytesTransferred)
}

func loadConfig() (*config.Config, *pflag.Getter) {
	ff := []pflag.Flag{
		{Short: 'h', Name: "help", Options: pflag.IsBool},
		{Short: 'v', Name: "version", Options: pflag.IsBool},
		{Short: 'l', Name: "lsb", Options: pflag.IsBool},
		{Short: 'm', Name: "mode"},
		{Short: 's', Name: "speed"},
		{Short: 'w', Name: "word-length"},
		{Short: 'c', Name: "clock"},
		{Short: 'r', Name: "rx"},
	}
	defaults := dict.New(dict.WithMap(
		map[string]interface{}{
			"help":        false,
			"version":     false,
			"lsb":         false,
			"mode":        0,
			"speed":       1000000,
			"word-length": 8,
			"clock":       90000000,
			"rx":          "",
		}))
	flags := pflag.New(pflag.WithFlags(ff),
		pflag.WithKeyReplacer(keys.NullReplacer()),
	)
	cfg := config.New(flags, config.WithDefault(defaults))
	if cfg.MustGet("help").Bool() {
		printHelp()
		os.Exit(0)
	}
	if cfg.MustGet("version").Bool() {
		printVersion()
		os.Exit(0)
	}
	if cfg.MustGet("mode").Uint() > 3 {
		die(fmt.Sprintf("invalid mode: %d", cfg.MustGet("mode").Uint()))
	}
	if flags.NArg() != 1 {
		die("exactly one argument with the tx bytes is required")
	}
	return cfg, flags
}

func die(reason string) {
	fmt.Fprintln(os.Stderr, "spixfer: "+reason)
	os.Exit(1)
}

func printHelp() {
	fmt.Println("Usage: spixfer [flags] <hexbytes>")
	fmt.Println("Flags:")
	fmt.Println("  -h, --help           display this help and exit")
	fmt.Println("  -v, --version        display the version and exit")
	fmt.Println("  -l, --lsb            shift the least significant bit first")
	fmt.Println("  -m, --mode           the SPI mode [0..3]")
	fmt.Println("  -s, --speed          the clock frequency in Hz, 0 for minimum")
	fmt.Println("  -w, --word-length    the word length in bits [4..16]")
	fmt.Println("  -c, --clock          the simulated peripheral clock in Hz")
	fmt.Println("  -r, --rx             hex bytes the simulated slave returns")
}

func printVersion() {
	fmt.Printf("spixfer %s\n", version)
}
