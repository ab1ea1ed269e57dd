// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package main

import (
	"fmt"

	"github.com/mcukit/stm32dev/spi"
	"github.com/spf13/cobra"
)

func init() {
	infoCmd.Flags().Uint32VarP(&infoOpts.Speed, "speed", "s", 1000000, "the requested clock frequency in Hz, 0 for minimum")
	rootCmd.AddCommand(infoCmd)
}

var (
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show the effective clock frequency for a requested speed",
		Long:  `Show the effective clock frequency the peripheral clock dividers produce for the requested speed.`,
		RunE:  info,
	}
	infoOpts = struct {
		Speed uint32
	}{}
)

func info(cmd *cobra.Command, args []string) error {
	freq, err := board.spi1Drv.Configure(spi.Mode0, infoOpts.Speed, 8, false, 0)
	if err != nil {
		logErr(cmd, err)
		return nil
	}
	fmt.Printf("requested %d Hz, effective %d Hz (peripheral clock %d Hz)\n",
		infoOpts.Speed, freq, simFrequency)
	return nil
}
