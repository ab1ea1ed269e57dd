// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package main

import (
	"fmt"

	"github.com/mcukit/stm32dev"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(detectCmd)
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List the registered driver instances",
	Run:   detect,
}

func detect(cmd *cobra.Command, args []string) {
	for _, name := range stm32dev.Names() {
		fmt.Println(name)
	}
}
