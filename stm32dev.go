// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// Package stm32dev is a registry for the board-level peripheral driver
// instances of an image.
//
// Boards register their driver instances under well-known names (SPI1,
// SPI3, ...) during image start-up, then bring them all up with a single
// Init call before any interrupt can fire. There is deliberately no lazy
// initialization - interrupt handlers must never race driver construction.
//
//	stm32dev.Register("SPI1", spi1)
//	stm32dev.Register("SPI3", spi3)
//	if err := stm32dev.Init(); err != nil {
//		panic(err)
//	}
//	defer stm32dev.Teardown()
package stm32dev

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Driver is the common lifecycle of a board peripheral driver.
type Driver interface {
	// Start starts the driver.
	Start() error

	// Stop stops the driver, leaving the hardware in its reset state.
	Stop() error
}

type entry struct {
	name   string
	driver Driver
}

var (
	mu      sync.Mutex
	entries []entry
	running bool
)

// Register adds a named driver instance to the registry.
//
// Drivers are started in registration order and stopped in reverse.
// Registration fails with EBUSY once Init has run, and with EINVAL for an
// empty or duplicate name.
func Register(name string, driver Driver) error {
	mu.Lock()
	defer mu.Unlock()
	if running {
		return unix.EBUSY
	}
	if name == "" || driver == nil {
		return unix.EINVAL
	}
	for _, e := range entries {
		if e.name == name {
			return unix.EINVAL
		}
	}
	entries = append(entries, entry{name: name, driver: driver})
	return nil
}

// Init starts every registered driver, in registration order.
//
// If a driver fails to start, the drivers already started are stopped again,
// in reverse order, and the failure is returned.
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if running {
		return unix.EBUSY
	}
	for i, e := range entries {
		if err := e.driver.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				entries[j].driver.Stop()
			}
			return err
		}
	}
	running = true
	return nil
}

// Teardown stops every registered driver, in reverse registration order.
//
// The registry is left intact so the image can be brought up again. The
// first stop failure is returned, but the remaining drivers are still
// stopped.
func Teardown() error {
	mu.Lock()
	defer mu.Unlock()
	if !running {
		return unix.EBADF
	}
	var firstErr error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].driver.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	running = false
	return firstErr
}

// Lookup returns the registered driver with the given name, or nil.
func Lookup(name string) Driver {
	mu.Lock()
	defer mu.Unlock()
	for _, e := range entries {
		if e.name == name {
			return e.driver
		}
	}
	return nil
}

// Names returns the names of the registered drivers, in registration order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	nn := make([]string, len(entries))
	for i, e := range entries {
		nn[i] = e.name
	}
	return nn
}
