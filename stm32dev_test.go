// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package stm32dev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeDriver struct {
	name     string
	log      *[]string
	startErr error
	stopErr  error
}

func (d *fakeDriver) Start() error {
	*d.log = append(*d.log, d.name+":start")
	return d.startErr
}

func (d *fakeDriver) Stop() error {
	*d.log = append(*d.log, d.name+":stop")
	return d.stopErr
}

// reset clears the registry between tests.
func reset() {
	mu.Lock()
	entries = nil
	running = false
	mu.Unlock()
}

func TestRegister(t *testing.T) {
	defer reset()
	log := []string{}

	err := Register("", &fakeDriver{name: "a", log: &log})
	assert.Equal(t, unix.EINVAL, err)
	err = Register("SPI1", nil)
	assert.Equal(t, unix.EINVAL, err)

	err = Register("SPI1", &fakeDriver{name: "a", log: &log})
	assert.Nil(t, err)
	err = Register("SPI1", &fakeDriver{name: "b", log: &log})
	assert.Equal(t, unix.EINVAL, err)

	require.Nil(t, Init())
	err = Register("SPI3", &fakeDriver{name: "c", log: &log})
	assert.Equal(t, unix.EBUSY, err)
	require.Nil(t, Teardown())
}

func TestInitTeardownOrder(t *testing.T) {
	defer reset()
	log := []string{}
	require.Nil(t, Register("SPI1", &fakeDriver{name: "spi1", log: &log}))
	require.Nil(t, Register("SPI3", &fakeDriver{name: "spi3", log: &log}))
	require.Nil(t, Register("SDMMC1", &fakeDriver{name: "sdmmc1", log: &log}))

	require.Nil(t, Init())
	assert.Equal(t, []string{"spi1:start", "spi3:start", "sdmmc1:start"}, log)

	err := Init()
	assert.Equal(t, unix.EBUSY, err)

	log = log[:0]
	require.Nil(t, Teardown())
	assert.Equal(t, []string{"sdmmc1:stop", "spi3:stop", "spi1:stop"}, log)

	err = Teardown()
	assert.Equal(t, unix.EBADF, err)
}

func TestInitRollsBackOnFailure(t *testing.T) {
	defer reset()
	log := []string{}
	require.Nil(t, Register("SPI1", &fakeDriver{name: "spi1", log: &log}))
	require.Nil(t, Register("SPI3", &fakeDriver{name: "spi3", log: &log, startErr: unix.EBUSY}))
	require.Nil(t, Register("SDMMC1", &fakeDriver{name: "sdmmc1", log: &log}))

	err := Init()
	assert.Equal(t, unix.EBUSY, err)
	assert.Equal(t, []string{"spi1:start", "spi3:start", "spi1:stop"}, log)

	// the image never came up - teardown has nothing to do
	err = Teardown()
	assert.Equal(t, unix.EBADF, err)
}

func TestTeardownReportsFirstFailure(t *testing.T) {
	defer reset()
	log := []string{}
	require.Nil(t, Register("SPI1", &fakeDriver{name: "spi1", log: &log, stopErr: unix.EBUSY}))
	require.Nil(t, Register("SPI3", &fakeDriver{name: "spi3", log: &log}))

	require.Nil(t, Init())
	err := Teardown()
	assert.Equal(t, unix.EBUSY, err)
	// both drivers were still stopped
	assert.Contains(t, log, "spi1:stop")
	assert.Contains(t, log, "spi3:stop")
}

func TestLookup(t *testing.T) {
	defer reset()
	log := []string{}
	spi1 := &fakeDriver{name: "spi1", log: &log}
	require.Nil(t, Register("SPI1", spi1))

	d := Lookup("SPI1")
	assert.Equal(t, Driver(spi1), d)
	assert.Nil(t, Lookup("SPI9"))
	assert.Equal(t, []string{"SPI1"}, Names())
}
