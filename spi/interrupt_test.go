// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package spi_test

import (
	"testing"

	"github.com/mcukit/stm32dev/sim"
	"github.com/mcukit/stm32dev/spi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const peripheralFrequency = 256000000

type observer struct {
	events     []int
	onComplete func(bytesTransferred int)
}

func (o *observer) TransferCompleteEvent(bytesTransferred int) {
	o.events = append(o.events, bytesTransferred)
	if o.onComplete != nil {
		o.onComplete(bytesTransferred)
	}
}

// pump stands in for the NVIC, delivering interrupts while any are pending.
func pump(t *testing.T, p *sim.SPI, m *spi.InterruptMaster) {
	t.Helper()
	for i := 0; p.PendingInterrupt(); i++ {
		require.Less(t, i, 10000, "interrupt storm")
		m.InterruptHandler()
	}
}

func newInterruptMaster() (*sim.SPI, *spi.InterruptMaster) {
	p := sim.NewSPI(peripheralFrequency)
	return p, spi.NewInterruptMaster(p)
}

func words16(ww []uint16) []byte {
	bb := make([]byte, 0, len(ww)*2)
	for _, w := range ww {
		bb = append(bb, uint8(w), uint8(w>>8))
	}
	return bb
}

func TestInterruptMasterLifecycle(t *testing.T) {
	_, m := newInterruptMaster()
	o := observer{}

	// stopped driver rejects everything but start
	err := m.Stop()
	assert.Equal(t, unix.EBADF, err)
	freq, err := m.Configure(spi.Mode0, 0, 8, false, 0)
	assert.Equal(t, unix.EBADF, err)
	assert.Zero(t, freq)
	err = m.StartTransfer(&o, nil, make([]byte, 1))
	assert.Equal(t, unix.EBADF, err)

	err = m.Start()
	assert.Nil(t, err)
	err = m.Start()
	assert.Equal(t, unix.EBADF, err)

	err = m.Stop()
	assert.Nil(t, err)
}

func TestInterruptMasterStopResetsPeripheral(t *testing.T) {
	p, m := newInterruptMaster()
	require.Nil(t, m.Start())
	require.Nil(t, m.Stop())
	assert.Zero(t, p.ReadCr1())
	assert.Zero(t, p.ReadCr2())
}

func TestInterruptMasterConfigure(t *testing.T) {
	patterns := []struct {
		name           string
		clockFrequency uint32
		wordLength     uint8
		freq           uint32
		err            error
	}{
		{"min rate", 0, 8, peripheralFrequency / 256, nil},
		{"max rate", peripheralFrequency, 8, peripheralFrequency / 2, nil},
		{"above max", peripheralFrequency + 1, 8, peripheralFrequency / 2, nil},
		{"divider 4", peripheralFrequency / 4, 8, peripheralFrequency / 4, nil},
		{"divider rounds up", peripheralFrequency/4 - 1, 8, peripheralFrequency / 8, nil},
		{"divider 256", peripheralFrequency / 256, 8, peripheralFrequency / 256, nil},
		{"divider too large", peripheralFrequency/256 - 1, 8, 0, unix.EINVAL},
		{"word length 4", 0, 4, peripheralFrequency / 256, nil},
		{"word length 9", 0, 9, peripheralFrequency / 256, nil},
		{"word length 16", 0, 16, peripheralFrequency / 256, nil},
		{"word length too short", 0, 3, 0, unix.EINVAL},
		{"word length too long", 0, 17, 0, unix.EINVAL},
	}
	for _, pt := range patterns {
		pt := pt
		t.Run(pt.name, func(t *testing.T) {
			_, m := newInterruptMaster()
			require.Nil(t, m.Start())
			freq, err := m.Configure(spi.Mode0, pt.clockFrequency, pt.wordLength, false, 0)
			assert.Equal(t, pt.err, err)
			if pt.err == nil {
				assert.Equal(t, pt.freq, freq)
			}
		})
	}
}

func TestInterruptMasterConfigureWordLengthBeforeLifecycle(t *testing.T) {
	// an out of range word length is invalid even on a stopped driver
	_, m := newInterruptMaster()
	_, err := m.Configure(spi.Mode0, 0, 17, false, 0)
	assert.Equal(t, unix.EINVAL, err)
}

func TestInterruptMasterSingleWordRead(t *testing.T) {
	p, m := newInterruptMaster()
	o := observer{}
	require.Nil(t, m.Start())
	_, err := m.Configure(spi.Mode0, 0, 8, false, 0xd515)
	require.Nil(t, err)

	p.QueueRx(0x9f)
	rx := make([]byte, 1)
	err = m.StartTransfer(&o, nil, rx)
	require.Nil(t, err)
	pump(t, p, m)

	assert.Equal(t, []int{1}, o.events)
	assert.Equal(t, []byte{0x9f}, rx)
	// the dummy word is clocked out, truncated to the word length
	assert.Equal(t, []uint16{0x15}, p.TxWords())
}

func TestInterruptMasterFiveWordDuplex16(t *testing.T) {
	p, m := newInterruptMaster()
	o := observer{}
	require.Nil(t, m.Start())
	_, err := m.Configure(spi.Mode0, 0, 16, false, 0xd515)
	require.Nil(t, err)

	tx := []uint16{0xf2a0, 0x74ba, 0x5b22, 0xa49c, 0xa205}
	rxData := []uint16{0x4939, 0x376a, 0x29fa, 0x6c4e, 0x7a87}
	p.QueueRx(rxData...)
	rx := make([]byte, 10)
	err = m.StartTransfer(&o, words16(tx), rx)
	require.Nil(t, err)
	pump(t, p, m)

	assert.Equal(t, []int{10}, o.events)
	assert.Equal(t, words16(rxData), rx)
	assert.Equal(t, tx, p.TxWords())
}

func TestInterruptMasterWriteOnly(t *testing.T) {
	p, m := newInterruptMaster()
	o := observer{}
	require.Nil(t, m.Start())
	_, err := m.Configure(spi.Mode0, 0, 8, false, 0)
	require.Nil(t, err)

	tx := []byte{0xe5, 0x74, 0xb0, 0xf7, 0x95}
	err = m.StartTransfer(&o, tx, nil)
	require.Nil(t, err)
	pump(t, p, m)

	assert.Equal(t, []int{5}, o.events)
	assert.Equal(t, []uint16{0xe5, 0x74, 0xb0, 0xf7, 0x95}, p.TxWords())
}

func TestInterruptMasterTransferSizes(t *testing.T) {
	patterns := []struct {
		name       string
		wordLength uint8
		size       int
		err        error
	}{
		{"one byte", 8, 1, nil},
		{"odd size 8-bit", 8, 3, nil},
		{"one word 12-bit", 12, 2, nil},
		{"odd size 12-bit", 12, 1, unix.EINVAL},
		{"odd size 16-bit", 16, 3, unix.EINVAL},
		{"zero", 8, 0, unix.EINVAL},
	}
	for _, pt := range patterns {
		pt := pt
		t.Run(pt.name, func(t *testing.T) {
			p, m := newInterruptMaster()
			o := observer{}
			require.Nil(t, m.Start())
			_, err := m.Configure(spi.Mode0, 0, pt.wordLength, false, 0)
			require.Nil(t, err)

			err = m.StartTransfer(&o, nil, make([]byte, pt.size))
			assert.Equal(t, pt.err, err)
			if pt.err == nil {
				pump(t, p, m)
				assert.Equal(t, []int{pt.size}, o.events)
			}
		})
	}
}

func TestInterruptMasterMismatchedBuffers(t *testing.T) {
	_, m := newInterruptMaster()
	o := observer{}
	require.Nil(t, m.Start())

	err := m.StartTransfer(&o, make([]byte, 2), make([]byte, 3))
	assert.Equal(t, unix.EINVAL, err)
}

func TestInterruptMasterBusy(t *testing.T) {
	p, m := newInterruptMaster()
	o := observer{}
	require.Nil(t, m.Start())
	_, err := m.Configure(spi.Mode0, 0, 8, false, 0)
	require.Nil(t, err)

	rx := make([]byte, 2)
	require.Nil(t, m.StartTransfer(&o, nil, rx))

	err = m.StartTransfer(&o, nil, rx)
	assert.Equal(t, unix.EBUSY, err)
	_, err = m.Configure(spi.Mode0, 0, 8, false, 0)
	assert.Equal(t, unix.EBUSY, err)
	err = m.Stop()
	assert.Equal(t, unix.EBUSY, err)

	pump(t, p, m)
	assert.Equal(t, []int{2}, o.events)
	err = m.Stop()
	assert.Nil(t, err)
}

func TestInterruptMasterReentrantStart(t *testing.T) {
	// the observer may start the next transfer from within the callback
	p, m := newInterruptMaster()
	rx2 := make([]byte, 1)
	var restartErr error
	o := observer{}
	restarted := false
	o.onComplete = func(int) {
		if restarted {
			return
		}
		restarted = true
		p.QueueRx(0x42)
		restartErr = m.StartTransfer(&o, nil, rx2)
	}
	require.Nil(t, m.Start())
	_, err := m.Configure(spi.Mode0, 0, 8, false, 0)
	require.Nil(t, err)

	p.QueueRx(0x41)
	rx := make([]byte, 1)
	require.Nil(t, m.StartTransfer(&o, nil, rx))
	pump(t, p, m)

	assert.Nil(t, restartErr)
	assert.Equal(t, []int{1, 1}, o.events)
	assert.Equal(t, []byte{0x41}, rx)
	assert.Equal(t, []byte{0x42}, rx2)
}

func TestInterruptMasterOverrun(t *testing.T) {
	p, m := newInterruptMaster()
	o := observer{}
	require.Nil(t, m.Start())
	_, err := m.Configure(spi.Mode0, 0, 8, false, 0)
	require.Nil(t, err)

	p.QueueRx(0x01, 0x02, 0x03)
	rx := make([]byte, 3)
	require.Nil(t, m.StartTransfer(&o, nil, rx))

	// one word arrives normally
	m.InterruptHandler()
	require.Empty(t, o.events)

	// the next overruns with the bus already idle - the transfer
	// completes with the partial count
	p.RaiseOverrun()
	p.SetBusy(false)
	m.InterruptHandler()
	assert.Equal(t, []int{1}, o.events)

	// back to idle - a new transfer may be started
	p.QueueRx(0x04)
	require.Nil(t, m.StartTransfer(&o, nil, rx[:1]))
	pump(t, p, m)
	assert.Equal(t, []int{1, 1}, o.events)
}

func TestInterruptMasterOverrunWhileBusy(t *testing.T) {
	// an overrun with the bus still busy clears the error but does not
	// complete the transfer
	p, m := newInterruptMaster()
	o := observer{}
	require.Nil(t, m.Start())
	_, err := m.Configure(spi.Mode0, 0, 8, false, 0)
	require.Nil(t, err)

	p.QueueRx(0x01, 0x02)
	rx := make([]byte, 2)
	require.Nil(t, m.StartTransfer(&o, nil, rx))

	p.RaiseOverrun()
	p.SetBusy(true)
	m.InterruptHandler()
	assert.Empty(t, o.events)
	err = m.Stop()
	assert.Equal(t, unix.EBUSY, err)
}
