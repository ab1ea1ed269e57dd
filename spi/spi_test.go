// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

package spi_test

import (
	"fmt"
	"testing"

	"github.com/mcukit/stm32dev/mmio"
	"github.com/mcukit/stm32dev/spi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeString(t *testing.T) {
	assert.Equal(t, "mode0", spi.Mode0.String())
	assert.Equal(t, "mode1", spi.Mode1.String())
	assert.Equal(t, "mode2", spi.Mode2.String())
	assert.Equal(t, "mode3", spi.Mode3.String())
	assert.Equal(t, "unknown", spi.Mode(42).String())
}

func TestConfigureModeBits(t *testing.T) {
	patterns := []struct {
		mode spi.Mode
		cpol bool
		cpha bool
	}{
		{spi.Mode0, false, false},
		{spi.Mode1, false, true},
		{spi.Mode2, true, false},
		{spi.Mode3, true, true},
	}
	for _, pt := range patterns {
		pt := pt
		t.Run(pt.mode.String(), func(t *testing.T) {
			p, m := newInterruptMaster()
			require.Nil(t, m.Start())
			_, err := m.Configure(pt.mode, 0, 8, false, 0)
			require.Nil(t, err)
			cr1 := p.ReadCr1()
			assert.Equal(t, pt.cpol, cr1&mmio.CR1Cpol != 0)
			assert.Equal(t, pt.cpha, cr1&mmio.CR1Cpha != 0)
		})
	}
}

func TestConfigureWordLengthBits(t *testing.T) {
	patterns := []struct {
		wordLength uint8
		frxth      bool
	}{
		{4, true},
		{8, true},
		{9, false},
		{16, false},
	}
	for _, pt := range patterns {
		pt := pt
		t.Run(fmt.Sprintf("%d-bit", pt.wordLength), func(t *testing.T) {
			p, m := newInterruptMaster()
			require.Nil(t, m.Start())
			_, err := m.Configure(spi.Mode0, 0, pt.wordLength, false, 0)
			require.Nil(t, err)
			cr2 := p.ReadCr2()
			assert.Equal(t, uint32(pt.wordLength-1), (cr2&mmio.CR2Ds)>>mmio.CR2DsShift)
			assert.Equal(t, pt.frxth, cr2&mmio.CR2Frxth != 0)
		})
	}
}

func TestConfigureLsbFirst(t *testing.T) {
	p, m := newInterruptMaster()
	require.Nil(t, m.Start())

	_, err := m.Configure(spi.Mode0, 0, 8, true, 0)
	require.Nil(t, err)
	assert.NotZero(t, p.ReadCr1()&mmio.CR1Lsbfirst)

	_, err = m.Configure(spi.Mode0, 0, 8, false, 0)
	require.Nil(t, err)
	assert.Zero(t, p.ReadCr1()&mmio.CR1Lsbfirst)
}
