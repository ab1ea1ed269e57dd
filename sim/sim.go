// SPDX-License-Identifier: MIT
//
// Copyright © 2023 the stm32dev authors.

// Package sim provides register-level simulations of the peripherals driven
// by stm32dev.
//
// The simulated peripherals implement the same register access interfaces as
// the memory-mapped hardware, so the drivers run against them unmodified.
// This is intended for testing stm32dev itself, but can also be used by
// users to test their own code off-target.
//
// Interrupts are not delivered spontaneously - the simulations track the
// pending state and the test pumps the driver's interrupt handler, standing
// in for the NVIC.
package sim

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Option specifies a construction option for a simulated peripheral.
type Option func(*tracer)

// WithLogger directs a register access trace to the given logger, at debug
// level.
func WithLogger(log *logrus.Logger) Option {
	return func(t *tracer) {
		t.log = log
	}
}

// tracer emits the register access trace of a simulated peripheral.
type tracer struct {
	name string
	log  *logrus.Logger
}

func newTracer(name string, options ...Option) tracer {
	t := tracer{name: name}
	for _, option := range options {
		option(&t)
	}
	if t.log == nil {
		t.log = logrus.New()
		t.log.SetOutput(io.Discard)
	}
	return t
}

func (t *tracer) trace(op, reg string, v uint32) {
	t.log.WithFields(logrus.Fields{
		"peripheral": t.name,
		"register":   reg,
		"value":      v,
	}).Debug(op)
}
