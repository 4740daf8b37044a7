// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import (
	"sync"

	"github.com/platinasystems/pcirq/pci"
)

// Device is the per-function IRQ state (C2, spec §3). One Device exists per
// PCIe function under interrupt-engine management; it is exclusively owned
// by the device record the bus driver maintains (out of scope here).
type Device struct {
	PCI      *pci.Device
	Platform Platform

	// devLock guards the whole record (spec §5, lock hierarchy level 2).
	// It may block; dispatch paths never take it.
	devLock sync.Mutex

	// cmdRegLock serializes command-register read-modify-write between
	// the control plane and the legacy dispatcher's IRQ-context writes
	// (spec §5, §9 "Command-register read-modify-write races"). It is a
	// leaf lock distinct from devLock, taken only around the register
	// access itself.
	cmdRegLock sync.Mutex

	mode            Mode
	handlerCount    uint
	registeredCount uint

	// Invariant 5 (singleton-vs-heap): singleton is used when
	// handlerCount == 1; heap is used when handlerCount > 1. Exactly one
	// of the two is "live" at a time; handlerAt hides the distinction.
	singleton HandlerSlot
	heap      []HandlerSlot

	legacyPin    uint8
	legacyVector uint
	registry     *LegacyRegistry
	dispatcher   *LegacyDispatcher
	legacyElem   *legacyElem

	msi      *pci.MSICapability
	msiBlock *MSIBlock

	plugged bool
}

// NewDevice builds the IRQ state for one PCIe function already resolved by
// bus enumeration to a pci.Device, wiring its legacy pin defensively to a
// masked state (SPEC_FULL.md §4 item 1, grounded on
// pcie_init_device_irq_state in the Zircon original). registry is the
// bus-level Shared-Legacy-Dispatcher registry this device's pin (if any)
// will attach to; it may be shared across every device on the bus.
func NewDevice(p *pci.Device, platform Platform, registry *LegacyRegistry) (*Device, error) {
	d := &Device{
		PCI:      p,
		Platform: platform,
		registry: registry,
		plugged:  true,
	}

	pin := p.InterruptPin()
	if pin != 0 {
		// Defensively mask at the device before any dispatcher exists
		// for it: the device must start masked.
		d.setIntDisable(true)

		vec, ok := platform.MapPinToVector(pin)
		if !ok {
			return nil, ErrNoResources
		}
		d.legacyPin = pin
		d.legacyVector = vec
	}

	if cap, ok := pci.NewCapability(p); ok {
		d.msi = cap
	}

	return d, nil
}

// setIntDisable sets or clears the command register's INT_DISABLE bit under
// cmdRegLock, the one path every writer of that bitfield (control plane,
// legacy dispatcher) must go through.
func (d *Device) setIntDisable(disable bool) {
	d.cmdRegLock.Lock()
	defer d.cmdRegLock.Unlock()
	c := d.PCI.Command()
	if disable {
		c |= pci.IntDisable
	} else {
		c &^= pci.IntDisable
	}
	d.PCI.SetCommand(c)
}

// handlerAt returns the slot at index i, which must be < handlerCount.
func (d *Device) handlerAt(i uint) *HandlerSlot {
	if d.handlerCount == 1 {
		return &d.singleton
	}
	return &d.heap[i]
}

// allocHandlers installs a handler table of size n, choosing the singleton
// slot for n == 1 and a heap array otherwise (invariant 5). Callers must
// already hold devLock and must call this only when mode == DISABLED.
func (d *Device) allocHandlers(n uint) {
	if n == 1 {
		d.singleton = HandlerSlot{dev: d, irqID: 0}
	} else {
		d.heap = make([]HandlerSlot, n)
		for i := range d.heap {
			d.heap[i] = HandlerSlot{dev: d, irqID: uint(i)}
		}
	}
	d.handlerCount = n
}

// resetBookkeeping is the sole routine that returns a device to DISABLED
// (spec §4.4; SPEC_FULL.md §4 item 3, one shared routine reused by every
// DISABLED-transition path). Callers must hold devLock and must only call
// it once the dispatch path is guaranteed to see no further invocations
// for this device (after legacy detach, or after FreeMSIBlock's drain).
func (d *Device) resetBookkeeping() {
	if d.handlerCount > 1 {
		d.heap = nil
	} else {
		d.singleton.reset()
	}
	d.handlerCount = 0
	d.registeredCount = 0
	d.mode = Disabled
	d.msiBlock = nil
}
