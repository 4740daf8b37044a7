// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import (
	"container/list"
	"sync"

	"github.com/platinasystems/log"
	"github.com/platinasystems/pcirq/pci"
)

// legacyElem is a device's intrusive membership token in at most one
// dispatcher's device list (spec §3 legacy.node, §9 "Intrusive list for
// legacy sharing"). Go has no intrusive-container primitive, so this
// models the design note's option<(dispatcher_id, list_cursor)> directly:
// a back-pointer to the dispatcher plus the container/list cursor within
// it.
type legacyElem struct {
	dispatcher *LegacyDispatcher
	elem       *list.Element
}

// LegacyDispatcher is C3: one instance per system-level IRQ vector,
// multiplexing a single platform interrupt across every device wired to
// it (spec §4.2).
type LegacyDispatcher struct {
	vectorID uint
	platform Platform

	// listLock is the IRQ-safe spinlock guarding deviceList (spec §5,
	// lock hierarchy level 4).
	listLock   sync.Mutex
	deviceList *list.List // of *Device

	refCount uint // guarded by the owning LegacyRegistry's mutex
}

func dispatchTrampoline(cookie interface{}) RetVal {
	return cookie.(*LegacyDispatcher).dispatch()
}

// attach appends dev to the dispatcher's device list, defensively masking
// the device first (spec §4.2 attach), and unmasks the platform vector if
// the list transitioned empty -> non-empty (invariant P5).
func (disp *LegacyDispatcher) attach(dev *Device) {
	dev.setIntDisable(true)

	disp.listLock.Lock()
	wasEmpty := disp.deviceList.Len() == 0
	e := disp.deviceList.PushBack(dev)
	disp.listLock.Unlock()

	dev.legacyElem = &legacyElem{dispatcher: disp, elem: e}

	if wasEmpty {
		disp.platform.UnmaskVector(disp.vectorID)
	}
}

// detach removes dev from the dispatcher's device list, reasserting
// INT_DISABLE first, and masks the platform vector if the list becomes
// empty.
func (disp *LegacyDispatcher) detach(dev *Device) {
	disp.listLock.Lock()
	dev.setIntDisable(true)
	disp.deviceList.Remove(dev.legacyElem.elem)
	empty := disp.deviceList.Len() == 0
	disp.listLock.Unlock()

	dev.legacyElem = nil

	if empty {
		disp.platform.MaskVector(disp.vectorID)
	}
}

// dispatch is invoked by the platform in IRQ context for this vector
// (spec §4.2 dispatch). It never blocks.
func (disp *LegacyDispatcher) dispatch() (result RetVal) {
	disp.listLock.Lock()
	defer disp.listLock.Unlock()

	if disp.deviceList.Len() == 0 {
		disp.platform.MaskVector(disp.vectorID)
		log.Print("daemon", "warning", "irq: spurious interrupt on vector ", disp.vectorID)
		return 0
	}

	for e := disp.deviceList.Front(); e != nil; e = e.Next() {
		dev := e.Value.(*Device)
		status := dev.PCI.Status()
		command := dev.PCI.Command()
		if status&pci.IntStatus == 0 || command&pci.IntDisable != 0 {
			continue
		}

		slot := dev.handlerAt(0)
		slot.lock.Lock()
		var ret RetVal
		handled := false
		if !slot.masked && slot.registered() {
			ret = slot.callback(dev, 0, slot.ctx)
			handled = true
		}
		if !handled {
			log.Print("daemon", "warning", "irq: no handler for asserting device ", dev.PCI.Addr, " on vector ", disp.vectorID, ", masking it")
		}
		if !handled || ret&Mask != 0 {
			dev.setIntDisable(true)
		}
		if handled && ret&Resched != 0 {
			result |= Resched
		}
		slot.lock.Unlock()
	}
	return result
}

// LegacyRegistry is the bus-driver registry (spec §4.2) indexing existing
// LegacyDispatchers by system vector id under its own mutex
// (legacy_registry_lock, spec §5 level 3).
type LegacyRegistry struct {
	mu          sync.Mutex
	platform    Platform
	dispatchers map[uint]*LegacyDispatcher
}

// NewLegacyRegistry constructs an empty registry bound to platform.
func NewLegacyRegistry(platform Platform) *LegacyRegistry {
	return &LegacyRegistry{
		platform:    platform,
		dispatchers: make(map[uint]*LegacyDispatcher),
	}
}

// attachDevice finds or creates the dispatcher for vectorID, creating it
// (and registering its low-level handler with the platform in the masked
// state) on first use, then attaches dev to it.
func (r *LegacyRegistry) attachDevice(dev *Device, vectorID uint) (*LegacyDispatcher, error) {
	r.mu.Lock()
	disp, ok := r.dispatchers[vectorID]
	if !ok {
		disp = &LegacyDispatcher{
			vectorID:   vectorID,
			platform:   r.platform,
			deviceList: list.New(),
		}
		r.platform.MaskVector(vectorID)
		if err := r.platform.RegisterIntHandler(vectorID, dispatchTrampoline, disp); err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.dispatchers[vectorID] = disp
	}
	disp.refCount++
	r.mu.Unlock()

	disp.attach(dev)
	return disp, nil
}

// detachDevice detaches dev from disp and, if disp just lost its last
// reference, tears it down: unregisters the platform handler, masks the
// vector, and drops it from the registry.
func (r *LegacyRegistry) detachDevice(dev *Device, disp *LegacyDispatcher) {
	disp.detach(dev)

	r.mu.Lock()
	disp.refCount--
	last := disp.refCount == 0
	if last {
		delete(r.dispatchers, disp.vectorID)
	}
	r.mu.Unlock()

	if last {
		r.platform.RegisterIntHandler(disp.vectorID, nil, nil)
		r.platform.MaskVector(disp.vectorID)
	}
}

// Shutdown idempotently tears down every live dispatcher at once
// (SPEC_FULL.md §4 item 2, grounded on PcieBusDriver::ShutdownIrqs in the
// Zircon original), used when the whole bus driver is torn down rather
// than one device at a time. It is additive to per-device
// SetMode(Disabled).
func (r *LegacyRegistry) Shutdown() {
	r.mu.Lock()
	dying := r.dispatchers
	r.dispatchers = make(map[uint]*LegacyDispatcher)
	r.mu.Unlock()

	for vec := range dying {
		r.platform.RegisterIntHandler(vec, nil, nil)
		r.platform.MaskVector(vec)
	}
}
