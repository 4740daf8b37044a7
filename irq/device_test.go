// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import (
	"testing"

	"github.com/platinasystems/pcirq/irqtest"
)

// Invariant 5: a handler table of size 1 uses the embedded singleton slot;
// size > 1 uses the heap array. Crossing the boundary goes through a full
// reset, never resizing in place.
func TestSingletonVsHeapCrossing(t *testing.T) {
	plat := irqtest.NewPlatform()
	reg := NewLegacyRegistry(plat)
	d, _ := newMSIDevice(t, plat, reg, 8)

	if err := d.SetMode(MSI, 1); err != nil {
		t.Fatal(err)
	}
	if d.heap != nil {
		t.Fatal("a handler table of size 1 must not allocate the heap array")
	}
	if d.handlerAt(0) != &d.singleton {
		t.Fatal("handlerAt(0) should return the embedded singleton slot")
	}

	if err := d.SetMode(Disabled, 0); err != nil {
		t.Fatal(err)
	}
	if err := d.SetMode(MSI, 4); err != nil {
		t.Fatal(err)
	}
	if len(d.heap) != 4 {
		t.Fatalf("a handler table of size 4 must use a 4-element heap array, got len %d", len(d.heap))
	}
	for i := uint(0); i < 4; i++ {
		if d.handlerAt(i) != &d.heap[i] {
			t.Fatalf("handlerAt(%d) did not return &heap[%d]", i, i)
		}
	}
}

// resetBookkeeping must fully clear a previously-heap-backed table,
// including the freed slots' callbacks, before the device can be reused.
func TestResetBookkeepingClearsHeap(t *testing.T) {
	plat := irqtest.NewPlatform()
	reg := NewLegacyRegistry(plat)
	d, _ := newMSIDevice(t, plat, reg, 8)

	if err := d.SetMode(MSI, 4); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterHandler(0, func(*Device, uint, interface{}) RetVal { return 0 }, nil); err != nil {
		t.Fatal(err)
	}
	if err := d.SetMode(Disabled, 0); err != nil {
		t.Fatal(err)
	}

	if d.heap != nil {
		t.Fatal("resetBookkeeping should drop the heap array")
	}
	if d.handlerCount != 0 || d.registeredCount != 0 {
		t.Fatalf("handlerCount=%d registeredCount=%d, want 0,0", d.handlerCount, d.registeredCount)
	}
}
