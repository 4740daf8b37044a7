// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import "sync"

// RetVal is the two-bit handler return contract shared by C3 and C4
// (spec §4.3): bit Mask means "leave me masked, I'll unmask when ready";
// bit Resched means "a higher-priority runnable exists".
type RetVal uint8

const (
	Mask RetVal = 1 << iota
	Resched
)

// HandlerFunc is the driver-supplied callback. dev is the owning *Device,
// irqID is the slot's index within the device's handler table, and ctx is
// the opaque context handed back verbatim from RegisterHandler.
type HandlerFunc func(dev *Device, irqID uint, ctx interface{}) RetVal

// HandlerSlot is one entry of a device's handler table (spec §3). lock is
// modeled with sync.Mutex; every acquisition here happens either from the
// dispatch paths (C3, C4), which never block while holding it, or from the
// control plane, which only holds it around a slot-field update and the
// non-blocking mask-register writes that go with it — so a spinlock and a
// mutex are observationally the same discipline in this package.
type HandlerSlot struct {
	dev      *Device
	irqID    uint
	lock     sync.Mutex
	callback HandlerFunc
	ctx      interface{}
	masked   bool
}

func (s *HandlerSlot) reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.callback = nil
	s.ctx = nil
	s.masked = false
}

// registered reports whether the slot currently has a callback. Caller
// must hold s.lock.
func (s *HandlerSlot) registered() bool { return s.callback != nil }
