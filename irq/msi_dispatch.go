// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

// setMSIVectorMasked applies masked to every masking mechanism this
// device's MSI configuration actually has: the device's own PVM bit (when
// present) and the platform controller (when it supports MSI masking).
// Shared by the control plane's mask_unmask and C4's dispatch path, since
// both must agree on which mechanisms exist (spec §4.1 mask_unmask, §4.3
// step 2/5).
func (d *Device) setMSIVectorMasked(vectorIndex uint, masked bool) {
	if d.msi.HasPVM {
		d.msi.SetVectorMasked(vectorIndex, masked)
	}
	if d.Platform.SupportsMSIMasking() {
		d.Platform.MaskUnmaskMSI(d.msiBlock, vectorIndex, masked)
	}
}

func msiTrampoline(cookie interface{}) RetVal {
	return cookie.(*HandlerSlot).msiDispatch()
}

// msiDispatch is C4, invoked by the platform per vector with the handler
// slot as opaque cookie (spec §4.3). It never blocks.
func (s *HandlerSlot) msiDispatch() (result RetVal) {
	s.lock.Lock()
	defer s.lock.Unlock()

	dev := s.dev
	canMask := dev.msi.HasPVM || dev.Platform.SupportsMSIMasking()

	var wasMasked bool
	if canMask {
		wasMasked = s.masked
		dev.setMSIVectorMasked(s.irqID, true)
		s.masked = true
	} else {
		wasMasked = false
	}

	if wasMasked || !s.registered() {
		return 0
	}

	ret := s.callback(dev, s.irqID, s.ctx)

	if ret&Mask == 0 {
		dev.setMSIVectorMasked(s.irqID, false)
		s.masked = false
	}

	if ret&Resched != 0 {
		result |= Resched
	}
	return result
}
