// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

// Capabilities describes what a given Mode offers on this device (spec
// §4.1 query_capabilities).
type Capabilities struct {
	MaxIRQs          uint
	PerVectorMasking bool
}

// QueryCapabilities reports what target would offer without changing
// anything (spec §4.1). It is a pure read and does not require the device
// to be in any particular mode, so callers can probe before their first
// SetMode.
func (d *Device) QueryCapabilities(target Mode) (Capabilities, error) {
	d.devLock.Lock()
	defer d.devLock.Unlock()

	switch target {
	case Legacy:
		if d.legacyPin == 0 {
			return Capabilities{}, ErrNotSupported
		}
		return Capabilities{MaxIRQs: 1, PerVectorMasking: true}, nil
	case MSI:
		if !d.Platform.SupportsMSI() || d.msi == nil {
			return Capabilities{}, ErrNotSupported
		}
		pvm := d.msi.HasPVM || d.Platform.SupportsMSIMasking()
		return Capabilities{MaxIRQs: d.msi.MaxIRQs, PerVectorMasking: pvm}, nil
	case MSIX:
		return Capabilities{}, ErrNotSupported
	default:
		return Capabilities{}, ErrInvalidArgs
	}
}

// GetMode is a pure read of the device's current mode and handler-table
// occupancy (spec §4.1 get_mode).
func (d *Device) GetMode() (mode Mode, handlerCount, registeredCount uint) {
	d.devLock.Lock()
	defer d.devLock.Unlock()
	return d.mode, d.handlerCount, d.registeredCount
}

// MarkUnplugged records that the device has left the topology graph
// (out of scope here, spec §1/glossary "Plugged-in"); observed only under
// devLock, per the ordering guarantee in spec §5.
func (d *Device) MarkUnplugged() {
	d.devLock.Lock()
	defer d.devLock.Unlock()
	d.plugged = false
}

// SetMode is the only path that transitions mode (spec §4.1 set_mode).
func (d *Device) SetMode(target Mode, requestedIRQs uint) error {
	d.devLock.Lock()
	defer d.devLock.Unlock()

	if target == Disabled {
		switch d.mode {
		case Disabled:
			return nil
		case Legacy:
			return d.leaveLegacy()
		case MSI:
			return d.leaveMSI()
		default:
			return ErrInternal
		}
	}

	if d.mode != Disabled {
		return ErrBadState
	}
	if !d.plugged {
		return ErrBadState
	}
	if requestedIRQs == 0 {
		return ErrInvalidArgs
	}

	switch target {
	case Legacy:
		return d.enterLegacy(requestedIRQs)
	case MSI:
		return d.enterMSI(requestedIRQs)
	case MSIX:
		return ErrNotSupported
	default:
		return ErrInvalidArgs
	}
}

func (d *Device) enterLegacy(n uint) error {
	if d.legacyPin == 0 || n != 1 {
		return ErrNotSupported
	}

	d.allocHandlers(1)
	d.mode = Legacy

	disp, err := d.registry.attachDevice(d, d.legacyVector)
	if err != nil {
		d.resetBookkeeping()
		return err
	}
	d.dispatcher = disp
	return nil
}

func (d *Device) leaveLegacy() error {
	d.registry.detachDevice(d, d.dispatcher)
	d.dispatcher = nil
	d.resetBookkeeping()
	return nil
}

func (d *Device) enterMSI(n uint) error {
	if d.msi == nil || !d.Platform.SupportsMSI() {
		return ErrNotSupported
	}
	if n > d.msi.MaxIRQs {
		return ErrNotSupported
	}

	// Step 1: allocate a vector block of size n from C1.
	block, err := d.Platform.AllocMSIBlock(n, d.msi.Is64Bit, false)
	if err != nil {
		return ErrNoResources
	}

	// Step 2: allocate the handler table; back-pointers and per-slot
	// locks are wired in by allocHandlers.
	d.allocHandlers(n)

	// Step 3: set mode = MSI.
	d.mode = MSI
	d.msiBlock = block

	if err := d.programMSITarget(n, block); err != nil {
		// Unwind fully via the DISABLED transition (spec §4.1 Enter
		// MSI: "if any step fails, execute the DISABLED transition").
		d.leaveMSI()
		return err
	}
	return nil
}

// programMSITarget performs steps 4-7 of Enter MSI (spec §4.1): program
// registers with MSI disabled and every vector masked, then register C4 on
// each vector, then enable.
func (d *Device) programMSITarget(n uint, block *MSIBlock) error {
	d.msi.SetEnable(false)
	d.msi.MaskAllVectors()
	d.msi.SetTargetAddress(block.TargetAddr)
	d.msi.SetTargetData(block.TargetData)
	d.msi.SetMultiMessageEnable(n)

	for i := uint(0); i < n; i++ {
		slot := d.handlerAt(i)
		if err := d.Platform.RegisterMSIHandler(block, i, msiTrampoline, slot); err != nil {
			return err
		}
	}

	d.msi.SetEnable(true)
	return nil
}

// leaveMSI performs the DISABLED transition out of MSI (spec §4.1: "write
// target address/data to zero, mask all vectors, free the MSI block
// (which unregisters per-vector platform handlers and blocks until
// in-flight dispatches drain), reset bookkeeping").
func (d *Device) leaveMSI() error {
	if d.msi != nil {
		d.msi.SetEnable(false)
		d.msi.MaskAllVectors()
		d.msi.SetTargetAddress(0)
		d.msi.SetTargetData(0)
	}
	if d.msiBlock != nil {
		d.Platform.FreeMSIBlock(d.msiBlock)
	}
	d.resetBookkeeping()
	return nil
}

// RegisterHandler installs or removes the driver callback for one slot
// (spec §4.1 register_handler).
func (d *Device) RegisterHandler(irqID uint, callback HandlerFunc, ctx interface{}) error {
	d.devLock.Lock()
	defer d.devLock.Unlock()

	if d.mode == Disabled {
		return ErrBadState
	}
	if irqID >= d.handlerCount {
		return ErrInvalidArgs
	}

	slot := d.handlerAt(irqID)
	if callback == nil {
		ctx = nil
	}

	slot.lock.Lock()
	wasRegistered := slot.registered()
	slot.callback = callback
	slot.ctx = ctx
	slot.lock.Unlock()

	switch {
	case !wasRegistered && callback != nil:
		d.registeredCount++
	case wasRegistered && callback == nil:
		d.registeredCount--
	}
	return nil
}

// MaskUnmask masks or unmasks one slot and returns its previous masked
// state (spec §4.1 mask_unmask).
func (d *Device) MaskUnmask(irqID uint, mask bool) (bool, error) {
	d.devLock.Lock()
	defer d.devLock.Unlock()

	if d.mode == Disabled {
		return false, ErrBadState
	}
	if irqID >= d.handlerCount {
		return false, ErrInvalidArgs
	}
	slot := d.handlerAt(irqID)

	if !mask {
		if !d.plugged {
			return false, ErrBadState
		}
		slot.lock.Lock()
		registered := slot.registered()
		slot.lock.Unlock()
		if !registered {
			return false, ErrBadState
		}
	}

	switch d.mode {
	case Legacy:
		slot.lock.Lock()
		prev := slot.masked
		d.setIntDisable(mask)
		slot.masked = mask
		slot.lock.Unlock()
		return prev, nil

	case MSI:
		canMask := d.msi.HasPVM || d.Platform.SupportsMSIMasking()
		if mask && !canMask {
			return false, ErrNotSupported
		}
		slot.lock.Lock()
		prev := slot.masked
		if canMask {
			d.setMSIVectorMasked(irqID, mask)
		}
		slot.masked = mask
		slot.lock.Unlock()
		return prev, nil

	case MSIX:
		return false, ErrNotSupported

	default:
		return false, ErrInternal
	}
}
