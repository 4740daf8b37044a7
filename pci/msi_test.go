// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import "testing"

func newMSITestDevice(is64bit, hasPVM bool) (*Device, *memConfigSpace, uint) {
	d, cfg := newTestDevice()
	const off = 0x50
	cfg.WriteConfig8(offsetCapPtr, off)
	cfg.WriteConfig8(off, uint8(MSI))
	cfg.WriteConfig8(off+1, 0)

	ctrl := MSIControl(0)
	ctrl |= mmeValue(0)
	// MMC advertises log2(8) = 3 -> max_irqs = 8
	ctrl |= MSIControl(3) << msiCtrlMMCShift
	if is64bit {
		ctrl |= MSICtrl64Bit
	}
	if hasPVM {
		ctrl |= MSICtrlPVM
	}
	cfg.WriteConfig16(off+msiCtrlOff, uint16(ctrl))
	return d, cfg, off
}

func TestNewCapabilityParsesShape(t *testing.T) {
	d, _, off := newMSITestDevice(true, true)
	msiCap, found := NewCapability(d)
	if !found {
		t.Fatal("NewCapability did not find the MSI capability")
	}
	if msiCap.Offset != off {
		t.Fatalf("Offset = %#x, want %#x", msiCap.Offset, off)
	}
	if !msiCap.Is64Bit || !msiCap.HasPVM {
		t.Fatalf("Is64Bit=%v HasPVM=%v, want both true", msiCap.Is64Bit, msiCap.HasPVM)
	}
	if msiCap.MaxIRQs != 8 {
		t.Fatalf("MaxIRQs = %d, want 8", msiCap.MaxIRQs)
	}
}

func TestSetEnableAndMME(t *testing.T) {
	d, _, _ := newMSITestDevice(true, true)
	msiCap, _ := NewCapability(d)

	msiCap.SetEnable(true)
	if msiCap.Control()&MSICtrlEnable == 0 {
		t.Fatal("SetEnable(true) did not set the enable bit")
	}
	msiCap.SetEnable(false)
	if msiCap.Control()&MSICtrlEnable != 0 {
		t.Fatal("SetEnable(false) left the enable bit set")
	}

	msiCap.SetMultiMessageEnable(4)
	if got := msiCap.Control().MME(); got != 2 {
		t.Fatalf("MME = %d, want 2 (ceil(log2(4)))", got)
	}

	// Non-power-of-two rounds up silently (spec §9 open question).
	msiCap.SetMultiMessageEnable(5)
	if got := msiCap.Control().MME(); got != 3 {
		t.Fatalf("MME = %d, want 3 (ceil(log2(5)))", got)
	}
}

func TestTargetAddressAndData64Bit(t *testing.T) {
	d, cfg, off := newMSITestDevice(true, false)
	msiCap, _ := NewCapability(d)

	msiCap.SetTargetAddress(0x1_0000_0002)
	msiCap.SetTargetData(0xabcd)

	if got := cfg.ReadConfig32(off + msiAddrOff); got != 2 {
		t.Fatalf("address-low = %#x, want 2", got)
	}
	if got := cfg.ReadConfig32(off + msiAddrHiOff); got != 1 {
		t.Fatalf("address-high = %#x, want 1", got)
	}
	if got := cfg.ReadConfig16(off + msiData64Off); got != 0xabcd {
		t.Fatalf("data = %#x, want 0xabcd", got)
	}
}

func TestTargetAddressAndData32Bit(t *testing.T) {
	d, cfg, off := newMSITestDevice(false, false)
	msiCap, _ := NewCapability(d)

	msiCap.SetTargetAddress(0xdeadbeef)
	msiCap.SetTargetData(0x1234)

	if got := cfg.ReadConfig32(off + msiAddrOff); got != 0xdeadbeef {
		t.Fatalf("address-low = %#x, want 0xdeadbeef", got)
	}
	if got := cfg.ReadConfig16(off + msiData32Off); got != 0x1234 {
		t.Fatalf("data = %#x, want 0x1234", got)
	}
}

func TestVectorMasking(t *testing.T) {
	d, _, _ := newMSITestDevice(true, true)
	msiCap, _ := NewCapability(d)

	msiCap.SetVectorMasked(2, true)
	if v := msiCap.Dev.Cfg.ReadConfig32(msiCap.maskOffset()); v&(1<<2) == 0 {
		t.Fatal("SetVectorMasked(2, true) did not set bit 2")
	}
	msiCap.SetVectorMasked(2, false)
	if v := msiCap.Dev.Cfg.ReadConfig32(msiCap.maskOffset()); v&(1<<2) != 0 {
		t.Fatal("SetVectorMasked(2, false) left bit 2 set")
	}

	msiCap.MaskAllVectors()
	if v := msiCap.Dev.Cfg.ReadConfig32(msiCap.maskOffset()); v != ^uint32(0) {
		t.Fatalf("MaskAllVectors left mask register %#x, want all-ones", v)
	}
}

func TestMaskAllVectorsNoopWithoutPVM(t *testing.T) {
	d, cfg, _ := newMSITestDevice(true, false)
	msiCap, _ := NewCapability(d)
	msiCap.MaskAllVectors()
	if v := cfg.ReadConfig32(msiCap.maskOffset()); v != 0 {
		t.Fatalf("MaskAllVectors touched the mask register without PVM: %#x", v)
	}
}
