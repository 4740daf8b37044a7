// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import "testing"

// memConfigSpace is an in-memory ConfigSpace for tests, standing in for a
// real function's 256 bytes of configuration space.
type memConfigSpace [256]byte

func (m *memConfigSpace) ReadConfig8(o uint) uint8    { return m[o] }
func (m *memConfigSpace) WriteConfig8(o uint, v uint8) { m[o] = v }

func (m *memConfigSpace) ReadConfig16(o uint) uint16 {
	return uint16(m[o]) | uint16(m[o+1])<<8
}
func (m *memConfigSpace) WriteConfig16(o uint, v uint16) {
	m[o] = byte(v)
	m[o+1] = byte(v >> 8)
}

func (m *memConfigSpace) ReadConfig32(o uint) uint32 {
	return uint32(m[o]) | uint32(m[o+1])<<8 | uint32(m[o+2])<<16 | uint32(m[o+3])<<24
}
func (m *memConfigSpace) WriteConfig32(o uint, v uint32) {
	m[o] = byte(v)
	m[o+1] = byte(v >> 8)
	m[o+2] = byte(v >> 16)
	m[o+3] = byte(v >> 24)
}

func newTestDevice() (*Device, *memConfigSpace) {
	cfg := &memConfigSpace{}
	return &Device{
		Addr: BusAddress{Bus: 1, Slot: 2, Fn: 0},
		ID:   DeviceID{Vendor: 0x1af4, Device: 0x1000},
		Cfg:  cfg,
	}, cfg
}

func TestCommandRoundTrip(t *testing.T) {
	d, _ := newTestDevice()
	d.SetCommand(MemoryEnable | BusMasterEnable)
	if got := d.Command(); got != MemoryEnable|BusMasterEnable {
		t.Fatalf("Command() = %#x, want %#x", got, MemoryEnable|BusMasterEnable)
	}
	d.SetCommand(d.Command() | IntDisable)
	if d.Command()&IntDisable == 0 {
		t.Fatal("IntDisable bit did not stick")
	}
}

func TestFindCapability(t *testing.T) {
	d, cfg := newTestDevice()
	cfg.WriteConfig8(offsetCapPtr, 0x40)
	// capability list: 0x40 -> PowerManagement, next 0x50
	cfg.WriteConfig8(0x40, uint8(PowerManagement))
	cfg.WriteConfig8(0x41, 0x50)
	// 0x50 -> MSI, next 0 (end of list)
	cfg.WriteConfig8(0x50, uint8(MSI))
	cfg.WriteConfig8(0x51, 0)

	off, found := d.FindCapability(MSI)
	if !found || off != 0x50 {
		t.Fatalf("FindCapability(MSI) = (%#x, %v), want (0x50, true)", off, found)
	}

	if _, found := d.FindCapability(VitalProductData); found {
		t.Fatal("FindCapability found a capability that was never in the list")
	}
}

func TestFindCapabilityEmptyList(t *testing.T) {
	d, _ := newTestDevice()
	if _, found := d.FindCapability(MSI); found {
		t.Fatal("FindCapability on an empty list should not find anything")
	}
}
