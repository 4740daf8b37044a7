// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pci models the parts of PCI/PCIe configuration space that the
// interrupt engine (package irq) needs: the command/status register and
// the MSI capability block, including the capability-list walk that locates
// it. Bus enumeration and BAR allocation belong to the bus driver, not here.
package pci

import (
	"fmt"
)

// BusAddress is a PCI/PCIe function's location on the bus.
type BusAddress struct {
	Domain        uint16
	Bus, Slot, Fn uint8
}

func (a BusAddress) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%01x", a.Domain, a.Bus, a.Slot, a.Fn)
}

// VendorID and VendorDeviceID identify a function's silicon.
type VendorID uint16
type VendorDeviceID uint16

func (v VendorID) String() string       { return fmt.Sprintf("0x%04x", uint16(v)) }
func (d VendorDeviceID) String() string { return fmt.Sprintf("0x%04x", uint16(d)) }

type DeviceID struct {
	Vendor VendorID
	Device VendorDeviceID
}

// Command is the PCI command register (config offset 0x04).
type Command uint16

const (
	IOEnable Command = 1 << iota
	MemoryEnable
	BusMasterEnable
	SpecialCycles
	WriteInvalidate
	VgaPaletteSnoop
	Parity
	AddressDataStepping
	SERR
	BackToBackWrite
	// IntDisable is the INTx emulation disable bit (bit 10): when set, the
	// function's legacy pin interrupt is masked at the device.
	IntDisable
)

// Status is the PCI status register (config offset 0x06).
type Status uint16

const (
	// IntStatus (bit 3) is asserted whenever the function has a pending
	// legacy interrupt, regardless of whether IntDisable is masking it.
	IntStatus Status = 1 << 3
)

const (
	offsetVendor  = 0x00
	offsetDevice  = 0x02
	offsetCommand = 0x04
	offsetStatus  = 0x06
	offsetIntPin  = 0x3d
	offsetCapPtr  = 0x34
)

// ConfigSpace is the out-of-scope config-space accessor primitive (see
// SPEC_FULL.md §5): byte/word/dword read-modify-write of one function's
// 256 (or 4096, for extended PCIe capabilities) bytes of configuration
// space. Bus enumeration owns discovering and constructing one of these
// per function; the interrupt engine only consumes it.
type ConfigSpace interface {
	ReadConfig8(offset uint) uint8
	WriteConfig8(offset uint, v uint8)
	ReadConfig16(offset uint) uint16
	WriteConfig16(offset uint, v uint16)
	ReadConfig32(offset uint) uint32
	WriteConfig32(offset uint, v uint32)
}

// Device is one PCI/PCIe function's configuration-space handle.
type Device struct {
	Addr BusAddress
	ID   DeviceID
	Cfg  ConfigSpace
}

func (d *Device) String() string {
	return fmt.Sprintf("%s %v %v", d.Addr, d.ID.Vendor, d.ID.Device)
}

// Command reads the command register.
func (d *Device) Command() Command { return Command(d.Cfg.ReadConfig16(offsetCommand)) }

// SetCommand writes the command register.
func (d *Device) SetCommand(c Command) { d.Cfg.WriteConfig16(offsetCommand, uint16(c)) }

// Status reads the status register.
func (d *Device) Status() Status { return Status(d.Cfg.ReadConfig16(offsetStatus)) }

// InterruptPin reads the legacy interrupt pin (0 = none, 1..4 = INTA..INTD).
func (d *Device) InterruptPin() uint8 { return d.Cfg.ReadConfig8(offsetIntPin) }

// CapabilityOffset reads the offset of the first entry in the capability
// list (config offset 0x34); FindCapability walks the list from here.
func (d *Device) CapabilityOffset() uint8 { return d.Cfg.ReadConfig8(offsetCapPtr) }

// Capability is a PCI capability ID (config space, not extended).
type Capability uint8

const (
	PowerManagement Capability = iota + 1
	AGP
	VitalProductData
	SlotIdentification
	MSI
	CompactPCIHotSwap
	PCIX
	HyperTransport
	VendorSpecific
	DebugPort
	CompactPciCentralControl
	PCIHotPlugController
	SSVID
	AGP3
	SecureDevice
	PCIE
	MSIX
	SATA
	AdvancedFeatures
)

// FindCapability walks the capability list (config offset 0x34, each entry
// {id u8, next u8, ...}) looking for id, returning its config-space offset.
// Mirrors elib/hw/pci.Device.ForeachCap/FindCap from the teacher, adapted to
// read through ConfigSpace one byte at a time instead of over a cached
// in-memory byte slice, since this package has no mmap'd backing store.
func (d *Device) FindCapability(id Capability) (offset uint, found bool) {
	o := uint(d.CapabilityOffset())
	for i := 0; o != 0 && o < 0x100 && i < 48; i++ {
		if Capability(d.Cfg.ReadConfig8(o)) == id {
			return o, true
		}
		o = uint(d.Cfg.ReadConfig8(o + 1))
	}
	return 0, false
}
