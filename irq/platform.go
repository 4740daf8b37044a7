// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import "fmt"

// Mode is a PCIe function's active interrupt discipline.
type Mode int

const (
	Disabled Mode = iota
	Legacy
	MSI
	MSIX
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Legacy:
		return "legacy"
	case MSI:
		return "msi"
	case MSIX:
		return "msi-x"
	default:
		return fmt.Sprintf("irq.Mode(%d)", int(m))
	}
}

// BlockID opaquely identifies an allocated MSI vector block (spec §3: "MSI
// block: opaque identifier, ..."). A Platform is free to back it with
// whatever identifier it likes, provided it prints legibly in logs.
type BlockID interface {
	String() string
}

// MSIBlock is a contiguous range of platform IRQ vectors granted atomically
// to one device's MSI configuration (spec §3, §9 glossary "Vector block").
type MSIBlock struct {
	ID           BlockID
	VectorCount  uint
	TargetAddr   uint64
	TargetData   uint16
	SupportsMask bool
}

// MSIHandlerFunc is the platform-level per-vector callback C1 invokes with
// the opaque cookie supplied at registration time (the handler slot).
type MSIHandlerFunc func(cookie interface{}) RetVal

// IntHandlerFunc is the platform-level legacy-vector callback, invoked with
// the opaque cookie supplied at registration time (the shared dispatcher).
type IntHandlerFunc func(cookie interface{}) RetVal

// Platform is the narrow adapter (C1) over the platform's MSI-block
// allocator and system interrupt controller. Bus enumeration, BAR
// allocation, and the controller driver itself are out of scope (spec §1)
// and live behind this interface.
type Platform interface {
	SupportsMSI() bool
	SupportsMSIMasking() bool

	// AllocMSIBlock requests count contiguous vectors. need64Bit asks for
	// a block reachable with a 64-bit target address; isMSIX is carried
	// through unused today (MSI-X is reserved, spec §9) so a future
	// implementation can slot in without an interface change.
	AllocMSIBlock(count uint, need64Bit, isMSIX bool) (*MSIBlock, error)

	// FreeMSIBlock must drain any in-flight per-vector handlers before
	// returning (spec §4.5, §9 "Draining in-flight MSI handlers").
	FreeMSIBlock(block *MSIBlock) error

	// RegisterMSIHandler installs (fn non-nil) or removes (fn nil) the
	// handler for one vector of block.
	RegisterMSIHandler(block *MSIBlock, vectorIndex uint, fn MSIHandlerFunc, cookie interface{}) error

	MaskUnmaskMSI(block *MSIBlock, vectorIndex uint, mask bool)

	MaskVector(vec uint)
	UnmaskVector(vec uint)

	// RegisterIntHandler installs (fn non-nil) or removes (fn nil) the
	// low-level handler for one legacy system vector.
	RegisterIntHandler(vec uint, fn IntHandlerFunc, cookie interface{}) error

	// MapPinToVector resolves a device's legacy pin to a system IRQ
	// vector, the bus-level step the original performs at device init
	// (SPEC_FULL.md §4 item 1). Returns false if the pin cannot be
	// mapped (ErrNoResources, spec §7).
	MapPinToVector(pin uint8) (vector uint, ok bool)
}
