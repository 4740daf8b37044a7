// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import "errors"

// Sentinel errors returned by the control plane (spec error taxonomy §7).
// Callers compare with errors.Is, following the ErrNotFound/ErrNotSupported
// pattern used across the corpus (e.g. vnet/interface.go).
var (
	// ErrInvalidArgs: null output pointer, unknown mode, requested_irqs
	// == 0, irq_id out of range.
	ErrInvalidArgs = errors.New("irq: invalid argument")

	// ErrBadState: mode transition not through DISABLED, register/mask
	// while DISABLED, unmask without a handler, device unplugged.
	ErrBadState = errors.New("irq: bad state")

	// ErrNotSupported: MSI-X, MSI absent on platform or device, masking
	// with no mask mechanism, legacy with pin == 0 or requested_irqs > 1.
	ErrNotSupported = errors.New("irq: not supported")

	// ErrNoMemory: handler-table allocation failed.
	ErrNoMemory = errors.New("irq: no memory")

	// ErrNoResources: platform refused an MSI block of the requested
	// size; legacy pin could not be mapped to a system vector.
	ErrNoResources = errors.New("irq: no resources")

	// ErrInternal: an invariant was violated; reaching this is a bug in
	// this package or in a Platform implementation, not caller error.
	ErrInternal = errors.New("irq: internal error")
)
