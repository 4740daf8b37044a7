// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irqtest provides a reference irq.Platform implementation for
// exercising package irq's control plane and dispatch paths without real
// hardware, analogous to the teacher's own buffer-backed test doubles
// (external/log's writer-under-test). It is not part of the public API.
package irqtest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	uuid "github.com/satori/go.uuid"

	"github.com/platinasystems/pcirq/irq"
)

type blockID uuid.UUID

func (b blockID) String() string { return uuid.UUID(b).String() }

type msiState struct {
	block    *irq.MSIBlock
	handlers []irq.MSIHandlerFunc
	cookies  []interface{}
	// inflight counts dispatch calls currently executing for this
	// block, so FreeMSIBlock can drain them before returning (spec
	// §4.5, §9 "Draining in-flight MSI handlers").
	inflight int32
}

type legacyState struct {
	fn     irq.IntHandlerFunc
	cookie interface{}
	masked bool
}

// Platform is a software model of C1 suitable for unit tests: it tracks
// mask state and vector/block bookkeeping in memory instead of touching a
// real interrupt controller.
type Platform struct {
	MSISupported        bool
	MSIMaskingSupported bool

	// PinVectors maps a legacy pin (1..4) to the system vector the bus
	// would have resolved it to; a missing entry means "unmappable"
	// (ErrNoResources, spec §7).
	PinVectors map[uint8]uint

	mu           sync.Mutex
	nextVector   uint
	legacy       map[uint]*legacyState
	msi          map[string]*msiState
	lastMaskCall string

	// DrainBackoff controls how FreeMSIBlock polls for in-flight
	// dispatches to finish, mirroring the retry/backoff shape the
	// teacher uses in cmd/dhcpcd's DHCP retry loop.
	DrainBackoff backoff.Backoff
}

// NewPlatform returns a Platform with MSI and MSI masking enabled and an
// empty pin map; callers populate PinVectors for the pins their test
// devices use.
func NewPlatform() *Platform {
	return &Platform{
		MSISupported:        true,
		MSIMaskingSupported: true,
		PinVectors:          make(map[uint8]uint),
		legacy:              make(map[uint]*legacyState),
		msi:                 make(map[string]*msiState),
		nextVector:          64,
		DrainBackoff:        backoff.Backoff{Min: time.Microsecond, Max: time.Millisecond, Factor: 2},
	}
}

func (p *Platform) SupportsMSI() bool        { return p.MSISupported }
func (p *Platform) SupportsMSIMasking() bool { return p.MSIMaskingSupported }

func (p *Platform) MapPinToVector(pin uint8) (uint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.PinVectors[pin]
	return v, ok
}

func (p *Platform) AllocMSIBlock(count uint, need64Bit, isMSIX bool) (*irq.MSIBlock, error) {
	if !p.MSISupported {
		return nil, irq.ErrNotSupported
	}
	if count == 0 {
		return nil, irq.ErrInvalidArgs
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	base := p.nextVector
	p.nextVector += count

	raw := uuid.NewV4()
	id := blockID(raw)
	block := &irq.MSIBlock{
		ID:           id,
		VectorCount:  count,
		TargetAddr:   0xfee00000,
		TargetData:   uint16(base),
		SupportsMask: p.MSIMaskingSupported,
	}
	p.msi[id.String()] = &msiState{
		block:    block,
		handlers: make([]irq.MSIHandlerFunc, count),
		cookies:  make([]interface{}, count),
	}
	return block, nil
}

func (p *Platform) FreeMSIBlock(block *irq.MSIBlock) error {
	p.mu.Lock()
	st, ok := p.msi[block.ID.String()]
	if !ok {
		p.mu.Unlock()
		return irq.ErrInvalidArgs
	}
	for i := range st.handlers {
		st.handlers[i] = nil
		st.cookies[i] = nil
	}
	delete(p.msi, block.ID.String())
	p.mu.Unlock()

	b := p.DrainBackoff
	b.Reset()
	for atomic.LoadInt32(&st.inflight) != 0 {
		time.Sleep(b.Duration())
	}
	return nil
}

func (p *Platform) RegisterMSIHandler(block *irq.MSIBlock, vectorIndex uint, fn irq.MSIHandlerFunc, cookie interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.msi[block.ID.String()]
	if !ok || vectorIndex >= uint(len(st.handlers)) {
		return irq.ErrInvalidArgs
	}
	st.handlers[vectorIndex] = fn
	st.cookies[vectorIndex] = cookie
	return nil
}

func (p *Platform) MaskUnmaskMSI(block *irq.MSIBlock, vectorIndex uint, mask bool) {
	// The reference platform has no separate controller-level MSI mask
	// state to track beyond what package irq already keeps in the
	// handler slot and the device's PVM register; this call exists so
	// tests can observe that it was made, via LastMaskCall.
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastMaskCall = fmt.Sprintf("%s/%d=%v", block.ID, vectorIndex, mask)
}

func (p *Platform) RegisterIntHandler(vec uint, fn irq.IntHandlerFunc, cookie interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fn == nil {
		delete(p.legacy, vec)
		return nil
	}
	p.legacy[vec] = &legacyState{fn: fn, cookie: cookie, masked: true}
	return nil
}

func (p *Platform) MaskVector(vec uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.legacy[vec]; ok {
		s.masked = true
	}
}

func (p *Platform) UnmaskVector(vec uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.legacy[vec]; ok {
		s.masked = false
	}
}

// LastMaskCall returns a debug string describing the most recent
// MaskUnmaskMSI call, for test assertions.
func (p *Platform) LastMaskCall() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMaskCall
}

// IsVectorMasked reports whether the legacy vector is currently masked at
// the platform level, for test assertions (spec §8 P5).
func (p *Platform) IsVectorMasked(vec uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.legacy[vec]
	return !ok || s.masked
}

// FireLegacy simulates the platform delivering an interrupt on vec,
// invoking the registered low-level handler exactly as real hardware
// would.
func (p *Platform) FireLegacy(vec uint) irq.RetVal {
	p.mu.Lock()
	s, ok := p.legacy[vec]
	p.mu.Unlock()
	if !ok || s.fn == nil {
		return 0
	}
	return s.fn(s.cookie)
}

// FireMSI simulates the platform delivering vectorIndex of block,
// tracking it as in-flight so a concurrent FreeMSIBlock observes the
// drain correctly.
func (p *Platform) FireMSI(block *irq.MSIBlock, vectorIndex uint) irq.RetVal {
	p.mu.Lock()
	st, ok := p.msi[block.ID.String()]
	if !ok || vectorIndex >= uint(len(st.handlers)) || st.handlers[vectorIndex] == nil {
		p.mu.Unlock()
		return 0
	}
	fn, cookie := st.handlers[vectorIndex], st.cookies[vectorIndex]
	atomic.AddInt32(&st.inflight, 1)
	p.mu.Unlock()

	defer atomic.AddInt32(&st.inflight, -1)
	return fn(cookie)
}
