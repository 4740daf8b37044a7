// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

// Linux sysfs-backed ConfigSpace, adapted from
// elib/hw/pci/linux_pci.go's Device.ConfigRw/SysfsOpenFile. The teacher
// keeps one file descriptor per access; this version does the same,
// since config-space reads happen far off the interrupt dispatch path
// and never need to be fast.

import (
	"fmt"
	"os"
	"path/filepath"
)

var SysfsBusPciPath = "/sys/bus/pci/devices"

// SysfsConfigSpace implements ConfigSpace over a function's
// /sys/bus/pci/devices/<addr>/config file.
type SysfsConfigSpace struct {
	Addr BusAddress
}

func (s SysfsConfigSpace) path() string {
	return filepath.Join(SysfsBusPciPath, s.Addr.String(), "config")
}

func (s SysfsConfigSpace) rw(offset, nBytes uint, value uint32, isWrite bool) uint32 {
	f, err := os.OpenFile(s.path(), os.O_RDWR, 0)
	if err != nil {
		panic(fmt.Errorf("pci: open %s: %w", s.path(), err))
	}
	defer f.Close()

	if _, err = f.Seek(int64(offset), os.SEEK_SET); err != nil {
		panic(fmt.Errorf("pci: seek %s: %w", s.path(), err))
	}

	var b [4]byte
	if isWrite {
		for i := uint(0); i < nBytes; i++ {
			b[i] = byte(value >> (8 * i))
		}
		if _, err = f.Write(b[:nBytes]); err != nil {
			panic(fmt.Errorf("pci: write %s: %w", s.path(), err))
		}
		return value
	}

	if _, err = f.Read(b[:nBytes]); err != nil {
		panic(fmt.Errorf("pci: read %s: %w", s.path(), err))
	}
	var v uint32
	for i := uint(0); i < nBytes; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}

func (s SysfsConfigSpace) ReadConfig8(offset uint) uint8 {
	return uint8(s.rw(offset, 1, 0, false))
}
func (s SysfsConfigSpace) WriteConfig8(offset uint, v uint8) {
	s.rw(offset, 1, uint32(v), true)
}
func (s SysfsConfigSpace) ReadConfig16(offset uint) uint16 {
	return uint16(s.rw(offset, 2, 0, false))
}
func (s SysfsConfigSpace) WriteConfig16(offset uint, v uint16) {
	s.rw(offset, 2, uint32(v), true)
}
func (s SysfsConfigSpace) ReadConfig32(offset uint) uint32 {
	return s.rw(offset, 4, 0, false)
}
func (s SysfsConfigSpace) WriteConfig32(offset uint, v uint32) {
	s.rw(offset, 4, v, true)
}
