// Package guestmem implements the translator's memory image: a single
// contiguous host allocation representing a low-address window of guest
// physical memory. There are no per-segment permission checks; every
// access is masked into the window before it touches the backing slice,
// so an out-of-window guest address is undefined but never faults the
// host process.
package guestmem

import "github.com/openrvt/rvtx/internal/elfview"

// Image is the guest's linear memory: a power-of-two-sized window, little
// endian throughout.
type Image struct {
	data []byte
	mask uint64
}

// New allocates a window of the given size, which must be a power of two;
// sizes that aren't are rounded up.
func New(size uint64) *Image {
	size = nextPow2(size)
	return &Image{data: make([]byte, size), mask: size - 1}
}

func nextPow2(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	p := uint64(1)
	for p < v {
		p <<= 1
	}
	return p
}

// Size returns the window size in bytes.
func (m *Image) Size() uint64 { return uint64(len(m.data)) }

// Bytes returns the backing window, for tests that want to inspect raw
// memory contents directly.
func (m *Image) Bytes() []byte { return m.data }

// LoadSegments copies an ELF image's PT_LOAD segments into the window at
// their virtual addresses, masked the same way runtime accesses are.
func (m *Image) LoadSegments(img *elfview.Image) {
	for _, seg := range img.Segments {
		for i, b := range seg.Bytes {
			m.data[(seg.VAddr+uint64(i))&m.mask] = b
		}
	}
}

func (m *Image) off(addr uint64) uint64 { return addr & m.mask }

// Load8/16/32/64 read a little-endian value of the given width, masking
// addr into the window first.
func (m *Image) Load8(addr uint64) uint8 { return m.data[m.off(addr)] }

func (m *Image) Load16(addr uint64) uint16 {
	o := m.off(addr)
	return uint16(m.data[o&m.mask]) | uint16(m.data[(o+1)&m.mask])<<8
}

func (m *Image) Load32(addr uint64) uint32 {
	o := m.off(addr)
	return uint32(m.data[o&m.mask]) |
		uint32(m.data[(o+1)&m.mask])<<8 |
		uint32(m.data[(o+2)&m.mask])<<16 |
		uint32(m.data[(o+3)&m.mask])<<24
}

func (m *Image) Load64(addr uint64) uint64 {
	lo := uint64(m.Load32(addr))
	hi := uint64(m.Load32(addr + 4))
	return lo | hi<<32
}

func (m *Image) Store8(addr uint64, v uint8) { m.data[m.off(addr)] = v }

func (m *Image) Store16(addr uint64, v uint16) {
	o := m.off(addr)
	m.data[o&m.mask] = byte(v)
	m.data[(o+1)&m.mask] = byte(v >> 8)
}

func (m *Image) Store32(addr uint64, v uint32) {
	o := m.off(addr)
	m.data[o&m.mask] = byte(v)
	m.data[(o+1)&m.mask] = byte(v >> 8)
	m.data[(o+2)&m.mask] = byte(v >> 16)
	m.data[(o+3)&m.mask] = byte(v >> 24)
}

func (m *Image) Store64(addr uint64, v uint64) {
	m.Store32(addr, uint32(v))
	m.Store32(addr+4, uint32(v>>32))
}

// ReadAt implements cfg.ByteSource: an instruction-fetch/jump-table-scan
// view over the same window, masked the same way. It always reports
// ok=true: every address wraps through the mask, so the CFG builder's
// "outside the guest memory window" error never comes from this source.
func (m *Image) ReadAt(addr uint64, n int) ([]byte, bool) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = m.data[m.off(addr+uint64(i))]
	}
	return out, true
}
