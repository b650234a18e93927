package machine

import "encoding/binary"

// Protection mask bits for a Region (spec.md §4.1). Tracked but, per the
// documented loader behavior, not currently enforced on read/write — the
// loader grants R|W|X to every segment it maps, matching the Rust original's
// commented-out make_readonly/mem_prot(R) calls.
const (
	ProtRead  uint8 = 1 << 0
	ProtWrite uint8 = 1 << 1
	ProtExec  uint8 = 1 << 2
)

// Region is one named, contiguous, non-overlapping span of guest-addressable
// memory.
type Region struct {
	Base   uint64
	Length uint64
	Bytes  []byte
	Prot   uint8
	Name   string
}

func (r *Region) contains(addr uint64) bool {
	return addr >= r.Base && addr < r.Base+r.Length
}

func (r *Region) containsSpan(addr, length uint64) bool {
	return addr >= r.Base && addr-r.Base <= r.Length && length <= r.Length-(addr-r.Base)
}

// MemoryMap is the sparse, protection-tagged linear address space described
// in spec.md §4.1: an ordered list of non-overlapping named regions.
type MemoryMap struct {
	regions []*Region
}

// NewMemoryMap returns an empty memory map.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{}
}

// Regions returns the live regions in insertion order, for inspection/tests.
func (m *MemoryMap) Regions() []*Region { return m.regions }

func (m *MemoryMap) findByAddr(addr uint64) *Region {
	for _, r := range m.regions {
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

func (m *MemoryMap) overlaps(base uint64) bool {
	return m.findByAddr(base) != nil
}

// InitRegion creates a new region [base, base+length). initial is copied in
// (zero-filled where shorter than length); fails with KindRegionOverlap if
// base already falls inside an existing region.
func (m *MemoryMap) InitRegion(base, length uint64, initial []byte, name string, prot uint8) *Error {
	if m.overlaps(base) {
		return Newf(KindRegionOverlap, "region overlap: cannot create region at %#x (length %#x)", base, length)
	}
	bytes := make([]byte, length)
	copy(bytes, initial)
	m.regions = append(m.regions, &Region{Base: base, Length: length, Bytes: bytes, Prot: prot, Name: name})
	return nil
}

// InitZero is a convenience wrapper around InitRegion for an anonymous
// zero-filled region (stack, bss-style pages).
func (m *MemoryMap) InitZero(base, length uint64, name string) *Error {
	return m.InitRegion(base, length, nil, name, ProtRead|ProtWrite|ProtExec)
}

// InitZeroNamed mirrors the original's mem_init_zero_named helper used by
// the ELF loader to give each LOAD segment a distinguishable region name.
func (m *MemoryMap) InitZeroNamed(base, length uint64, name string) *Error {
	return m.InitZero(base, length, name)
}

// InitArea creates a region pre-populated with the given bytes (length is
// len(data)).
func (m *MemoryMap) InitArea(base uint64, data []byte, name string) *Error {
	return m.InitRegion(base, uint64(len(data)), data, name, ProtRead|ProtWrite|ProtExec)
}

// SetProt replaces the protection mask of the region containing addr.
func (m *MemoryMap) SetProt(addr uint64, mask uint8) *Error {
	r := m.findByAddr(addr)
	if r == nil {
		return Newf(KindOutOfBounds, "set_prot: no region contains address %#x", addr)
	}
	r.Prot = mask
	return nil
}

// ReadBytes reads length bytes starting at addr. The whole span must lie in
// a single region.
func (m *MemoryMap) ReadBytes(addr, length uint64) ([]byte, *Error) {
	for _, r := range m.regions {
		if r.containsSpan(addr, length) {
			off := addr - r.Base
			out := make([]byte, length)
			copy(out, r.Bytes[off:off+length])
			return out, nil
		}
	}
	return nil, Newf(KindOutOfBounds, "out of bounds read at %#x (length %#x)", addr, length)
}

// WriteBytes writes data at addr. The whole span must lie in a single region.
func (m *MemoryMap) WriteBytes(addr uint64, data []byte) *Error {
	for _, r := range m.regions {
		if r.containsSpan(addr, uint64(len(data))) {
			off := addr - r.Base
			copy(r.Bytes[off:off+uint64(len(data))], data)
			return nil
		}
	}
	return Newf(KindOutOfBounds, "out of bounds write at %#x (length %#x)", addr, len(data))
}

// Read8/16/32/64 and Write8/16/32/64 are typed little-endian accessors over
// ReadBytes/WriteBytes (spec.md §4.1).

func (m *MemoryMap) Read8(addr uint64) (uint8, *Error) {
	b, err := m.ReadBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *MemoryMap) Read16(addr uint64) (uint16, *Error) {
	b, err := m.ReadBytes(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *MemoryMap) Read32(addr uint64) (uint32, *Error) {
	b, err := m.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *MemoryMap) Read64(addr uint64) (uint64, *Error) {
	b, err := m.ReadBytes(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *MemoryMap) Write8(addr uint64, v uint8) *Error {
	return m.WriteBytes(addr, []byte{v})
}

func (m *MemoryMap) Write16(addr uint64, v uint16) *Error {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return m.WriteBytes(addr, b)
}

func (m *MemoryMap) Write32(addr uint64, v uint32) *Error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return m.WriteBytes(addr, b)
}

func (m *MemoryMap) Write64(addr uint64, v uint64) *Error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return m.WriteBytes(addr, b)
}

// ReadWidth/WriteWidth dispatch on a bit width (8/16/32/64), used by the
// engine's width-parameterized memory-operand combinators.
func (m *MemoryMap) ReadWidth(addr uint64, width int) (uint64, *Error) {
	switch width {
	case 8:
		v, err := m.Read8(addr)
		return uint64(v), err
	case 16:
		v, err := m.Read16(addr)
		return uint64(v), err
	case 32:
		v, err := m.Read32(addr)
		return uint64(v), err
	case 64:
		return m.Read64(addr)
	default:
		return 0, Newf(KindBadRegister, "unsupported memory access width %d", width)
	}
}

func (m *MemoryMap) WriteWidth(addr uint64, width int, v uint64) *Error {
	switch width {
	case 8:
		return m.Write8(addr, uint8(v))
	case 16:
		return m.Write16(addr, uint16(v))
	case 32:
		return m.Write32(addr, uint32(v))
	case 64:
		return m.Write64(addr, v)
	default:
		return Newf(KindBadRegister, "unsupported memory access width %d", width)
	}
}
