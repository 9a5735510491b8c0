package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for accesses outside of RAM.
	ErrOutOfRange = errors.New("address out of range")
	// ErrOutOfMemory is returned by Malloc when the heap would run into
	// the stack.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrStackOverflow is returned by Push when the stack would run into
	// the heap.
	ErrStackOverflow = errors.New("stack overflow")
)

// RAM is a simulated target memory: a static data segment at the bottom,
// a heap growing up from the end of the data segment and a stack growing
// down from the last RAM address. Values are little-endian.
//
// RAM implements Platform.
type RAM struct {
	start     uint64
	mem       []byte
	heapStart uint64
	brk       uint64 // 0 until the first allocation
	sp        uint64 // lowest used stack address, RAMEnd()+1 when empty
	frames    []uint64
}

// NewRAM returns size bytes of RAM starting at start, with the first
// dataSize bytes reserved for static data.
func NewRAM(start uint64, size, dataSize int) *RAM {
	if dataSize > size {
		panic(fmt.Sprintf("data segment (%d bytes) larger than RAM (%d bytes)", dataSize, size))
	}
	return &RAM{
		start:     start,
		mem:       make([]byte, size),
		heapStart: start + uint64(dataSize),
		sp:        start + uint64(size),
	}
}

func (m *RAM) DataStart() uint64 { return m.start }

func (m *RAM) HeapStart() uint64 { return m.heapStart }

func (m *RAM) BreakPointer() uint64 { return m.brk }

func (m *RAM) RAMEnd() uint64 { return m.start + uint64(len(m.mem)) - 1 }

// StackMarker returns the current stack pointer.
func (m *RAM) StackMarker() uint64 { return m.sp }

// Static returns the address of the static data slot at offset off.
func (m *RAM) Static(off int) uint64 {
	return m.start + uint64(off)
}

// Malloc reserves n bytes of heap and returns their address.
func (m *RAM) Malloc(n int) (uint64, error) {
	end := HeapEnd(m)
	if end+uint64(n) > m.sp {
		return 0, fmt.Errorf("malloc(%d): %w", n, ErrOutOfMemory)
	}
	m.brk = end + uint64(n)
	return end, nil
}

// Reset releases the whole heap.
func (m *RAM) Reset() {
	m.brk = 0
}

// Push reserves a stack frame of n bytes and returns its address.
func (m *RAM) Push(n int) (uint64, error) {
	if m.sp < uint64(n) || m.sp-uint64(n) < HeapEnd(m) {
		return 0, fmt.Errorf("push(%d): %w", n, ErrStackOverflow)
	}
	m.frames = append(m.frames, m.sp)
	m.sp -= uint64(n)
	return m.sp, nil
}

// Pop releases the innermost stack frame.
func (m *RAM) Pop() {
	if len(m.frames) == 0 {
		return
	}
	m.sp = m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
}

func (m *RAM) slice(addr uint64, n int) ([]byte, error) {
	if addr < m.start || addr-m.start+uint64(n) > uint64(len(m.mem)) {
		return nil, fmt.Errorf("%#x+%d: %w", addr, n, ErrOutOfRange)
	}
	off := addr - m.start
	return m.mem[off : off+uint64(n)], nil
}

// ReadMemory copies len(buf) bytes at addr into buf.
func (m *RAM) ReadMemory(buf []byte, addr uint64) (int, error) {
	b, err := m.slice(addr, len(buf))
	if err != nil {
		return 0, err
	}
	return copy(buf, b), nil
}

// WriteMemory copies data to addr.
func (m *RAM) WriteMemory(addr uint64, data []byte) (int, error) {
	b, err := m.slice(addr, len(data))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (m *RAM) PutUint8(addr uint64, v uint8) error {
	_, err := m.WriteMemory(addr, []byte{v})
	return err
}

func (m *RAM) PutUint16(addr uint64, v uint16) error {
	b, err := m.slice(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

func (m *RAM) PutUint32(addr uint64, v uint32) error {
	b, err := m.slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func (m *RAM) Uint16(addr uint64) (uint16, error) {
	b, err := m.slice(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}
