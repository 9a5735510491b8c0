// Package memory computes the data, heap and stack segments of a target
// from its platform memory layout and renders memory regions as hex dumps.
package memory

import (
	"fmt"
)

// Layout is implemented by platforms that can report where their memory
// segments are. All addresses are absolute.
type Layout interface {
	// DataStart is the first address of the static data segment (start of RAM).
	DataStart() uint64
	// HeapStart is the first address after the static data segment.
	HeapStart() uint64
	// BreakPointer is the current allocator frontier. Platforms that have
	// not allocated anything yet may return 0 or HeapStart.
	BreakPointer() uint64
	// RAMEnd is the last valid RAM address (inclusive).
	RAMEnd() uint64
}

// StackProber reports the current depth of the stack.
type StackProber interface {
	// StackMarker returns the address of the innermost live stack slot.
	StackMarker() uint64
}

// Reader is like io.ReaderAt, but the offset is a uint64 so that it
// can address all of 64-bit memory.
type Reader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// Platform is everything the console needs from the target.
type Platform interface {
	Layout
	StackProber
	Reader
}

// Region is a contiguous range of memory.
type Region struct {
	Start uint64
	Len   int
}

// End returns the address one past the last byte of r.
func (r Region) End() uint64 {
	return r.Start + uint64(r.Len)
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End())
}

// Segments describes how RAM is partitioned at a given moment.
type Segments struct {
	Data  Region
	Heap  Region
	Stack Region
	// Free is the number of bytes between the heap end and the stack
	// marker. It is negative when the two have collided.
	Free int
}

// HeapEnd returns the current heap frontier of l. A break pointer below
// the heap start means nothing has been allocated yet.
func HeapEnd(l Layout) uint64 {
	brk := l.BreakPointer()
	if hs := l.HeapStart(); brk < hs {
		return hs
	}
	return brk
}

// Boundaries computes the data, heap and stack segments of l using marker
// as the top of the stack.
func Boundaries(l Layout, marker uint64) Segments {
	dataStart, heapStart := l.DataStart(), l.HeapStart()
	heapEnd := HeapEnd(l)
	ramEnd := l.RAMEnd()

	s := Segments{
		Data: Region{Start: dataStart, Len: int(heapStart - dataStart)},
		Heap: Region{Start: heapStart, Len: int(heapEnd - heapStart)},
		Free: int(int64(marker) - int64(heapEnd)),
	}
	if marker <= ramEnd {
		s.Stack = Region{Start: marker, Len: int(ramEnd - marker + 1)}
	} else {
		s.Stack = Region{Start: marker}
	}
	return s
}

// CheckStack returns false if fewer than room bytes separate the stack
// marker from the heap end.
func CheckStack(l Layout, marker uint64, room int) bool {
	return int64(marker) > int64(HeapEnd(l))+int64(room)
}

// Usage is a memory usage summary.
type Usage struct {
	Data, Heap, Stack, Free int
}

// UsageOf summarises s.
func UsageOf(s Segments) Usage {
	return Usage{Data: s.Data.Len, Heap: s.Heap.Len, Stack: s.Stack.Len, Free: s.Free}
}

func (u Usage) String() string {
	return fmt.Sprintf("data=%d,heap=%d,stack=%d,free=%d", u.Data, u.Heap, u.Stack, u.Free)
}
