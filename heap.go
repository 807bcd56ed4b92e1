package main

import (
	"fmt"
	"sort"
)

// Hole is a run of free heap cells.
type Hole struct {
	First int
	Size  int
}

func (h Hole) end() int { return h.First + h.Size }

// Heap manages the dynamic memory region [start, start+size) with a free list
// of holes sorted by address. Adjacent holes are always merged, so a heap
// with everything freed is a single hole.
type Heap struct {
	start, size int
	holes       []Hole
}

func NewHeap(start, size int) *Heap {
	h := &Heap{start: start, size: size}
	if size > 0 {
		h.holes = []Hole{{First: start, Size: size}}
	}
	return h
}

// Alloc reserves size cells at the lowest address where they fit and returns
// that address. A request for 0 cells reserves 1 so that every allocation has
// a distinct address.
func (h *Heap) Alloc(size int) (int, error) {
	if size < 1 {
		size = 1
	}
	for i, hole := range h.holes {
		if hole.Size < size {
			continue
		}
		addr := hole.First
		if hole.Size == size {
			h.holes = append(h.holes[:i], h.holes[i+1:]...)
		} else {
			h.holes[i] = Hole{First: hole.First + size, Size: hole.Size - size}
		}
		return addr, nil
	}
	return 0, fmt.Errorf("%w: no hole of %d cells (%d free)", ErrOutOfMemory, size, h.FreeSpace())
}

// Free returns size cells at addr to the heap, merging them with the holes on
// either side. The range must lie inside the heap and must not overlap a hole.
func (h *Heap) Free(addr, size int) error {
	if size < 1 {
		size = 1
	}
	freed := Hole{First: addr, Size: size}
	if addr < h.start || freed.end() > h.start+h.size {
		return fmt.Errorf("%w: [%d, %d) is outside the heap", ErrInvalidFree, addr, freed.end())
	}

	// i is the first hole after the freed range.
	i := sort.Search(len(h.holes), func(i int) bool { return h.holes[i].First >= addr })
	if i > 0 && h.holes[i-1].end() > addr {
		return fmt.Errorf("%w: [%d, %d) is already free", ErrInvalidFree, addr, freed.end())
	}
	if i < len(h.holes) && h.holes[i].First < freed.end() {
		return fmt.Errorf("%w: [%d, %d) is already free", ErrInvalidFree, addr, freed.end())
	}

	mergePrev := i > 0 && h.holes[i-1].end() == addr
	mergeNext := i < len(h.holes) && h.holes[i].First == freed.end()
	switch {
	case mergePrev && mergeNext:
		h.holes[i-1].Size += size + h.holes[i].Size
		h.holes = append(h.holes[:i], h.holes[i+1:]...)
	case mergePrev:
		h.holes[i-1].Size += size
	case mergeNext:
		h.holes[i] = Hole{First: addr, Size: size + h.holes[i].Size}
	default:
		h.holes = append(h.holes, Hole{})
		copy(h.holes[i+1:], h.holes[i:])
		h.holes[i] = freed
	}
	return nil
}

// Holes returns a copy of the free list.
func (h *Heap) Holes() []Hole {
	return append([]Hole(nil), h.holes...)
}

// FreeSpace returns the total number of free cells.
func (h *Heap) FreeSpace() int {
	n := 0
	for _, hole := range h.holes {
		n += hole.Size
	}
	return n
}

// Contains reports whether addr is inside the heap region.
func (h *Heap) Contains(addr int) bool {
	return addr >= h.start && addr < h.start+h.size
}

// IsAllocated reports whether addr is a heap cell that is currently in use.
func (h *Heap) IsAllocated(addr int) bool {
	if !h.Contains(addr) {
		return false
	}
	i := sort.Search(len(h.holes), func(i int) bool { return h.holes[i].end() > addr })
	return i == len(h.holes) || h.holes[i].First > addr
}
