package main

import "fmt"

// ActivationStack manages the activation registers of running procedures in
// the memory region [start, limit), and the display: for each lexical level,
// the base of the innermost active register of a procedure at that level.
type ActivationStack struct {
	start, limit int
	top          int
	display      []int
}

func NewActivationStack(start, limit int) *ActivationStack {
	return &ActivationStack{start: start, limit: limit, top: start}
}

// CreateActivationRegister reserves a register for a procedure with size
// cells of parameters and locals, plus the two bookkeeping cells, and returns
// its base address.
func (s *ActivationStack) CreateActivationRegister(size int) (int, error) {
	base := s.top
	if base+size+2 > s.limit {
		return 0, fmt.Errorf("%w: register of %d cells at %d exceeds limit %d", ErrStackOverflow, size+2, base, s.limit)
	}
	s.top += size + 2
	return base, nil
}

// FreeActivationRegister releases the most recent register, which must have
// been created with the same size. It returns the register's base.
func (s *ActivationStack) FreeActivationRegister(size int) (int, error) {
	if s.top-(size+2) < s.start {
		return 0, fmt.Errorf("%w: no register of %d cells to free", ErrStackUnderflow, size+2)
	}
	s.top -= size + 2
	return s.top, nil
}

// FixDisplay records base as the register of the given level. Levels start at 1.
func (s *ActivationStack) FixDisplay(level, base int) {
	for len(s.display) < level {
		s.display = append(s.display, -1)
	}
	s.display[level-1] = base
}

// Display returns the register base recorded for level, or -1 if there is
// none.
func (s *ActivationStack) Display(level int) int {
	if level < 1 || level > len(s.display) {
		return -1
	}
	return s.display[level-1]
}

// Top returns the first unused address.
func (s *ActivationStack) Top() int {
	return s.top
}

// Contains reports whether addr is inside a live register.
func (s *ActivationStack) Contains(addr int) bool {
	return addr >= s.start && addr < s.top
}
