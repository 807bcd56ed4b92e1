package main

// ComputeTypeSizes computes the size of every type declared in program and
// the offsets of every record field. A type that contains itself other than
// through a pointer has no finite size and is reported. Returns true if any
// error was reported.
func ComputeTypeSizes(program *ASTNode, reporter Reporter) bool {
	s := newSizer()
	hasErrors := false
	Walk(program, func(node *ASTNode) {
		switch node.Kind {
		case NodeTypeDecl:
			if _, ok := s.size(node.DeclType); !ok {
				reporter.Error(InfiniteType, node.Loc, node.String)
				hasErrors = true
			}
		case NodeVarDecl, NodeParam:
			// Infinite types used here are reported at their declaration.
			s.size(node.DeclType)
		}
	})
	return hasErrors
}

// SizeOf returns the number of cells a value of type t occupies. Sizes are
// cached on composite types, so this is cheap after ComputeTypeSizes.
func SizeOf(t *TypeNode) int {
	n, _ := newSizer().size(t)
	return n
}

type sizer struct {
	inProgress map[*TypeNode]bool
	infinite   map[*TypeNode]bool
}

func newSizer() *sizer {
	return &sizer{
		inProgress: make(map[*TypeNode]bool),
		infinite:   make(map[*TypeNode]bool),
	}
}

func (s *sizer) size(t *TypeNode) (int, bool) {
	t = Resolve(t)
	if t.Kind != TypeArray && t.Kind != TypeRecord {
		return 1, true
	}
	if t.sized {
		return t.Size, true
	}
	if s.infinite[t] {
		return 0, false
	}
	if s.inProgress[t] {
		s.infinite[t] = true
		return 0, false
	}
	s.inProgress[t] = true
	defer delete(s.inProgress, t)

	size := 0
	ok := true
	switch t.Kind {
	case TypeArray:
		base, baseOK := s.size(t.Child)
		size, ok = t.Dim*base, baseOK
	case TypeRecord:
		for i := range t.Fields {
			t.Fields[i].Offset = size
			n, fieldOK := s.size(t.Fields[i].Type)
			size += n
			ok = ok && fieldOK
		}
	}
	if !ok {
		s.infinite[t] = true
		return 0, false
	}
	t.Size = size
	t.sized = true
	return size, true
}

// firstFrameOffset is the first cell of an activation register available to
// parameters and locals. Cells 0 and 1 hold the return address and the saved
// display entry.
const firstFrameOffset = 2

// frame tracks where the next variable of one activation goes.
type frame struct {
	level int
	next  int
}

// AssignAddresses gives every variable and parameter in program its address.
// Variables of the main program, including those of blocks in the main
// instruction, get static addresses from 0 upwards. Parameters and locals of a
// procedure get offsets in its activation register. Returns the static size.
func AssignAddresses(program *ASTNode) int {
	static := &frame{level: 0}
	assignDeclAddresses(program.Decls, static)
	assignBlockAddresses(program.Body, static)
	return static.next
}

func assignDeclAddresses(decls []*ASTNode, f *frame) {
	for _, decl := range decls {
		switch decl.Kind {
		case NodeVarDecl:
			decl.Address = f.next
			decl.Level = f.level
			f.next += SizeOf(decl.DeclType)
		case NodeProcDecl:
			assignProcedureAddresses(decl, f.level+1)
		}
	}
}

func assignProcedureAddresses(proc *ASTNode, level int) {
	f := &frame{level: level, next: firstFrameOffset}
	for _, param := range proc.Params {
		param.Address = f.next
		param.Level = level
		if param.ByRef {
			f.next++
		} else {
			f.next += SizeOf(param.DeclType)
		}
	}
	assignDeclAddresses(proc.Body.Decls, f)
	for _, instr := range proc.Body.Children {
		assignBlockAddresses(instr, f)
	}
	proc.Level = level
	proc.FrameSize = f.next - firstFrameOffset
}

// assignBlockAddresses finds the blocks nested in instr and places their
// variables in f after everything already there.
func assignBlockAddresses(instr *ASTNode, f *frame) {
	if instr == nil {
		return
	}
	if instr.Kind == NodeBlock {
		assignDeclAddresses(instr.Decls, f)
	}
	for _, child := range instr.Children {
		assignBlockAddresses(child, f)
	}
	assignBlockAddresses(instr.Body, f)
}
