package main

// AssignLabels computes, without generating anything, the range of code
// positions [First, Next) every node of program will occupy, and returns the
// total code length. Code generation relies on these positions for jump
// targets and checks that it lands on them.
//
// Program layout: a jump to the main instruction, then every procedure in
// declaration order (each followed by its return sequence), then the main
// instruction.
func AssignLabels(program *ASTNode) int {
	l := &labeler{}
	program.First = 0
	l.pos = 1
	for _, proc := range collectProcedures(program) {
		proc.First = l.pos
		l.instruction(proc.Body)
		l.pos += 2
		proc.Next = l.pos
	}
	l.instruction(program.Body)
	program.Next = l.pos
	return l.pos
}

// collectProcedures returns every procedure declared anywhere in program, in
// declaration order.
func collectProcedures(program *ASTNode) []*ASTNode {
	var procs []*ASTNode
	Walk(program, func(node *ASTNode) {
		if node.Kind == NodeProcDecl {
			procs = append(procs, node)
		}
	})
	return procs
}

// isDirectVar reports whether node names a static variable, which is read
// and written with a single instruction.
func isDirectVar(node *ASTNode) bool {
	return node.Kind == NodeIdent && node.Decl != nil &&
		node.Decl.Kind == NodeVarDecl && node.Decl.Level == 0
}

// coercion returns the conversion a value of type source needs before it is
// stored into a cell of type target.
func coercion(target, source *TypeNode) (Opcode, bool) {
	switch {
	case isKind(target, TypeReal) && isKind(source, TypeInt):
		return OpToReal, true
	case isKind(target, TypeInt) && isKind(source, TypeReal):
		return OpToInt, true
	default:
		return 0, false
	}
}

type labeler struct {
	pos int
}

func (l *labeler) coerce(target, source *TypeNode) {
	if _, ok := coercion(target, source); ok {
		l.pos++
	}
}

// mark gives node an empty range. Used for memory references whose access is
// folded into their parent's instruction.
func (l *labeler) mark(node *ASTNode) {
	node.First = l.pos
	node.Next = l.pos
}

func (l *labeler) address(node *ASTNode) {
	node.First = l.pos
	l.addressCode(node)
	node.Next = l.pos
}

func (l *labeler) addressCode(node *ASTNode) {
	switch node.Kind {
	case NodeIdent:
		switch {
		case isDirectVar(node):
			l.pos++ // push address
		case node.Decl.Kind == NodeParam && node.Decl.ByRef:
			l.pos += 4 // load display, push offset, add, load address
		default:
			l.pos += 3 // load display, push offset, add
		}
	case NodeIndex:
		l.address(node.Children[0])
		l.value(node.Children[1])
		l.pos += 4 // check index, push element size, mul, add
	case NodeSelect:
		l.address(node.Children[0])
		l.pos += 2 // push offset, add
	case NodeDeref:
		l.value(node.Children[0])
	default:
		panic("not a memory reference: " + string(node.Kind))
	}
}

func (l *labeler) value(node *ASTNode) {
	if IsMem(node) {
		switch {
		case IsComposite(node.TypeAST):
			l.address(node)
		case isDirectVar(node):
			node.First = l.pos
			l.pos++ // load
			node.Next = l.pos
		default:
			node.First = l.pos
			l.addressCode(node)
			l.pos++ // load indirect
			node.Next = l.pos
		}
		return
	}

	node.First = l.pos
	switch {
	case IsConstant(node):
		l.pos++
	case node.Kind == NodeUnary:
		l.value(node.Children[0])
		l.pos++
	case node.Kind == NodeBinary:
		for i, operand := range node.Children {
			l.value(operand)
			if operandWidens(node, i) {
				l.pos++
			}
		}
		l.pos++
	default:
		panic("not an expression: " + string(node.Kind))
	}
	node.Next = l.pos
}

func (l *labeler) instruction(node *ASTNode) {
	node.First = l.pos
	switch node.Kind {
	case NodeAssign:
		mem, exp := node.Children[0], node.Children[1]
		switch {
		case IsComposite(mem.TypeAST):
			l.address(mem)
			l.address(exp)
			l.pos++ // copy
		case isDirectVar(mem):
			l.value(exp)
			l.coerce(mem.TypeAST, exp.TypeAST)
			l.mark(mem)
			l.pos++ // store
		default:
			l.address(mem)
			l.value(exp)
			l.coerce(mem.TypeAST, exp.TypeAST)
			l.pos++ // store indirect
		}

	case NodeBlock:
		for _, instr := range node.Children {
			l.instruction(instr)
		}

	case NodeWrite:
		l.value(node.Children[0])
		l.pos++

	case NodeRead, NodeNew:
		mem := node.Children[0]
		if isDirectVar(mem) {
			l.mark(mem)
		} else {
			l.address(mem)
		}
		l.pos += 2 // read or alloc, store

	case NodeFree:
		l.value(node.Children[0])
		l.pos++

	case NodeWhile:
		l.value(node.Children[0])
		l.pos++ // exit jump
		l.instruction(node.Children[1])
		l.pos++ // back jump

	case NodeIf:
		l.value(node.Children[0])
		l.pos++
		l.instruction(node.Children[1])

	case NodeIfElse:
		l.value(node.Children[0])
		l.pos++
		l.instruction(node.Children[1])
		l.pos++ // jump over else
		l.instruction(node.Children[2])

	case NodeSwitch:
		l.value(node.Children[0])
		for _, c := range node.Children[1:] {
			c.First = l.pos
			l.value(c.Children[0])
			l.pos += 3 // compare, skip to next case, drop scrutinee
			l.instruction(c.Children[1])
			l.pos++ // jump to end
			c.Next = l.pos
		}
		l.pos++ // drop scrutinee
		l.instruction(node.Body)

	case NodeCall:
		l.pos++ // activate
		for i, param := range node.Decl.Params {
			arg := node.Children[i]
			l.pos += 3 // dup base, push offset, add
			if param.ByRef || IsComposite(param.DeclType) {
				l.address(arg)
			} else {
				l.value(arg)
				l.coerce(param.DeclType, arg.TypeAST)
			}
			l.pos++ // store
		}
		l.pos += 2 // set display, jump

	default:
		panic("not an instruction: " + string(node.Kind))
	}
	node.Next = l.pos
}
