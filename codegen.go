package main

import "fmt"

// GenerateCode emits the bytecode for a labeled program. Every node must
// come out exactly where AssignLabels said it would; a mismatch is an
// internal error and is returned as such.
func GenerateCode(program *ASTNode, staticSize int) (*Bytecode, error) {
	g := &generator{}
	g.emit(Instruction{Op: OpJump, A: program.Body.First})
	for _, proc := range collectProcedures(program) {
		g.expect(proc, proc.First)
		g.instruction(proc.Body)
		g.emit(Instruction{Op: OpDeactivate, A: proc.Level, B: proc.FrameSize})
		g.emit(Instruction{Op: OpJumpInd})
		g.expect(proc, proc.Next)
	}
	g.instruction(program.Body)
	g.expect(program, program.Next)
	if g.err != nil {
		return nil, g.err
	}
	return &Bytecode{Code: g.code, Locs: g.locs, StaticSize: staticSize}, nil
}

type generator struct {
	code []Instruction
	locs []SourceLocation
	loc  SourceLocation
	err  error
}

func (g *generator) emit(in Instruction) {
	g.code = append(g.code, in)
	g.locs = append(g.locs, g.loc)
}

// at attributes the instructions emitted until the returned function is
// called to node's source location.
func (g *generator) at(node *ASTNode) func() {
	saved := g.loc
	if node.Loc.Line != 0 {
		g.loc = node.Loc
	}
	return func() { g.loc = saved }
}

func (g *generator) push(v Value) {
	g.emit(Instruction{Op: OpPush, Val: v})
}

// expect records an error if the code generated so far does not end at pos.
func (g *generator) expect(node *ASTNode, pos int) {
	if g.err == nil && len(g.code) != pos {
		g.err = fmt.Errorf("internal error: %s at %s: labeled position %d, generated %d", node.Kind, node.Loc, pos, len(g.code))
	}
}

func (g *generator) coerce(target, source *TypeNode) {
	if op, ok := coercion(target, source); ok {
		g.emit(Instruction{Op: op})
	}
}

func (g *generator) address(node *ASTNode) {
	defer g.at(node)()
	g.expect(node, node.First)
	g.addressCode(node)
	g.expect(node, node.Next)
}

func (g *generator) addressCode(node *ASTNode) {
	switch node.Kind {
	case NodeIdent:
		decl := node.Decl
		if isDirectVar(node) {
			g.push(IntValue(int64(decl.Address)))
			break
		}
		g.emit(Instruction{Op: OpLoadDisplay, A: decl.Level})
		g.push(IntValue(int64(decl.Address)))
		g.emit(Instruction{Op: OpAdd})
		if decl.Kind == NodeParam && decl.ByRef {
			g.emit(Instruction{Op: OpLoadInd})
		}
	case NodeIndex:
		array := Resolve(node.Children[0].TypeAST)
		g.address(node.Children[0])
		g.value(node.Children[1])
		g.emit(Instruction{Op: OpCheckIndex, A: array.Dim})
		g.push(IntValue(int64(SizeOf(array.Child))))
		g.emit(Instruction{Op: OpMul})
		g.emit(Instruction{Op: OpAdd})
	case NodeSelect:
		field, _ := FieldByName(node.Children[0].TypeAST, node.String)
		g.address(node.Children[0])
		g.push(IntValue(int64(field.Offset)))
		g.emit(Instruction{Op: OpAdd})
	case NodeDeref:
		g.value(node.Children[0])
	default:
		panic("not a memory reference: " + string(node.Kind))
	}
}

var unaryOpcodes = map[Operator]Opcode{
	OperatorNeg:      OpNeg,
	OperatorNot:      OpNot,
	OperatorToInt:    OpToInt,
	OperatorToReal:   OpToReal,
	OperatorToBool:   OpToBool,
	OperatorToChar:   OpToChar,
	OperatorToString: OpToString,
}

var binaryOpcodes = map[Operator]Opcode{
	OperatorElem: OpCharAt,
	OperatorAdd:  OpAdd,
	OperatorSub:  OpSub,
	OperatorMul:  OpMul,
	OperatorDiv:  OpDiv,
	OperatorMod:  OpMod,
	OperatorEq:   OpEq,
	OperatorNe:   OpNe,
	OperatorLt:   OpLt,
	OperatorLe:   OpLe,
	OperatorGt:   OpGt,
	OperatorGe:   OpGe,
	OperatorAnd:  OpAnd,
	OperatorOr:   OpOr,
}

// constantValue converts a literal node to the value it denotes.
func constantValue(node *ASTNode) Value {
	switch node.Kind {
	case NodeInteger:
		return IntValue(node.Integer)
	case NodeBoolean:
		return BoolValue(node.Boolean)
	case NodeReal:
		return RealValue(node.Real)
	case NodeChar:
		return CharValue(node.Char)
	case NodeString:
		return StringValue(node.String)
	case NodeNull:
		return NullValue
	default:
		panic("not a constant: " + string(node.Kind))
	}
}

func (g *generator) value(node *ASTNode) {
	defer g.at(node)()
	if IsMem(node) {
		switch {
		case IsComposite(node.TypeAST):
			g.address(node)
		case isDirectVar(node):
			g.expect(node, node.First)
			g.emit(Instruction{Op: OpLoad, A: node.Decl.Address})
			g.expect(node, node.Next)
		default:
			g.expect(node, node.First)
			g.addressCode(node)
			g.emit(Instruction{Op: OpLoadInd})
			g.expect(node, node.Next)
		}
		return
	}

	g.expect(node, node.First)
	switch {
	case IsConstant(node):
		g.push(constantValue(node))
	case node.Kind == NodeUnary:
		g.value(node.Children[0])
		g.emit(Instruction{Op: unaryOpcodes[node.Op]})
	case node.Kind == NodeBinary:
		for i, operand := range node.Children {
			g.value(operand)
			if operandWidens(node, i) {
				g.emit(Instruction{Op: OpToReal})
			}
		}
		g.emit(Instruction{Op: binaryOpcodes[node.Op]})
	default:
		panic("not an expression: " + string(node.Kind))
	}
	g.expect(node, node.Next)
}

func (g *generator) instruction(node *ASTNode) {
	defer g.at(node)()
	g.expect(node, node.First)
	switch node.Kind {
	case NodeAssign:
		mem, exp := node.Children[0], node.Children[1]
		switch {
		case IsComposite(mem.TypeAST):
			g.address(mem)
			g.address(exp)
			g.emit(Instruction{Op: OpCopy, A: SizeOf(mem.TypeAST)})
		case isDirectVar(mem):
			g.value(exp)
			g.coerce(mem.TypeAST, exp.TypeAST)
			g.expect(mem, mem.First)
			g.emit(Instruction{Op: OpStore, A: mem.Decl.Address})
		default:
			g.address(mem)
			g.value(exp)
			g.coerce(mem.TypeAST, exp.TypeAST)
			g.emit(Instruction{Op: OpStoreInd})
		}

	case NodeBlock:
		for _, instr := range node.Children {
			g.instruction(instr)
		}

	case NodeWrite:
		g.value(node.Children[0])
		g.emit(Instruction{Op: OpWrite})

	case NodeRead, NodeNew:
		mem := node.Children[0]
		produce := Instruction{Op: OpRead, A: int(valueKindOf(mem.TypeAST))}
		if node.Kind == NodeNew {
			produce = Instruction{Op: OpAlloc, A: SizeOf(Resolve(mem.TypeAST).Child)}
		}
		if isDirectVar(mem) {
			g.expect(mem, mem.First)
			g.emit(produce)
			g.emit(Instruction{Op: OpStore, A: mem.Decl.Address})
		} else {
			g.address(mem)
			g.emit(produce)
			g.emit(Instruction{Op: OpStoreInd})
		}

	case NodeFree:
		mem := node.Children[0]
		g.value(mem)
		g.emit(Instruction{Op: OpDealloc, A: SizeOf(Resolve(mem.TypeAST).Child)})

	case NodeWhile:
		g.value(node.Children[0])
		g.emit(Instruction{Op: OpJumpIfFalse, A: node.Next})
		g.instruction(node.Children[1])
		g.emit(Instruction{Op: OpJump, A: node.First})

	case NodeIf:
		g.value(node.Children[0])
		g.emit(Instruction{Op: OpJumpIfFalse, A: node.Next})
		g.instruction(node.Children[1])

	case NodeIfElse:
		g.value(node.Children[0])
		g.emit(Instruction{Op: OpJumpIfFalse, A: node.Children[2].First})
		g.instruction(node.Children[1])
		g.emit(Instruction{Op: OpJump, A: node.Next})
		g.instruction(node.Children[2])

	case NodeSwitch:
		// The scrutinee stays on the stack while the cases compare against
		// it and is dropped before the chosen body runs.
		g.value(node.Children[0])
		for _, c := range node.Children[1:] {
			g.expect(c, c.First)
			g.value(c.Children[0])
			g.emit(Instruction{Op: OpEqKeep})
			g.emit(Instruction{Op: OpJumpIfFalse, A: c.Next})
			g.emit(Instruction{Op: OpPop})
			g.instruction(c.Children[1])
			g.emit(Instruction{Op: OpJump, A: node.Next})
			g.expect(c, c.Next)
		}
		g.emit(Instruction{Op: OpPop})
		g.instruction(node.Body)

	case NodeCall:
		proc := node.Decl
		g.emit(Instruction{Op: OpActivate, A: proc.Level, B: proc.FrameSize, C: node.Next})
		for i, param := range proc.Params {
			arg := node.Children[i]
			g.emit(Instruction{Op: OpDup})
			g.push(IntValue(int64(param.Address)))
			g.emit(Instruction{Op: OpAdd})
			switch {
			case param.ByRef:
				g.address(arg)
				g.emit(Instruction{Op: OpStoreInd})
			case IsComposite(param.DeclType):
				g.address(arg)
				g.emit(Instruction{Op: OpCopy, A: SizeOf(param.DeclType)})
			default:
				g.value(arg)
				g.coerce(param.DeclType, arg.TypeAST)
				g.emit(Instruction{Op: OpStoreInd})
			}
		}
		g.emit(Instruction{Op: OpSetDisplay, A: proc.Level})
		g.emit(Instruction{Op: OpJump, A: proc.First})

	default:
		panic("not an instruction: " + string(node.Kind))
	}
	g.expect(node, node.Next)
}
