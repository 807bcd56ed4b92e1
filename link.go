package main

// LinkProgram binds every name in program to its declaration: named types to
// their NodeTypeDecl, identifiers to their NodeVarDecl or NodeParam, and calls
// to their NodeProcDecl. It reports every problem it finds and returns true if
// there were any; later passes must not run in that case.
func LinkProgram(program *ASTNode, reporter Reporter) bool {
	l := &linker{symbols: NewSymbolTable(), reporter: reporter}
	l.linkDecls(program.Decls)
	l.linkNode(program.Body)
	return l.hasErrors
}

type linker struct {
	symbols   *SymbolTable
	reporter  Reporter
	hasErrors bool
}

func (l *linker) error(kind ErrorKind, loc SourceLocation, args ...any) {
	l.hasErrors = true
	l.reporter.Error(kind, loc, args...)
}

// linkDecls links the declarations of one level. Everything is registered
// before any type is resolved so that types may refer to aliases declared
// later in the same list.
func (l *linker) linkDecls(decls []*ASTNode) {
	for _, decl := range decls {
		var err error
		switch decl.Kind {
		case NodeTypeDecl:
			err = l.symbols.DeclareType(decl.String, decl)
		case NodeVarDecl:
			err = l.symbols.DeclareVariable(decl.String, decl)
		case NodeProcDecl:
			err = l.symbols.DeclareProcedure(decl.String, decl)
		}
		if err != nil {
			l.error(DuplicateIdentifier, decl.Loc, decl.String)
		}
	}

	for _, decl := range decls {
		switch decl.Kind {
		case NodeTypeDecl, NodeVarDecl:
			l.resolveType(decl.DeclType, decl.Loc)
		case NodeProcDecl:
			for _, param := range decl.Params {
				l.resolveType(param.DeclType, param.Loc)
			}
		}
	}

	for _, decl := range decls {
		if decl.Kind == NodeTypeDecl && isCyclicAlias(decl) {
			l.error(CyclicType, decl.Loc, decl.String)
		}
	}

	for _, decl := range decls {
		if decl.Kind == NodeProcDecl {
			l.linkProcedure(decl)
		}
	}
}

// resolveType points every named reference inside t at its declaration.
// Pointer bases are included, which is what lets a record hold a pointer to
// its own alias.
func (l *linker) resolveType(t *TypeNode, loc SourceLocation) {
	if t == nil {
		return
	}
	switch t.Kind {
	case TypeNamed:
		if t.Decl != nil {
			return
		}
		decl := l.symbols.LookupType(t.String)
		if decl == nil {
			l.error(UndeclaredType, loc, t.String)
			return
		}
		t.Decl = decl
	case TypeArray, TypePointer:
		l.resolveType(t.Child, loc)
	case TypeRecord:
		seen := make(map[string]bool)
		for _, f := range t.Fields {
			if seen[f.Name] {
				l.error(DuplicateField, loc, f.Name)
			}
			seen[f.Name] = true
			l.resolveType(f.Type, loc)
		}
	}
}

// isCyclicAlias reports whether following decl's aliases leads back to decl
// without passing through an array, record or pointer.
func isCyclicAlias(decl *ASTNode) bool {
	seen := map[*ASTNode]bool{decl: true}
	t := decl.DeclType
	for t != nil && t.Kind == TypeNamed && t.Decl != nil {
		if t.Decl == decl {
			return true
		}
		if seen[t.Decl] {
			// A cycle that decl leads into but is not part of.
			return false
		}
		seen[t.Decl] = true
		t = t.Decl.DeclType
	}
	return false
}

// linkProcedure links a procedure body in a new level holding the parameters
// and the body's own declarations.
func (l *linker) linkProcedure(proc *ASTNode) {
	l.symbols.OpenLevel()
	defer l.symbols.CloseLevel()

	for _, param := range proc.Params {
		if err := l.symbols.DeclareVariable(param.String, param); err != nil {
			l.error(DuplicateIdentifier, param.Loc, param.String)
		}
	}
	body := proc.Body
	l.linkDecls(body.Decls)
	for _, instr := range body.Children {
		l.linkNode(instr)
	}
}

func (l *linker) linkNode(node *ASTNode) {
	if node == nil {
		return
	}
	switch node.Kind {
	case NodeBlock:
		l.symbols.OpenLevel()
		l.linkDecls(node.Decls)
		for _, instr := range node.Children {
			l.linkNode(instr)
		}
		l.symbols.CloseLevel()
		return
	case NodeIdent:
		node.Decl = l.symbols.LookupVariable(node.String)
		if node.Decl == nil {
			l.error(UndeclaredIdentifier, node.Loc, node.String)
		}
		return
	case NodeCall:
		node.Decl = l.symbols.LookupProcedure(node.String)
		if node.Decl == nil {
			l.error(UndeclaredProcedure, node.Loc, node.String)
		}
	}
	for _, child := range node.Children {
		l.linkNode(child)
	}
	l.linkNode(node.Body)
}
