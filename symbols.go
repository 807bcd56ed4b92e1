package main

import "fmt"

// scopeLevel holds the declarations of one lexical level.
type scopeLevel struct {
	types      map[string]*ASTNode
	variables  map[string]*ASTNode
	procedures map[string]*ASTNode
}

func newScopeLevel() *scopeLevel {
	return &scopeLevel{
		types:      make(map[string]*ASTNode),
		variables:  make(map[string]*ASTNode),
		procedures: make(map[string]*ASTNode),
	}
}

func (l *scopeLevel) declares(name string) bool {
	return l.types[name] != nil || l.variables[name] != nil || l.procedures[name] != nil
}

// SymbolTable tracks declarations during linking.
//
// Types, variables and procedures are looked up separately but share one
// namespace per level: a name may be declared once per level, and an inner
// level may shadow any outer declaration.
type SymbolTable struct {
	levels []*scopeLevel
}

// NewSymbolTable creates a table with the outermost level already open.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{}
	st.OpenLevel()
	return st
}

func (st *SymbolTable) OpenLevel() {
	st.levels = append(st.levels, newScopeLevel())
}

func (st *SymbolTable) CloseLevel() {
	if len(st.levels) == 0 {
		panic("CloseLevel without matching OpenLevel")
	}
	st.levels = st.levels[:len(st.levels)-1]
}

// Depth returns the number of open levels.
func (st *SymbolTable) Depth() int {
	return len(st.levels)
}

func (st *SymbolTable) current() *scopeLevel {
	return st.levels[len(st.levels)-1]
}

func (st *SymbolTable) DeclareType(name string, decl *ASTNode) error {
	if st.current().declares(name) {
		return fmt.Errorf("error: type '%s' already declared", name)
	}
	st.current().types[name] = decl
	return nil
}

func (st *SymbolTable) DeclareVariable(name string, decl *ASTNode) error {
	if st.current().declares(name) {
		return fmt.Errorf("error: variable '%s' already declared", name)
	}
	st.current().variables[name] = decl
	return nil
}

func (st *SymbolTable) DeclareProcedure(name string, decl *ASTNode) error {
	if st.current().declares(name) {
		return fmt.Errorf("error: procedure '%s' already declared", name)
	}
	st.current().procedures[name] = decl
	return nil
}

// LookupType finds the innermost type declaration called name, or nil.
func (st *SymbolTable) LookupType(name string) *ASTNode {
	for i := len(st.levels) - 1; i >= 0; i-- {
		if decl := st.levels[i].types[name]; decl != nil {
			return decl
		}
	}
	return nil
}

func (st *SymbolTable) LookupVariable(name string) *ASTNode {
	for i := len(st.levels) - 1; i >= 0; i-- {
		if decl := st.levels[i].variables[name]; decl != nil {
			return decl
		}
	}
	return nil
}

func (st *SymbolTable) LookupProcedure(name string) *ASTNode {
	for i := len(st.levels) - 1; i >= 0; i-- {
		if decl := st.levels[i].procedures[name]; decl != nil {
			return decl
		}
	}
	return nil
}
