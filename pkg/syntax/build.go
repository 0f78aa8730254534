package syntax

import "strings"

// Constructors for building trees by hand. Parsers use them too so the
// field and kind conventions live in one place.

// NewProgram returns a program root holding the given compilation units.
func NewProgram(units ...*Node) *Node {
	return (&Node{Kind: KindProgram, Type: "program"}).Append(units...)
}

// NewCompilationUnit returns the root of one source file.
func NewCompilationUnit(file string, children ...*Node) *Node {
	unit := &Node{Kind: KindCompilationUnit, Type: "compilation_unit", File: file}
	return unit.Append(children...)
}

// NewPackage returns a package declaration for a dotted name.
func NewPackage(name string) *Node {
	decl := &Node{Kind: KindPackageDeclaration, Type: "package_declaration", Text: "package " + name + ";"}
	return decl.Append(NewName(name))
}

// NewImport returns an import declaration. A trailing ".*" marks an
// on-demand import; a "static " prefix marks a static import.
func NewImport(name string) *Node {
	text := "import " + name + ";"
	static := strings.HasPrefix(name, "static ")
	name = strings.TrimSpace(strings.TrimPrefix(name, "static "))
	onDemand := strings.HasSuffix(name, ".*")
	decl := &Node{
		Kind:     KindImportDeclaration,
		Type:     "import_declaration",
		Text:     text,
		Static:   static,
		OnDemand: onDemand,
	}
	return decl.Append(NewName(strings.TrimSuffix(name, ".*")))
}

// NewTypeDecl returns a class-like declaration with the given members. An
// empty name produces a declaration with no name field.
func NewTypeDecl(name string, members ...*Node) *Node {
	decl := &Node{Kind: KindTypeDeclaration, Type: "class_declaration", Text: "class " + name}
	if name != "" {
		decl.Append(NewName(name))
	}
	return decl.Append(members...)
}

// NewTypeRef returns a reference to a named type.
func NewTypeRef(text string) *Node {
	return &Node{Kind: KindTypeReference, Type: "type_identifier", Text: text}
}

// NewName returns a name node attached under the "name" field.
func NewName(text string) *Node {
	return &Node{Kind: KindName, Type: "identifier", Field: FieldName, Text: text}
}

// NewOther returns an uninterpreted node with the given grammar type and
// source text.
func NewOther(typ, text string, children ...*Node) *Node {
	return (&Node{Kind: KindOther, Type: typ, Text: text}).Append(children...)
}
