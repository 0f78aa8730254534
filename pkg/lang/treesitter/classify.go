package treesitter

// TypeDeclarationNodeTypes lists Java grammar node types that become
// KindTypeDeclaration and open a type scope.
var TypeDeclarationNodeTypes = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

// TypeReferenceNodeTypes lists node types that become KindTypeReference when
// they name a type in a type position. Nested scoped identifiers are folded into their outermost node.
var TypeReferenceNodeTypes = map[string]bool{
	"type_identifier":        true,
	"scoped_type_identifier": true,
}

// DottedNameNodeTypes lists node types that spell a package or import name.
var DottedNameNodeTypes = map[string]bool{
	"identifier":        true,
	"scoped_identifier": true,
}

// TypeParameterNodeTypes lists node types whose type_identifier child
// declares a type variable rather than referring to a type.
var TypeParameterNodeTypes = map[string]bool{
	"type_parameter": true,
}

// ErrorNodeType is the node type tree-sitter emits around unparseable input.
const ErrorNodeType = "ERROR"
