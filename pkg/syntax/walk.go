package syntax

// WalkAction controls traversal from an Enter callback.
type WalkAction int

const (
	WalkContinue WalkAction = iota
	WalkSkipChildren
	WalkStop
)

// Visitor receives pre-order Enter and post-order Exit callbacks. Exit is not
// called for nodes whose Enter returned WalkSkipChildren.
type Visitor interface {
	Enter(node *Node) WalkAction
	Exit(node *Node)
}

// Funcs adapts plain functions to a Visitor. Nil callbacks are skipped.
type Funcs struct {
	OnEnter func(node *Node) WalkAction
	OnExit  func(node *Node)
}

func (f Funcs) Enter(node *Node) WalkAction {
	if f.OnEnter == nil {
		return WalkContinue
	}
	return f.OnEnter(node)
}

func (f Funcs) Exit(node *Node) {
	if f.OnExit != nil {
		f.OnExit(node)
	}
}

// Walk traverses root depth-first in source order. It returns false if the
// walk was stopped early.
func Walk(root *Node, v Visitor) bool {
	if root == nil || v == nil {
		return true
	}
	switch v.Enter(root) {
	case WalkStop:
		return false
	case WalkSkipChildren:
		return true
	}
	for _, child := range root.Children {
		if !Walk(child, v) {
			return false
		}
	}
	v.Exit(root)
	return true
}

// Inspect calls fn for every node in pre-order until fn returns false for a
// subtree.
func Inspect(root *Node, fn func(*Node) bool) {
	Walk(root, Funcs{OnEnter: func(node *Node) WalkAction {
		if fn(node) {
			return WalkContinue
		}
		return WalkSkipChildren
	}})
}
