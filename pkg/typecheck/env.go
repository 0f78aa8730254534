package typecheck

import "strings"

// Environment is the scope opened by one type declaration.
type Environment struct {
	Name string
	// Parent is the index of the enclosing environment in its Stack, or -1.
	Parent int
}

// Stack is the chain of currently open environments. Environments live only
// while their declaration is being visited.
type Stack struct {
	envs []Environment
}

// Push opens a scope named name whose parent is the innermost open scope and
// returns its index.
func (s *Stack) Push(name string) int {
	parent := len(s.envs) - 1
	s.envs = append(s.envs, Environment{Name: name, Parent: parent})
	return len(s.envs) - 1
}

// Pop closes the innermost scope.
func (s *Stack) Pop() {
	if len(s.envs) > 0 {
		s.envs = s.envs[:len(s.envs)-1]
	}
}

// Len returns the number of open scopes.
func (s *Stack) Len() int {
	return len(s.envs)
}

// Top returns the innermost open scope.
func (s *Stack) Top() (Environment, bool) {
	if len(s.envs) == 0 {
		return Environment{}, false
	}
	return s.envs[len(s.envs)-1], true
}

// names returns the scope names from outermost to innermost by following
// parent links from the top.
func (s *Stack) names() []string {
	if len(s.envs) == 0 {
		return nil
	}
	var reversed []string
	for i := len(s.envs) - 1; i >= 0; i = s.envs[i].Parent {
		reversed = append(reversed, s.envs[i].Name)
	}
	names := make([]string, len(reversed))
	for i, name := range reversed {
		names[len(reversed)-1-i] = name
	}
	return names
}

// Path reconstructs the qualified path of the innermost scope. When the
// innermost scope is named ref itself it is left out, so a type referring to
// its own name does not double it. Unnamed scopes contribute nothing.
func (s *Stack) Path(ref string) string {
	names := s.names()
	if n := len(names); n > 0 && names[n-1] == ref {
		names = names[:n-1]
	}
	return joinNames(names)
}

// Candidates lists the environment-qualified spellings of ref, innermost
// first: Path(ref)+"."+ref, then ref qualified by each shorter enclosing path.
func (s *Stack) Candidates(ref string) []string {
	names := s.names()
	if len(names) == 0 {
		return nil
	}

	candidates := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	add := func(prefix string) {
		if prefix == "" {
			return
		}
		candidate := prefix + "." + ref
		if seen[candidate] {
			return
		}
		seen[candidate] = true
		candidates = append(candidates, candidate)
	}

	add(s.Path(ref))
	for depth := len(names) - 1; depth > 0; depth-- {
		add(joinNames(names[:depth]))
	}
	return candidates
}

func joinNames(names []string) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ".")
}
