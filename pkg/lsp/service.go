package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/odvcencio/gts-typecheck/internal/logging"
	"github.com/odvcencio/gts-typecheck/pkg/index"
	"github.com/odvcencio/gts-typecheck/pkg/lint"
	"github.com/odvcencio/gts-typecheck/pkg/model"
	"github.com/odvcencio/gts-typecheck/pkg/syntax"
	"github.com/odvcencio/gts-typecheck/pkg/typecheck"
)

const diagnosticSource = "gtsls"

// Service holds workspace state, re-checks it as documents change, and
// publishes the resulting violations as diagnostics.
type Service struct {
	mu        sync.RWMutex
	srv       *Server
	rootURI   string
	rootPath  string
	ws        *model.Workspace
	builder   *index.Builder
	open      map[string]model.SourceFile
	versions  map[string]int
	published map[string]bool
	rules     []lint.Rule
	opts      typecheck.Options
	logger    *slog.Logger
}

// NewService returns a service that checks unresolved type references with
// default options until SetRules or SetCheckOptions says otherwise.
func NewService() *Service {
	rules, _ := lint.ParseRules([]string{"no unresolved types"})
	return &Service{
		builder:   index.NewBuilder(),
		open:      make(map[string]model.SourceFile),
		versions:  make(map[string]int),
		published: make(map[string]bool),
		rules:     rules,
		logger:    logging.Discard(),
	}
}

func (s *Service) SetRules(rules []lint.Rule) {
	s.mu.Lock()
	s.rules = append([]lint.Rule(nil), rules...)
	s.mu.Unlock()
}

func (s *Service) SetCheckOptions(opts typecheck.Options) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
}

func (s *Service) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Builder exposes the workspace builder so callers can install an ignore
// matcher before the first build.
func (s *Service) Builder() *index.Builder {
	return s.builder
}

// Register wires all LSP handlers onto a Server.
func (s *Service) Register(srv *Server) {
	s.srv = srv
	srv.Handle("initialize", s.handleInitialize)
	srv.Handle("shutdown", s.handleShutdown)
	srv.Handle("textDocument/documentSymbol", s.handleDocumentSymbol)

	srv.OnNotify("initialized", func(params json.RawMessage) {
		s.buildWorkspace()
		s.publish()
	})
	srv.OnNotify("textDocument/didOpen", s.handleDidOpen)
	srv.OnNotify("textDocument/didChange", s.handleDidChange)
	srv.OnNotify("textDocument/didSave", s.handleDidSave)
	srv.OnNotify("textDocument/didClose", s.handleDidClose)
}

func (s *Service) handleInitialize(params json.RawMessage) (any, error) {
	var p InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, InvalidParams(err)
	}
	s.rootURI = p.RootURI
	s.rootPath = uriToPath(p.RootURI)
	if s.rootPath == "" {
		s.rootPath = p.RootPath
	}
	if s.rootPath != "" {
		if abs, err := filepath.Abs(s.rootPath); err == nil {
			s.rootPath = abs
		}
	}

	return InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    SyncFull,
				Save:      true,
			},
			DocumentSymbolProvider: true,
		},
		ServerInfo: &ServerInfo{Name: "gtsls", Version: "0.1.0"},
	}, nil
}

func (s *Service) handleShutdown(params json.RawMessage) (any, error) {
	return nil, nil
}

// buildWorkspace parses the root directory, reusing units whose files are
// unchanged since the previous build.
func (s *Service) buildWorkspace() {
	if s.rootPath == "" {
		return
	}
	s.mu.RLock()
	prev := s.ws
	logger := s.logger
	s.mu.RUnlock()

	ws, stats, err := s.builder.BuildPathsIncremental([]string{s.rootPath}, prev)
	if err != nil {
		logger.Error("workspace build failed", "root", s.rootPath, "error", err)
		return
	}
	logger.Debug("workspace built",
		"files", ws.FileCount(),
		"parsed", stats.ParsedFiles,
		"reused", stats.ReusedFiles,
	)
	for _, parseErr := range ws.Errors {
		logger.Warn("parse failed", "path", parseErr.Path, "error", parseErr.Error)
	}

	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()
}

func (s *Service) handleDidOpen(params json.RawMessage) {
	var p DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	if s.updateDocument(p.TextDocument.URI, p.TextDocument.Version, p.TextDocument.Text) {
		s.publish()
	}
}

func (s *Service) handleDidChange(params json.RawMessage) {
	var p DidChangeTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil || len(p.ContentChanges) == 0 {
		return
	}
	// Full sync: the last change holds the whole document.
	text := p.ContentChanges[len(p.ContentChanges)-1].Text
	if s.updateDocument(p.TextDocument.URI, p.TextDocument.Version, text) {
		s.publish()
	}
}

func (s *Service) handleDidSave(params json.RawMessage) {
	var p DidSaveTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	if p.Text != nil {
		s.mu.RLock()
		version := s.versions[s.relPath(p.TextDocument.URI)]
		s.mu.RUnlock()
		s.updateDocument(p.TextDocument.URI, version, *p.Text)
	}
	s.buildWorkspace()
	s.publish()
}

func (s *Service) handleDidClose(params json.RawMessage) {
	var p DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	relPath := s.relPath(p.TextDocument.URI)
	s.mu.Lock()
	delete(s.open, relPath)
	delete(s.versions, relPath)
	s.mu.Unlock()

	s.buildWorkspace()
	s.publish()
}

// updateDocument parses text as the current contents of uri. It reports
// false when no parser handles the document.
func (s *Service) updateDocument(uri string, version int, text string) bool {
	relPath := s.relPath(uri)
	file, err := s.builder.ParseSource(relPath, []byte(text))
	if err != nil {
		s.mu.RLock()
		logger := s.logger
		s.mu.RUnlock()
		logger.Debug("document skipped", "uri", uri, "error", err)
		return false
	}

	s.mu.Lock()
	s.open[relPath] = file
	s.versions[relPath] = version
	s.mu.Unlock()
	return true
}

// snapshot returns the built workspace with open documents in place of
// their on-disk contents.
func (s *Service) snapshot() *model.Workspace {
	merged := &model.Workspace{Root: s.rootPath}
	if s.ws != nil {
		copied := *s.ws
		merged = &copied
	}

	files := make([]model.SourceFile, 0, len(merged.Files)+len(s.open))
	seen := make(map[string]bool, len(s.open))
	for _, file := range merged.Files {
		if open, ok := s.open[file.Path]; ok {
			files = append(files, open)
			seen[file.Path] = true
			continue
		}
		files = append(files, file)
	}

	extra := make([]string, 0, len(s.open))
	for path := range s.open {
		if !seen[path] {
			extra = append(extra, path)
		}
	}
	sort.Strings(extra)
	for _, path := range extra {
		files = append(files, s.open[path])
	}
	merged.Files = files
	return merged
}

// publish re-checks the workspace and sends diagnostics for every file
// with violations. Files that had diagnostics before and are now clean get
// an empty list.
func (s *Service) publish() {
	s.mu.Lock()
	ws := s.snapshot()
	rules := s.rules
	opts := s.opts
	logger := s.logger
	s.mu.Unlock()

	violations, err := lint.Evaluate(context.Background(), ws, rules, opts)
	if err != nil {
		logger.Error("check failed", "error", err)
		return
	}

	byFile := make(map[string][]Diagnostic)
	for _, v := range violations {
		byFile[v.File] = append(byFile[v.File], toDiagnostic(v))
	}

	s.mu.Lock()
	paths := make([]string, 0, len(byFile)+len(s.published))
	for path := range byFile {
		paths = append(paths, path)
	}
	for path := range s.published {
		if _, ok := byFile[path]; !ok {
			paths = append(paths, path)
		}
	}
	s.published = make(map[string]bool, len(byFile))
	for path := range byFile {
		s.published[path] = true
	}
	versions := make(map[string]int, len(s.versions))
	for path, version := range s.versions {
		versions[path] = version
	}
	s.mu.Unlock()

	sort.Strings(paths)
	logger.Debug("publishing diagnostics", "files", len(paths), "violations", len(violations))
	for _, path := range paths {
		params := PublishDiagnosticsParams{
			URI:         pathToURI(path, s.rootPath),
			Diagnostics: byFile[path],
		}
		if params.Diagnostics == nil {
			params.Diagnostics = []Diagnostic{}
		}
		if version, ok := versions[path]; ok {
			params.Version = &version
		}
		if s.srv == nil {
			continue
		}
		if err := s.srv.Notify("textDocument/publishDiagnostics", params); err != nil {
			logger.Error("publish diagnostics failed", "uri", params.URI, "error", err)
			return
		}
	}
}

func (s *Service) handleDocumentSymbol(params json.RawMessage) (any, error) {
	var p struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, InvalidParams(err)
	}
	if p.TextDocument.URI == "" {
		return nil, InvalidParams(errors.New("textDocument.uri is required"))
	}

	relPath := s.relPath(p.TextDocument.URI)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if file, ok := s.open[relPath]; ok {
		return typeSymbols(file.Unit), nil
	}
	if file, ok := s.ws.File(relPath); ok {
		return typeSymbols(file.Unit), nil
	}
	return []DocumentSymbol{}, nil
}

func (s *Service) relPath(uri string) string {
	return relativeTo(uriToPath(uri), s.rootPath)
}

// --- Helpers ---

func toDiagnostic(v lint.Violation) Diagnostic {
	start := Position{Line: max(v.StartLine-1, 0), Character: max(v.Column-1, 0)}
	end := start
	switch v.Kind {
	case "type_reference", "identifier", "import":
		end.Character += len(v.Name)
	default:
		end = Position{Line: max(v.EndLine-1, start.Line), Character: 0}
		if end.Line == start.Line {
			end.Character = start.Character + len(v.Name)
		}
	}
	return Diagnostic{
		Range:    Range{Start: start, End: end},
		Severity: SeverityWarning,
		Code:     v.RuleID,
		Source:   diagnosticSource,
		Message:  v.Message,
	}
}

func uriToPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		path := strings.TrimPrefix(uri, "file://")
		if unescaped, err := url.PathUnescape(path); err == nil {
			return unescaped
		}
		return path
	}
	return uri
}

func pathToURI(relPath, root string) string {
	if root != "" {
		return "file://" + root + "/" + relPath
	}
	return "file://" + relPath
}

func relativeTo(abs, root string) string {
	if root != "" && strings.HasPrefix(abs, root) {
		rel := strings.TrimPrefix(abs, root)
		return strings.TrimPrefix(rel, "/")
	}
	return abs
}

func nodeRange(node *syntax.Node) Range {
	return Range{
		Start: Position{Line: max(node.Start.Line-1, 0), Character: max(node.Start.Column-1, 0)},
		End:   Position{Line: max(node.End.Line-1, 0), Character: max(node.End.Column-1, 0)},
	}
}

// typeSymbols returns the type declarations of unit as a symbol tree.
func typeSymbols(unit *syntax.Node) []DocumentSymbol {
	result := []DocumentSymbol{}
	if unit == nil {
		return result
	}
	for _, child := range unit.Children {
		result = append(result, collectTypeSymbols(child)...)
	}
	return result
}

func collectTypeSymbols(node *syntax.Node) []DocumentSymbol {
	if node.Kind != syntax.KindTypeDeclaration {
		var out []DocumentSymbol
		for _, child := range node.Children {
			out = append(out, collectTypeSymbols(child)...)
		}
		return out
	}

	r := nodeRange(node)
	selection := r
	if name := node.ChildByField("name"); name != nil {
		selection = nodeRange(name)
	}
	symbol := DocumentSymbol{
		Name:           node.Name(),
		Kind:           symbolKindFromNode(node.Type),
		Range:          r,
		SelectionRange: selection,
	}
	for _, child := range node.Children {
		symbol.Children = append(symbol.Children, collectTypeSymbols(child)...)
	}
	return []DocumentSymbol{symbol}
}

func symbolKindFromNode(nodeType string) int {
	switch nodeType {
	case "interface_declaration", "annotation_type_declaration":
		return SKInterface
	case "enum_declaration":
		return SKEnum
	case "record_declaration":
		return SKStruct
	default:
		return SKClass
	}
}
