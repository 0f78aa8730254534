// Package index expands paths into Java source files, parses them on a worker
// pool, and stores violation baselines.
package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/gts-typecheck/pkg/ignore"
	"github.com/odvcencio/gts-typecheck/pkg/lang"
	"github.com/odvcencio/gts-typecheck/pkg/lang/treesitter"
	"github.com/odvcencio/gts-typecheck/pkg/model"
)

const schemaVersion = "0.1.0"

type Builder struct {
	parsers map[string]lang.Parser
	ignore  *ignore.Matcher
}

type BuildStats struct {
	CandidateFiles int `json:"candidate_files"`
	ParsedFiles    int `json:"parsed_files"`
	ReusedFiles    int `json:"reused_files"`
}

// NewBuilder returns a builder with the Java tree-sitter parser registered
// for every extension its grammar claims.
func NewBuilder() *Builder {
	builder := &Builder{
		parsers: make(map[string]lang.Parser),
	}
	builder.registerTreesitterParsers()
	return builder
}

func (b *Builder) registerTreesitterParsers() {
	parser, err := treesitter.NewJavaParser()
	if err != nil {
		return
	}
	extensions := parser.Extensions()
	if len(extensions) == 0 {
		extensions = []string{".java"}
	}
	for _, ext := range extensions {
		b.Register(ext, parser)
	}
}

// SetIgnore configures a .gtsignore-style matcher to skip paths during indexing.
func (b *Builder) SetIgnore(m *ignore.Matcher) {
	b.ignore = m
}

// Ignore returns the current ignore matcher, or nil if none is set.
func (b *Builder) Ignore() *ignore.Matcher {
	return b.ignore
}

func (b *Builder) Register(extension string, parser lang.Parser) {
	if parser == nil {
		return
	}
	normalized := normalizeExtension(extension)
	if normalized == "" {
		return
	}
	b.parsers[normalized] = parser
}

func normalizeExtension(extension string) string {
	normalized := strings.ToLower(strings.TrimSpace(extension))
	if normalized == "" {
		return ""
	}
	if normalized[0] != '.' {
		normalized = "." + normalized
	}
	return normalized
}

func (b *Builder) BuildPath(path string) (*model.Workspace, error) {
	ws, _, err := b.BuildPathsIncremental([]string{path}, nil)
	return ws, err
}

func (b *Builder) BuildPaths(paths []string) (*model.Workspace, error) {
	ws, _, err := b.BuildPathsIncremental(paths, nil)
	return ws, err
}

// BuildPathsIncremental expands paths into source files and parses them.
// Files whose size and modification time match an entry of previous keep
// their parsed unit instead of being parsed again.
func (b *Builder) BuildPathsIncremental(paths []string, previous *model.Workspace) (*model.Workspace, BuildStats, error) {
	stats := BuildStats{}

	if len(paths) == 0 {
		paths = []string{"."}
	}

	targets := make([]string, 0, len(paths))
	candidates := make([]sourceCandidate, 0, 128)
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			path = "."
		}
		target, err := filepath.Abs(path)
		if err != nil {
			return nil, stats, err
		}
		target = filepath.Clean(target)

		info, err := os.Stat(target)
		if err != nil {
			return nil, stats, err
		}

		if info.IsDir() {
			targets = append(targets, target)
			found, err := b.collectCandidates(target)
			if err != nil {
				return nil, stats, err
			}
			candidates = append(candidates, found...)
			continue
		}

		targets = append(targets, filepath.Dir(target))
		if parser, ok := b.parserForPath(target); ok {
			candidates = append(candidates, sourceCandidate{
				Path:            target,
				Parser:          parser,
				SizeBytes:       info.Size(),
				ModTimeUnixNano: info.ModTime().UnixNano(),
			})
		}
	}
	root := commonRoot(targets)

	ws := &model.Workspace{
		Version:     schemaVersion,
		Root:        root,
		GeneratedAt: time.Now().UTC(),
	}

	previousByPath := previousFilesByPath(previous, root)

	candidates = dedupeCandidates(candidates)
	tasks := make([]parseTask, 0, len(candidates))
	orderedFiles := make([]model.SourceFile, 0, len(candidates))
	orderedValid := make([]bool, 0, len(candidates))
	for _, candidate := range candidates {
		stats.CandidateFiles++

		relPath, relErr := filepath.Rel(root, candidate.Path)
		if relErr != nil {
			relPath = candidate.Path
		}
		relPath = filepath.ToSlash(relPath)

		if previousFile, ok := previousByPath[relPath]; ok && canReuseFile(previousFile, candidate, candidate.Parser.Language()) {
			reused := previousFile
			reused.Path = relPath
			orderedFiles = append(orderedFiles, reused)
			orderedValid = append(orderedValid, true)
			stats.ReusedFiles++
			continue
		}

		position := len(orderedFiles)
		orderedFiles = append(orderedFiles, model.SourceFile{})
		orderedValid = append(orderedValid, false)
		tasks = append(tasks, parseTask{
			Position:        position,
			FilePath:        candidate.Path,
			RelPath:         relPath,
			Parser:          candidate.Parser,
			SizeBytes:       candidate.SizeBytes,
			ModTimeUnixNano: candidate.ModTimeUnixNano,
		})
	}

	results := b.parseFiles(tasks)
	ws.Files = make([]model.SourceFile, 0, len(orderedFiles))
	for _, result := range results {
		if result.Err != nil {
			ws.Errors = append(ws.Errors, model.ParseError{
				Path:  result.RelPath,
				Error: result.Err.Error(),
			})
			continue
		}
		orderedFiles[result.Position] = result.File
		orderedValid[result.Position] = true
		stats.ParsedFiles++
	}

	for i, valid := range orderedValid {
		if !valid {
			continue
		}
		ws.Files = append(ws.Files, orderedFiles[i])
	}

	return ws, stats, nil
}

// ParseSource parses an in-memory source for path with the registered
// parser, without touching the filesystem.
func (b *Builder) ParseSource(path string, src []byte) (model.SourceFile, error) {
	parser, ok := b.parserForPath(path)
	if !ok {
		return model.SourceFile{}, fmt.Errorf("no parser registered for %q", path)
	}
	return parseSource(parser, filepath.ToSlash(path), src)
}

func parseSource(parser lang.Parser, relPath string, src []byte) (model.SourceFile, error) {
	unit, err := parser.Parse(relPath, src)
	if err != nil {
		return model.SourceFile{}, err
	}
	file := model.SourceFile{
		Path:      relPath,
		Language:  parser.Language(),
		SizeBytes: int64(len(src)),
		Unit:      unit,
	}
	if reporter, ok := parser.(lang.ErrorReporter); ok {
		file.SyntaxErrors = reporter.SyntaxErrors(unit)
	}
	return file, nil
}

type parseTask struct {
	Position        int
	FilePath        string
	RelPath         string
	Parser          lang.Parser
	SizeBytes       int64
	ModTimeUnixNano int64
}

type parseResult struct {
	Position int
	RelPath  string
	File     model.SourceFile
	Err      error
}

type sourceCandidate struct {
	Path            string
	Parser          lang.Parser
	SizeBytes       int64
	ModTimeUnixNano int64
}

func (b *Builder) parseFiles(tasks []parseTask) []parseResult {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]parseResult, len(tasks))
	workers := indexWorkerCount(len(tasks))

	taskCh := make(chan int, len(tasks))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range taskCh {
				task := tasks[idx]
				result := parseResult{
					Position: task.Position,
					RelPath:  task.RelPath,
				}

				source, readErr := os.ReadFile(task.FilePath)
				if readErr != nil {
					result.Err = readErr
					results[idx] = result
					continue
				}

				file, parseErr := parseSource(task.Parser, task.RelPath, source)
				if parseErr != nil {
					result.Err = parseErr
					results[idx] = result
					continue
				}

				file.SizeBytes = task.SizeBytes
				file.ModTimeUnixNano = task.ModTimeUnixNano
				result.File = file
				results[idx] = result
			}
		}()
	}

	for i := range tasks {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()
	return results
}

func indexWorkerCount(taskCount int) int {
	if taskCount <= 0 {
		return 0
	}

	if raw := strings.TrimSpace(os.Getenv("GTS_INDEX_WORKERS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > taskCount {
				return taskCount
			}
			return parsed
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > taskCount {
		workers = taskCount
	}
	return workers
}

func previousFilesByPath(previous *model.Workspace, root string) map[string]model.SourceFile {
	reused := map[string]model.SourceFile{}
	if previous == nil {
		return reused
	}

	previousRoot := filepath.Clean(previous.Root)
	if previousRoot != root {
		return reused
	}

	for _, file := range previous.Files {
		reused[file.Path] = file
	}
	return reused
}

func canReuseFile(file model.SourceFile, candidate sourceCandidate, language string) bool {
	if file.Unit == nil {
		return false
	}
	if file.Language != language {
		return false
	}
	if file.SizeBytes != candidate.SizeBytes {
		return false
	}
	if file.ModTimeUnixNano != candidate.ModTimeUnixNano {
		return false
	}
	return true
}

func dedupeCandidates(candidates []sourceCandidate) []sourceCandidate {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	out := candidates[:0]
	for i, candidate := range candidates {
		if i > 0 && candidate.Path == candidates[i-1].Path {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// commonRoot returns the deepest directory containing every target.
func commonRoot(targets []string) string {
	if len(targets) == 0 {
		return "."
	}
	root := targets[0]
	for _, target := range targets[1:] {
		for !withinDir(root, target) {
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}
	return filepath.Clean(root)
}

func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (b *Builder) parserForPath(path string) (lang.Parser, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	parser, ok := b.parsers[ext]
	return parser, ok
}

func (b *Builder) ParserForPath(path string) (lang.Parser, bool) {
	return b.parserForPath(path)
}

func (b *Builder) collectCandidates(root string) ([]sourceCandidate, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is empty")
	}

	files := make([]sourceCandidate, 0, 128)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			name := entry.Name()
			if name == ".git" || name == ".hg" || name == ".svn" || name == "target" || name == "build" || name == "out" {
				if path != root {
					return filepath.SkipDir
				}
			}
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			if path != root && b.ignore != nil {
				relPath, relErr := filepath.Rel(root, path)
				if relErr == nil && b.ignore.Match(filepath.ToSlash(relPath), true) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if b.ignore != nil {
			relPath, relErr := filepath.Rel(root, path)
			if relErr == nil && b.ignore.Match(filepath.ToSlash(relPath), false) {
				return nil
			}
		}

		parser, ok := b.parserForPath(path)
		if !ok {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		files = append(files, sourceCandidate{
			Path:            path,
			Parser:          parser,
			SizeBytes:       info.Size(),
			ModTimeUnixNano: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
