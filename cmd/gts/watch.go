package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/odvcencio/gts-typecheck/pkg/ignore"
)

func watchWithFSNotify(ctx context.Context, targets []string, debounce time.Duration, ignorePaths map[string]bool, ignoreMatcher *ignore.Matcher, onChange func(changedPaths []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	projectRoots := make([]string, 0, len(targets))
	for _, target := range targets {
		roots, err := watchRoots(target)
		if err != nil {
			return err
		}
		for _, root := range roots {
			if err := addWatchRecursive(watcher, root, root, ignoreMatcher); err != nil {
				return err
			}
			projectRoots = append(projectRoots, root)
		}
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	pending := false
	pendingPaths := map[string]bool{}

	resetDebounce := func(path string) {
		if path != "" {
			pendingPaths[path] = true
		}
		if pending {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer.Reset(debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			eventPath := filepath.Clean(event.Name)
			root := rootOf(projectRoots, eventPath)
			if shouldIgnoreWatchPath(eventPath, ignorePaths, root, ignoreMatcher) {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(eventPath); statErr == nil && info.IsDir() {
					_ = addWatchRecursive(watcher, eventPath, root, ignoreMatcher)
					resetDebounce(eventPath)
					continue
				}
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// Removing or renaming a directory drops every source below it.
			if !isJavaSource(eventPath) && event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			resetDebounce(eventPath)
		case <-timer.C:
			if pending {
				pending = false
				changed := make([]string, 0, len(pendingPaths))
				for path := range pendingPaths {
					changed = append(changed, path)
				}
				sort.Strings(changed)
				pendingPaths = map[string]bool{}
				onChange(changed)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

func watchRoots(target string) ([]string, error) {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	absTarget = filepath.Clean(absTarget)

	info, err := os.Stat(absTarget)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return []string{absTarget}, nil
	}
	return []string{filepath.Dir(absTarget)}, nil
}

// rootOf returns the longest watched root containing path.
func rootOf(roots []string, path string) string {
	best := ""
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string, projectRoot string, ignoreMatcher *ignore.Matcher) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if shouldSkipWatchDir(projectRoot, path, entry.Name(), ignoreMatcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func shouldSkipWatchDir(root, path, name string, ignoreMatcher *ignore.Matcher) bool {
	if path == root {
		return false
	}

	switch name {
	case ".git", ".hg", ".svn", "target", "build", "out":
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	if ignoreMatcher != nil && root != "" {
		if relPath, err := filepath.Rel(root, path); err == nil {
			if ignoreMatcher.Match(filepath.ToSlash(relPath), true) {
				return true
			}
		}
	}
	return false
}

func shouldIgnoreWatchPath(path string, ignorePaths map[string]bool, root string, ignoreMatcher *ignore.Matcher) bool {
	if ignorePaths[path] {
		return true
	}

	base := filepath.Base(path)
	if base == ".DS_Store" || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swx") || strings.HasPrefix(base, ".#") || strings.HasSuffix(base, "~") {
		return true
	}
	if ignoreMatcher != nil && root != "" {
		if relPath, err := filepath.Rel(root, path); err == nil {
			if ignoreMatcher.Match(filepath.ToSlash(relPath), false) {
				return true
			}
		}
	}
	return false
}

func isJavaSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".java")
}
