// Package workspace reads the learner's project directory for agent context.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFile holds extra exclude globs, one per line, relative to the project root.
const IgnoreFile = ".tutorignore"

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".tutor":        true,
	"__pycache__":   true,
	"venv":          true,
	".venv":         true,
	"node_modules":  true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	"dist":          true,
	"build":         true,
}

// Options controls which files ReadProjectFiles returns.
type Options struct {
	// Include globs (doublestar syntax). Empty means DefaultInclude.
	Include []string
	// Exclude globs, applied after Include and the ignore file.
	Exclude []string
	// MaxFileBytes skips larger files. Zero means 64 KiB.
	MaxFileBytes int64
	// MaxFiles caps the result. Zero means 50.
	MaxFiles int
}

// DefaultInclude covers the source and config files an agent needs to see.
var DefaultInclude = []string{
	"**/*.py", "**/*.pyi", "**/*.toml", "**/*.cfg", "**/*.ini",
	"**/*.md", "**/*.txt", "**/*.yaml", "**/*.yml", "**/*.json",
}

func (o Options) withDefaults() Options {
	if len(o.Include) == 0 {
		o.Include = DefaultInclude
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = 64 << 10
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = 50
	}
	return o
}

// ReadProjectFiles returns the text files under root keyed by slash-separated
// relative path. Binary files and files over the size cap are skipped.
func ReadProjectFiles(root string, opts Options) (map[string]string, error) {
	opts = opts.withDefaults()
	ignore := append(ParseIgnore(root), opts.Exclude...)

	files := make(map[string]string)
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || isIgnored(rel, ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchesAny(rel, opts.Include) || isIgnored(rel, ignore) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(paths)
	for _, rel := range paths {
		if len(files) >= opts.MaxFiles {
			break
		}
		full := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(full)
		if err != nil || info.Size() > opts.MaxFileBytes {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		if !utf8.Valid(data) {
			continue
		}
		files[rel] = string(data)
	}
	return files, nil
}

// Render concatenates files into one prompt block, in path order.
func Render(files map[string]string) string {
	var sb strings.Builder
	for _, p := range SortedPaths(files) {
		fmt.Fprintf(&sb, "=== %s ===\n%s", p, files[p])
		if !strings.HasSuffix(files[p], "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// SortedPaths returns the keys of files in path order.
func SortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ParseIgnore reads .tutorignore patterns from root.
func ParseIgnore(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

func isIgnored(rel string, patterns []string) bool {
	for _, p := range patterns {
		// "dir/" ignores the directory and everything below it
		if strings.HasSuffix(p, "/") {
			dir := strings.TrimSuffix(p, "/")
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
		// bare names match at any depth, like .gitignore
		if !strings.Contains(p, "/") {
			if ok, err := doublestar.Match(p, filepath.Base(rel)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func matchesAny(rel string, globs []string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}
