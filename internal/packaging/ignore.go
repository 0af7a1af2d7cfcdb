package packaging

import (
	"path"
	"strings"
)

// ignorePattern is one parsed exclusion rule with gitignore semantics:
// '!' negates, a trailing '/' restricts to directories, a '/' anywhere else
// anchors the pattern to the archive root.
type ignorePattern struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
}

// IgnoreMatcher decides whether a relative path is excluded from the
// archive. Later patterns override earlier ones, so project-supplied rules
// can re-include files the defaults drop.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses the given pattern lines. Blank lines and
// '#' comments are skipped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	m.Add(lines)
	return m
}

// Add appends more pattern lines; they take precedence over everything
// already present.
func (m *IgnoreMatcher) Add(lines []string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := ignorePattern{}
		if strings.HasPrefix(line, "!") {
			p.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			p.anchored = true
			line = strings.TrimPrefix(line, "/")
		} else if strings.Contains(line, "/") {
			p.anchored = true
		}
		if line == "" {
			continue
		}
		p.pattern = line
		m.patterns = append(m.patterns, p)
	}
}

// Match reports whether relPath (slash-separated, relative to the archive
// root) should be excluded. The last matching pattern wins.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	relPath = strings.Trim(relPath, "/")
	if relPath == "" || relPath == "." {
		return false
	}

	excluded := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			// A dir-only pattern still hides files underneath the matched
			// directory; the walker handles that by skipping the directory
			// itself, so a direct file check only needs parent matching.
			if !p.matchesParent(relPath) {
				continue
			}
		} else if !p.matches(relPath) && !p.matchesParent(relPath) {
			continue
		}
		excluded = !p.negate
	}
	return excluded
}

// matches checks the pattern against the full path (anchored) or against
// every path segment (unanchored), the way gitignore basename rules work.
func (p ignorePattern) matches(relPath string) bool {
	if p.anchored {
		if ok, _ := path.Match(p.pattern, relPath); ok {
			return true
		}
		return false
	}
	for _, segment := range strings.Split(relPath, "/") {
		if ok, _ := path.Match(p.pattern, segment); ok {
			return true
		}
	}
	return false
}

// matchesParent reports whether some ancestor directory of relPath matches
// the pattern, which excludes the whole subtree.
func (p ignorePattern) matchesParent(relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		ancestor := strings.Join(parts[:i], "/")
		if p.anchored {
			if ok, _ := path.Match(p.pattern, ancestor); ok {
				return true
			}
			continue
		}
		if ok, _ := path.Match(p.pattern, parts[i-1]); ok {
			return true
		}
	}
	return false
}
