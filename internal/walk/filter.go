package walk

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// calculateDepth returns the depth of a path relative to the root.
func calculateDepth(path, root string) int {
	relPath := strings.TrimPrefix(path, root)

	relPath = strings.TrimPrefix(relPath, string(filepath.Separator))
	if relPath == "" {
		return 0
	}

	return strings.Count(relPath, string(filepath.Separator)) + 1
}

// compileExcludes compiles the exclusion patterns.
func compileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling exclusion pattern %q: %w", p, err)
		}

		res = append(res, re)
	}

	return res, nil
}

// shouldExcludeByPattern checks if path matches any exclusion regex.
func shouldExcludeByPattern(path string, patterns []*regexp.Regexp) *regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}

	fPath := filepath.ToSlash(path)

	for _, re := range patterns {
		if re.MatchString(fPath) {
			return re
		}
	}

	return nil
}

// suffixFilter holds include and exclude suffixes parsed from entries like
// ".go" or "!_test.go". Matching is case-insensitive.
type suffixFilter struct {
	include []string
	exclude []string
}

func newSuffixFilter(entries []string) suffixFilter {
	var f suffixFilter

	for _, e := range entries {
		e = strings.ToLower(strings.Trim(e, "'\" "))
		if e == "" || e == "!" {
			continue
		}

		if strings.HasPrefix(e, "!") {
			f.exclude = append(f.exclude, strings.TrimPrefix(e, "!"))
		} else {
			f.include = append(f.include, e)
		}
	}

	return f
}

// match returns true if the file should be included.
func (f suffixFilter) match(path string) bool {
	path = strings.ToLower(path)

	for _, ext := range f.exclude {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}

	for _, ext := range f.include {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}
