package query

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// locateSource resolves a span file against the source root, then the
// member directory. Files outside the source root are never returned.
func locateSource(entry *cratedoc.CacheEntry, member cratedoc.MemberID, file string) (string, string, error) {
	root := filepath.Clean(entry.SourceRoot)
	for _, base := range []string{root, entry.MemberDir(member)} {
		p := filepath.Clean(filepath.FromSlash(file))
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, filepath.ToSlash(rel), nil
		}
	}
	return "", "", cratedoc.Errorf(cratedoc.ENOTFOUND, "source file %s is not part of %s", file, entry.Key)
}

// excerpt is a line range of a file and its half-open byte range.
type excerpt struct {
	startLine, endLine int
	startByte, endByte int
}

// newExcerpt covers lines begin through end widened by context lines on
// each side and clamped to the file. The final newline is excluded.
func newExcerpt(data []byte, begin, end, context int) (excerpt, error) {
	var starts []int
	for i := 0; i < len(data); {
		starts = append(starts, i)
		j := bytes.IndexByte(data[i:], '\n')
		if j < 0 {
			break
		}
		i += j + 1
	}
	lines := len(starts)
	if begin < 1 || begin > lines {
		return excerpt{}, cratedoc.Errorf(cratedoc.ENOTFOUND, "line %d is outside the file (%d lines)", begin, lines)
	}
	end = min(max(end, begin), lines)

	ex := excerpt{
		startLine: max(1, begin-context),
		endLine:   min(lines, end+context),
	}
	ex.startByte = starts[ex.startLine-1]
	if ex.endLine < lines {
		ex.endByte = starts[ex.endLine] - 1
	} else {
		ex.endByte = len(data)
		if data[ex.endByte-1] == '\n' {
			ex.endByte--
		}
	}
	return ex, nil
}
