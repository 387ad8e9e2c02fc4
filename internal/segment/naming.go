package segment

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultExt is used when the source path has no extension.
const DefaultExt = ".pdf"

// OutputPath returns {dir}/{stem}_part{n}{ext} for a source path.
func OutputPath(source string, n int) string {
	ext := filepath.Ext(source)
	stem := strings.TrimSuffix(source, ext)
	if ext == "" {
		ext = DefaultExt
	}
	return fmt.Sprintf("%s_part%d%s", stem, n, ext)
}

// pageSelection renders 0-based page indices as 1-based selection terms,
// collapsing consecutive runs into "a-b".
func pageSelection(pages []int) []string {
	var out []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if i == j {
			out = append(out, fmt.Sprintf("%d", pages[i]+1))
		} else {
			out = append(out, fmt.Sprintf("%d-%d", pages[i]+1, pages[j]+1))
		}
		i = j + 1
	}
	return out
}
