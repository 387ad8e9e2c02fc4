package source

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// inUse counts the fetched sources living in each directory. The janitor
// never removes a directory with a non-zero count.
var inUse = struct {
	sync.Mutex
	dirs map[string]int
}{dirs: map[string]int{}}

func dirKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func hold(dir string) {
	inUse.Lock()
	inUse.dirs[dirKey(dir)]++
	inUse.Unlock()
}

func release(dir string) {
	key := dirKey(dir)
	inUse.Lock()
	if inUse.dirs[key] <= 1 {
		delete(inUse.dirs, key)
	} else {
		inUse.dirs[key]--
	}
	inUse.Unlock()
}

// InUse reports whether a fetched, not yet cleaned up source lives in dir.
func InUse(dir string) bool {
	inUse.Lock()
	defer inUse.Unlock()
	return inUse.dirs[dirKey(dir)] > 0
}

// CleanupTemps removes job directories under dir (os.TempDir() when empty)
// that were created by Fetch and are older than maxAge. It returns how many
// were removed.
func CleanupTemps(dir string, maxAge time.Duration) int {
	if dir == "" {
		dir = os.TempDir()
	}
	return CleanupDirs(dir, TempPrefix, maxAge)
}

// CleanupDirs removes the subdirectories of root whose name starts with
// prefix and whose mtime is at least maxAge old. Directories holding a
// source that is still being processed are skipped.
func CleanupDirs(root, prefix string, maxAge time.Duration) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if InUse(dir) {
			continue
		}
		if os.RemoveAll(dir) == nil {
			removed++
		}
	}
	return removed
}
