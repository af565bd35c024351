package markup

import (
	"os"
	"path/filepath"
	"sync"
)

// The session directory is created once per process and shared by every
// temp-dir request; named subfolders are stable for the process lifetime.
var (
	sessionMu  sync.Mutex
	sessionDir string
)

const tmpPrefix = "confix-"

// SessionDir returns the process-lifetime temporary directory, creating it on
// first use. The directory name embeds the current user so shared machines
// keep sessions apart.
func SessionDir() (string, error) {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if sessionDir != "" {
		return sessionDir, nil
	}
	user := "anon"
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		user = filepath.Base(home)
	}
	dir, err := os.MkdirTemp("", tmpPrefix+user+"-")
	if err != nil {
		return "", err
	}
	sessionDir = dir
	return sessionDir, nil
}

// TempSubdir returns the path of a named subfolder of the session directory,
// creating it if needed. The same name always resolves to the same path
// within one process.
func TempSubdir(name string) (string, error) {
	base, err := SessionDir()
	if err != nil {
		return "", err
	}
	if name == "" {
		return base, nil
	}
	path := filepath.Join(base, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return path, nil
}
