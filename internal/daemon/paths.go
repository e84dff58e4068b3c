package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// runFiles are the files a running daemon keeps under home/protected so the
// CLI can find it. The sqlite database lives in the same directory.
type runFiles struct {
	dir  string
	pid  string
	lock string
	addr string
	log  string
}

func runFilesFor(home string) runFiles {
	dir := filepath.Join(home, "protected")
	return runFiles{
		dir:  dir,
		pid:  filepath.Join(dir, "devcrew.pid"),
		lock: filepath.Join(dir, "devcrew.lock"),
		addr: filepath.Join(dir, "devcrew.addr"),
		log:  filepath.Join(dir, "devcrew.log"),
	}
}

func (f runFiles) ensureDir() error {
	return os.MkdirAll(f.dir, 0o755)
}

// record writes the pid and listen address. The pid file is written last so a
// reader that sees it can also read the address.
func (f runFiles) record(pid int, addr string) error {
	if err := os.WriteFile(f.addr, []byte(addr+"\n"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(f.pid, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

func (f runFiles) clear() {
	_ = os.Remove(f.pid)
	_ = os.Remove(f.addr)
}

// readPID returns 0 when the pid file is missing or unparsable.
func (f runFiles) readPID() int {
	b, err := os.ReadFile(f.pid)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

func (f runFiles) readAddr() string {
	b, err := os.ReadFile(f.addr)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
