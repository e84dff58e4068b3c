//go:build windows

package daemon

import (
	"fmt"
	"os"
	"strconv"
)

type daemonLock struct {
	f    *os.File
	path string
}

// acquireLock creates path exclusively. A crash leaves the file behind; `devcrew
// nuke` or removing it by hand clears it.
func acquireLock(path string) (*daemonLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("devcrew is already running (lock file %s exists)", path)
		}
		return nil, err
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return &daemonLock{f: f, path: path}, nil
}

func (l *daemonLock) release() {
	if l == nil || l.f == nil {
		return
	}
	_ = l.f.Close()
	_ = os.Remove(l.path)
}
