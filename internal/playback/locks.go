package playback

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// Lock is an OS resource kept while a video plays, such as an inhibitor
// preventing the machine from sleeping.
type Lock interface {
	Name() string
	Acquire() error
	Release() error
}

// lockSet acquires and releases its locks as a unit. Repeated calls are
// no-ops.
type lockSet struct {
	locks []Lock
	held  bool
}

func (s *lockSet) acquire() {
	if s.held {
		return
	}
	s.held = true
	for _, l := range s.locks {
		if err := l.Acquire(); err != nil {
			log.Warn("Failed to acquire %s lock: %v", l.Name(), err)
		}
	}
}

func (s *lockSet) release() {
	if !s.held {
		return
	}
	s.held = false
	for _, l := range s.locks {
		if err := l.Release(); err != nil {
			log.Warn("Failed to release %s lock: %v", l.Name(), err)
		}
	}
}

// NopLock does nothing.
type NopLock string

// Name implements Lock.
func (l NopLock) Name() string { return string(l) }

// Acquire implements Lock.
func (NopLock) Acquire() error { return nil }

// Release implements Lock.
func (NopLock) Release() error { return nil }

// InhibitLock holds a child process for as long as the lock is held.
// With systemd-inhibit this blocks idle and sleep.
type InhibitLock struct {
	name    string
	command []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewInhibitLock returns a lock running command while held.
func NewInhibitLock(name string, command ...string) *InhibitLock {
	return &InhibitLock{name: name, command: command}
}

// NewSystemdInhibitLock blocks idle and sleep through systemd-inhibit.
func NewSystemdInhibitLock() *InhibitLock {
	return NewInhibitLock("wake",
		"systemd-inhibit",
		"--what=idle:sleep",
		"--who=tubeplayer",
		"--why=Playing video",
		"--mode=block",
		"sleep", "infinity",
	)
}

// Name implements Lock.
func (l *InhibitLock) Name() string { return l.name }

// Acquire implements Lock.
func (l *InhibitLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd != nil {
		return nil
	}
	if len(l.command) == 0 {
		return errors.New("no inhibit command")
	}
	cmd := exec.Command(l.command[0], l.command[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", l.command[0], err)
	}
	l.cmd = cmd
	log.Debug("%s lock acquired (pid %d)", l.name, cmd.Process.Pid)
	return nil
}

// Release implements Lock.
func (l *InhibitLock) Release() error {
	l.mu.Lock()
	cmd := l.cmd
	l.cmd = nil
	l.mu.Unlock()
	if cmd == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", l.command[0], err)
	}
	go cmd.Wait()
	log.Debug("%s lock released", l.name)
	return nil
}

// Held reports whether the inhibitor process is running.
func (l *InhibitLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd != nil
}
