//go:build windows

package vfs

import (
	"os"

	"golang.org/x/sys/windows"
)

func (v *OSVFS) Lock(path string) error {
	if _, ok := v.locks[path]; ok {
		return ErrAlreadyLocked
	}
	f, err := os.OpenFile(v.native(path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	handle := windows.Handle(f.Fd())
	ol := new(windows.Overlapped)
	err = windows.LockFileEx(handle, windows.LOCKFILE_FAIL_IMMEDIATELY|windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, ol)
	if err != nil {
		f.Close()
		return ErrAlreadyLocked
	}
	v.locks[path] = f
	return nil
}

func (v *OSVFS) Unlock(path string) error {
	f, ok := v.locks[path]
	if !ok {
		return nil
	}
	delete(v.locks, path)
	handle := windows.Handle(f.Fd())
	ol := new(windows.Overlapped)
	_ = windows.UnlockFileEx(handle, 0, 1, 0, ol)
	return f.Close()
}
