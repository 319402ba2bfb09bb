package vfs

import "errors"

// ErrReadOnly is returned by every mutating ReadOnlyVFS method.
var ErrReadOnly = errors.New("vfs: read-only")

// ReadOnlyVFS wraps a VFS and rejects every mutating call, used when a
// database is opened in OpenModeReadOnly.
type ReadOnlyVFS struct {
	Inner VFS
}

func (v *ReadOnlyVFS) Lock(path string) error   { return ErrReadOnly }
func (v *ReadOnlyVFS) Unlock(path string) error { return nil }

func (v *ReadOnlyVFS) Read(path string) ([]byte, error) { return v.Inner.Read(path) }

func (v *ReadOnlyVFS) Write(path string, data []byte, mode SyncMode) error { return ErrReadOnly }
func (v *ReadOnlyVFS) SyncFile(path string, mode SyncMode) error          { return ErrReadOnly }
func (v *ReadOnlyVFS) RenameFile(oldPath, newPath string) error           { return ErrReadOnly }
func (v *ReadOnlyVFS) RemoveFile(path string) error                       { return ErrReadOnly }

func (v *ReadOnlyVFS) ReadDir(path string) ([]string, error) { return v.Inner.ReadDir(path) }
func (v *ReadOnlyVFS) CreateDir(path string) error            { return ErrReadOnly }
func (v *ReadOnlyVFS) CreateDirAll(path string) error         { return ErrReadOnly }
func (v *ReadOnlyVFS) RemoveDir(path string) error            { return ErrReadOnly }
func (v *ReadOnlyVFS) RemoveEmptyDirAll(path string) error    { return ErrReadOnly }

func (v *ReadOnlyVFS) IsDir(path string) bool  { return v.Inner.IsDir(path) }
func (v *ReadOnlyVFS) Exists(path string) bool { return v.Inner.Exists(path) }
