package vfs

import (
	"os"
	"path/filepath"
	"strings"
)

// OSVFS implements VFS directly on the host file system, rooted at Root.
type OSVFS struct {
	Root string

	locks map[string]*os.File
}

// NewOSVFS returns a VFS rooted at root. The directory is created if it
// does not exist.
func NewOSVFS(root string) (*OSVFS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &OSVFS{Root: root, locks: make(map[string]*os.File)}, nil
}

func (v *OSVFS) native(path string) string {
	return filepath.Join(v.Root, filepath.FromSlash(path))
}

func (v *OSVFS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(v.native(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return data, nil
}

func (v *OSVFS) Write(path string, data []byte, mode SyncMode) error {
	f, err := os.OpenFile(v.native(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return syncMode(f, mode)
}

func (v *OSVFS) SyncFile(path string, mode SyncMode) error {
	if mode == SyncNone {
		return nil
	}
	f, err := os.OpenFile(v.native(path), os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return syncMode(f, mode)
}

func syncMode(f *os.File, mode SyncMode) error {
	switch mode {
	case SyncNone:
		return nil
	default:
		// Go's stdlib exposes only Sync (fsync); there is no portable
		// fdatasync, so SyncData and SyncAll both map to it.
		return f.Sync()
	}
}

func (v *OSVFS) RenameFile(oldPath, newPath string) error {
	return os.Rename(v.native(oldPath), v.native(newPath))
}

func (v *OSVFS) RemoveFile(path string) error {
	err := os.Remove(v.native(path))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (v *OSVFS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(v.native(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (v *OSVFS) CreateDir(path string) error {
	return os.Mkdir(v.native(path), 0o755)
}

func (v *OSVFS) CreateDirAll(path string) error {
	return os.MkdirAll(v.native(path), 0o755)
}

func (v *OSVFS) RemoveDir(path string) error {
	return os.Remove(v.native(path))
}

func (v *OSVFS) RemoveEmptyDirAll(path string) error {
	cur := path
	for cur != "" && cur != "." && cur != "/" {
		entries, err := os.ReadDir(v.native(cur))
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return err
		}
		if len(entries) > 0 {
			break
		}
		if err := os.Remove(v.native(cur)); err != nil {
			return err
		}
		cur = parentSlash(cur)
	}
	return nil
}

func parentSlash(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func (v *OSVFS) IsDir(path string) bool {
	info, err := os.Stat(v.native(path))
	return err == nil && info.IsDir()
}

func (v *OSVFS) Exists(path string) bool {
	_, err := os.Stat(v.native(path))
	return err == nil
}
