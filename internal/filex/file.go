// Package filex contains the filesystem primitives the vault relies on:
// private directories, crash-atomic file replacement and verified copies.
package filex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// EnsureDir creates dir (and parents) with owner-only permissions and returns
// its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, common.PrivateDirMode); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// Exists reports whether path exists. Errors other than "not exist" are
// returned so that permission problems are not mistaken for absence.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Option tweaks WriteFileAtomic.
type Option func(*writeOptions)

type writeOptions struct {
	beforeRename func(tmpPath string) error
}

// WithBeforeRename runs fn after the temporary file is written and synced
// but before it replaces the target. A non-nil error aborts the write.
// Used to inject crashes in tests.
func WithBeforeRename(fn func(tmpPath string) error) Option {
	return func(o *writeOptions) { o.beforeRename = fn }
}

// WriteFileAtomic replaces path with data so that a reader sees either the
// old contents or the new ones, never a mix.
//
// The data goes to a temporary file in the same directory, is fsynced, and is
// then renamed over path; the directory is synced afterwards where the
// platform allows it. On any error the temporary file is removed and path is
// left untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, opts ...Option) (err error) {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if o.beforeRename != nil {
		if err = o.beforeRename(tmpPath); err != nil {
			return err
		}
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports fsync on directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// CopyFileVerified copies src to dst (created exclusively, never
// overwritten), syncs it, then re-reads dst and compares its BLAKE3 digest
// with the source. It returns the hex digest once the copy is confirmed.
// A failed verification removes dst.
func CopyFileVerified(src, dst string, perm os.FileMode) (digest string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcHash := blake3.New()
	if _, err = io.Copy(out, io.TeeReader(in, srcHash)); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	if err = out.Sync(); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("sync %s: %w", dst, err)
	}
	if err = out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dst, err)
	}

	dstSum, err := fileDigest(dst)
	if err != nil {
		return "", err
	}
	srcSum := srcHash.Sum(nil)
	if !bytes.Equal(srcSum, dstSum) {
		err = fmt.Errorf("verify %s: digest mismatch", dst)
		return "", err
	}

	return fmt.Sprintf("%x", srcSum), nil
}

func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return h.Sum(nil), nil
}
