package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/cratedoc"
)

// skipDirs are never copied or hashed.
var skipDirs = map[string]bool{
	".git": true,
	".svn": true,
	".hg":  true,
}

// skipped reports whether the directory at rel is excluded from trees.
// Build outputs are only excluded at the tree root.
func skipped(rel string, d fs.DirEntry) bool {
	if !d.IsDir() {
		return false
	}
	if skipDirs[d.Name()] {
		return true
	}
	return rel == "target"
}

// CopyTree copies the regular files under src to dst, creating dst.
// Symbolic links to files are copied as files; links to directories are
// skipped.
func CopyTree(src, dst string) error {
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if skipped(filepath.ToSlash(rel), d) {
			return filepath.SkipDir
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
			return copyFile(path, target, info.Mode().Perm())
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
	if err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to copy %s", src)
	}
	return nil
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// HashTree returns a content hash of the tree at dir and its size in
// bytes. The hash covers relative paths, executable bits and file
// contents in lexical order, so it is stable across copies.
func HashTree(dir string) (string, int64, error) {
	h := xxhash.New()
	var size int64

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if skipped(filepath.ToSlash(rel), d) {
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		fmt.Fprintf(h, "%s\x00%t\x00%d\x00", filepath.ToSlash(rel), info.Mode()&0111 != 0, info.Size())
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := io.Copy(h, f)
		size += n
		return err
	})
	if err != nil {
		return "", 0, cratedoc.WrapError(cratedoc.EIO, err, "failed to hash %s", dir)
	}
	return fmt.Sprintf("%016x", h.Sum64()), size, nil
}

// DirSize returns the total size of regular files under dir.
func DirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}
