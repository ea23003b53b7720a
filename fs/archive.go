package fs

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// Archive limits.
const (
	MaxArchiveBytes   = 1 << 30
	MaxArchiveEntries = 200000
)

// ExtractCrate unpacks a gzipped crate tarball into dst. The archive must
// hold exactly one top-level directory containing Cargo.toml; that
// directory is stripped. Entries escaping dst are rejected.
func ExtractCrate(r io.Reader, dst string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return cratedoc.WrapError(cratedoc.EINVALID, err, "archive is not gzip compressed")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var (
		root    string
		entries int
		total   int64
	)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cratedoc.WrapError(cratedoc.EINVALID, err, "malformed archive")
		}
		entries++
		if entries > MaxArchiveEntries {
			return cratedoc.Errorf(cratedoc.EINVALID, "archive has more than %d entries", MaxArchiveEntries)
		}

		name := strings.TrimPrefix(path.Clean(strings.TrimPrefix(hdr.Name, "./")), "/")
		if path.IsAbs(hdr.Name) {
			return cratedoc.Errorf(cratedoc.EINVALID, "archive entry %q is absolute", hdr.Name)
		}
		if name == ".." || strings.HasPrefix(name, "../") {
			return cratedoc.Errorf(cratedoc.EINVALID, "archive entry %q escapes the package root", hdr.Name)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader || name == "." {
			continue
		}
		top, rel, _ := strings.Cut(name, "/")
		if root == "" {
			root = top
		} else if top != root {
			return cratedoc.Errorf(cratedoc.EINVALID, "archive has more than one package root (%q and %q)", root, top)
		}
		if rel == "" {
			continue
		}
		if err := cratedoc.ValidateRelPath(rel); err != nil {
			return cratedoc.Errorf(cratedoc.EINVALID, "archive entry %q escapes the package root", hdr.Name)
		}
		if crossesLink(dst, rel) {
			return cratedoc.Errorf(cratedoc.EINVALID, "archive entry %q is written through a link", hdr.Name)
		}
		target := filepath.Join(dst, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return cratedoc.WrapError(cratedoc.EIO, err, "failed to extract %s", rel)
			}
		case tar.TypeReg:
			total += hdr.Size
			if total > MaxArchiveBytes {
				return cratedoc.Errorf(cratedoc.EINVALID, "archive exceeds %d bytes", MaxArchiveBytes)
			}
			if err := extractFile(tr, target, hdr); err != nil {
				return cratedoc.WrapError(cratedoc.EIO, err, "failed to extract %s", rel)
			}
		case tar.TypeSymlink:
			if path.IsAbs(hdr.Linkname) || !linkStaysInside(dst, path.Dir(rel), hdr.Linkname) {
				return cratedoc.Errorf(cratedoc.EINVALID, "archive link %q points outside the package root", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return cratedoc.WrapError(cratedoc.EIO, err, "failed to extract %s", rel)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return cratedoc.WrapError(cratedoc.EIO, err, "failed to extract %s", rel)
			}
		default:
			// Hard links, devices and FIFOs never appear in published crates.
		}
	}

	if root == "" {
		return cratedoc.Errorf(cratedoc.EINVALID, "archive is empty")
	}
	if _, err := os.Stat(filepath.Join(dst, "Cargo.toml")); err != nil {
		return cratedoc.Errorf(cratedoc.EINVALID, "archive does not contain a package manifest")
	}
	return nil
}

func extractFile(r io.Reader, target string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	mode := os.FileMode(0644)
	if hdr.Mode&0111 != 0 {
		mode = 0755
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, hdr.Size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// crossesLink reports whether rel or any of its parents is a symlink
// already extracted under dst.
func crossesLink(dst, rel string) bool {
	p := dst
	for _, part := range strings.Split(rel, "/") {
		p = filepath.Join(p, part)
		info, err := os.Lstat(p)
		if err != nil {
			return false
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

// linkStaysInside reports whether target, resolved from dir, names a
// path under dst without leaving it or passing through another link.
func linkStaysInside(dst, dir, target string) bool {
	var parts []string
	if dir != "." {
		parts = strings.Split(dir, "/")
	}
	for _, c := range strings.Split(target, "/") {
		switch c {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return false
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, c)
			info, err := os.Lstat(filepath.Join(dst, filepath.Join(parts...)))
			if err == nil && info.Mode()&os.ModeSymlink != 0 {
				return false
			}
		}
	}
	return true
}
