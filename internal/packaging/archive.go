package packaging

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"epideploy/shared"
)

var (
	ErrSourceNotFound    = errors.New("packaging: source directory does not exist")
	ErrDestinationExists = errors.New("packaging: destination artifact already exists")
)

var plog = shared.PackageLogger("packaging", "📦 PKG")

// IgnoreFileName is the optional per-project exclusion file read from the
// source root, using gitignore syntax.
const IgnoreFileName = ".epiignore"

// defaultIgnores excludes the usual build and VCS noise. Project patterns
// from .epiignore and the caller are appended after these, so they can
// negate any of them.
var defaultIgnores = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"bin/",
	"obj/",
	".vs/",
	".vscode/",
	"*.user",
	".DS_Store",
	"Thumbs.db",
	IgnoreFileName,
}

// storedExtensions are already compressed; deflating them again wastes CPU
// for no size win, so they are stored as-is.
var storedExtensions = map[string]bool{
	".zip": true, ".nupkg": true, ".bacpac": true, ".7z": true, ".gz": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".woff": true, ".woff2": true, ".mp4": true, ".webm": true,
}

// CreateArchive zips the contents of sourceDir (not the directory itself)
// into destPath. It refuses to overwrite an existing destination; callers
// that want overwrite semantics remove the file first.
func CreateArchive(sourceDir, destPath string, extraPatterns []string) error {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, sourceDir)
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, destPath)
	}

	matcher := NewIgnoreMatcher(defaultIgnores)
	if lines, err := readIgnoreFile(filepath.Join(sourceDir, IgnoreFileName)); err == nil {
		matcher.Add(lines)
	}
	matcher.Add(extraPatterns)

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("packaging: cannot create %s: %w", destPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	count := 0
	walkErr := filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if matcher.Match(rel, d.IsDir()) {
			plog.Trace("skipping %s", rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// sockets, devices, symlinks: nothing the remote can use
			return nil
		}

		if err := addFile(zw, p, rel); err != nil {
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		zw.Close()
		os.Remove(destPath)
		return fmt.Errorf("packaging: archive of %s failed: %w", sourceDir, walkErr)
	}

	if err := zw.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("packaging: cannot finalize %s: %w", destPath, err)
	}

	plog.Debug("archived %d files from %s into %s", count, sourceDir, destPath)
	return nil
}

func addFile(zw *zip.Writer, path, rel string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = rel
	if storedExtensions[strings.ToLower(filepath.Ext(rel))] {
		header.Method = zip.Store
	} else {
		header.Method = zip.Deflate
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

func readIgnoreFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}
