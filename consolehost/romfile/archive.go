package romfile

import (
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
	"github.com/valerio/go-consolehost/consolehost/console"
)

func fromZip(f *os.File) (console.ROM, error) {
	info, err := f.Stat()
	if err != nil {
		return console.ROM{}, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return console.ROM{}, fmt.Errorf("open zip: %w", err)
	}

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || !isROM(entry.Name) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return console.ROM{}, fmt.Errorf("open %s: %w", entry.Name, err)
		}
		defer rc.Close()
		return readPlain(rc, filepath.Base(entry.Name))
	}
	return console.ROM{}, ErrNoROM
}

// fromGzip handles single-file gzip streams, the ROM name is the archive
// name without its .gz suffix.
func fromGzip(f *os.File, path string) (console.ROM, error) {
	gr, err := gzip.NewReader(f)
	if err != nil {
		return console.ROM{}, fmt.Errorf("open gzip: %w", err)
	}
	defer gr.Close()

	name := gr.Name
	if name == "" {
		name = filepath.Base(path)
		if ext := filepath.Ext(name); strings.EqualFold(ext, ".gz") {
			name = strings.TrimSuffix(name, ext)
		}
	}
	return readPlain(gr, filepath.Base(name))
}

func from7z(f *os.File) (console.ROM, error) {
	info, err := f.Stat()
	if err != nil {
		return console.ROM{}, err
	}
	zr, err := sevenzip.NewReader(f, info.Size())
	if err != nil {
		return console.ROM{}, fmt.Errorf("open 7z: %w", err)
	}

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || !isROM(entry.Name) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return console.ROM{}, fmt.Errorf("open %s: %w", entry.Name, err)
		}
		defer rc.Close()
		return readPlain(rc, filepath.Base(entry.Name))
	}
	return console.ROM{}, ErrNoROM
}

func fromRar(f *os.File) (console.ROM, error) {
	rr, err := rardecode.NewReader(f)
	if err != nil {
		return console.ROM{}, fmt.Errorf("open rar: %w", err)
	}

	for {
		header, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return console.ROM{}, ErrNoROM
		}
		if err != nil {
			return console.ROM{}, fmt.Errorf("read rar entry: %w", err)
		}
		if header.IsDir || !isROM(header.Name) {
			continue
		}
		return readPlain(rr, filepath.Base(header.Name))
	}
}
