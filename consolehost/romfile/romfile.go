// Package romfile reads game images from disk. Plain ROM files are loaded
// as-is; zip, gzip, 7z and rar archives are searched for the first entry
// whose extension some console type accepts.
package romfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/valerio/go-consolehost/consolehost/console"
)

// MaxSize caps how much is read from a single image.
const MaxSize = 32 * 1024 * 1024

var (
	ErrNoROM       = errors.New("no ROM found")
	ErrUnsupported = errors.New("unsupported file format")
	ErrTooLarge    = errors.New("ROM exceeds maximum size")
)

type kind int

const (
	kindUnknown kind = iota
	kindPlain
	kindZip
	kindGzip
	kind7z
	kindRar
)

var magics = []struct {
	prefix []byte
	kind   kind
}{
	{[]byte{'P', 'K', 0x03, 0x04}, kindZip},
	{[]byte{'P', 'K', 0x05, 0x06}, kindZip},
	{[]byte{'R', 'a', 'r', '!'}, kindRar},
	{[]byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}, kind7z},
	{[]byte{0x1F, 0x8B}, kindGzip},
}

// Image is a loaded ROM and the console type its name maps to.
type Image struct {
	console.ROM
	Type console.Type
}

// Load reads the image at path. The ROM name is the base name of the file
// or archive entry it came from.
func Load(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("open rom: %w", err)
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Image{}, fmt.Errorf("read rom header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Image{}, fmt.Errorf("rewind rom: %w", err)
	}

	var rom console.ROM
	switch detect(header[:n], path) {
	case kindPlain:
		rom, err = readPlain(f, filepath.Base(path))
	case kindZip:
		rom, err = fromZip(f)
	case kindGzip:
		rom, err = fromGzip(f, path)
	case kind7z:
		rom, err = from7z(f)
	case kindRar:
		rom, err = fromRar(f)
	default:
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if err != nil {
		return Image{}, fmt.Errorf("load %s: %w", path, err)
	}

	typ, ok := console.FromPath(rom.Name)
	if !ok {
		return Image{}, fmt.Errorf("%w: %s has no known extension", ErrUnsupported, rom.Name)
	}
	return Image{ROM: rom, Type: typ}, nil
}

// detect prefers magic bytes and falls back to the file extension.
func detect(header []byte, path string) kind {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.prefix) {
			return m.kind
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return kindZip
	case ".gz":
		return kindGzip
	case ".7z":
		return kind7z
	case ".rar":
		return kindRar
	}
	if isROM(path) {
		return kindPlain
	}
	return kindUnknown
}

func isROM(name string) bool {
	_, ok := console.FromPath(name)
	return ok
}

func readPlain(r io.Reader, name string) (console.ROM, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return console.ROM{}, err
	}
	if len(data) > MaxSize {
		return console.ROM{}, ErrTooLarge
	}
	return console.ROM{Name: name, Data: data}, nil
}
