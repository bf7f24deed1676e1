package romfile

import (
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-consolehost/consolehost/console"
)

var romData = []byte{0x4E, 0x45, 0x53, 0x1A, 0x01, 0x02, 0x03}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeZip(t *testing.T, name string, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for entry, data := range entries {
		fw, err := w.Create(entry)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func writeGzip(t *testing.T, name, header string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := gzip.NewWriter(f)
	w.Name = header
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		path     func(t *testing.T) string
		wantName string
		wantType console.Type
	}{
		{
			name:     "plain nes",
			path:     func(t *testing.T) string { return writeFile(t, "mario.nes", romData) },
			wantName: "mario.nes",
			wantType: console.NES,
		},
		{
			name:     "plain uppercase extension",
			path:     func(t *testing.T) string { return writeFile(t, "ZELDA.GBA", romData) },
			wantName: "ZELDA.GBA",
			wantType: console.GBA,
		},
		{
			name: "zip skips non rom entries",
			path: func(t *testing.T) string {
				return writeZip(t, "pack.zip", map[string][]byte{
					"readme.txt":        []byte("hello"),
					"games/metroid.gba": romData,
				})
			},
			wantName: "metroid.gba",
			wantType: console.GBA,
		},
		{
			name: "zip detected by magic without extension",
			path: func(t *testing.T) string {
				path := writeZip(t, "pack.zip", map[string][]byte{"kirby.nes": romData})
				renamed := filepath.Join(filepath.Dir(path), "download")
				require.NoError(t, os.Rename(path, renamed))
				return renamed
			},
			wantName: "kirby.nes",
			wantType: console.NES,
		},
		{
			name:     "gzip uses stored name",
			path:     func(t *testing.T) string { return writeGzip(t, "x.gz", "tetris.gba", romData) },
			wantName: "tetris.gba",
			wantType: console.GBA,
		},
		{
			name:     "gzip falls back to file name",
			path:     func(t *testing.T) string { return writeGzip(t, "contra.nes.gz", "", romData) },
			wantName: "contra.nes",
			wantType: console.NES,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Load(tt.path(t))
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, img.Name)
			assert.Equal(t, tt.wantType, img.Type)
			assert.Equal(t, romData, img.Data)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "unknown extension",
			path:    func(t *testing.T) string { return writeFile(t, "notes.txt", []byte("text")) },
			wantErr: ErrUnsupported,
		},
		{
			name: "zip without roms",
			path: func(t *testing.T) string {
				return writeZip(t, "empty.zip", map[string][]byte{"readme.txt": []byte("hi")})
			},
			wantErr: ErrNoROM,
		},
		{
			name:    "gzip of unknown file",
			path:    func(t *testing.T) string { return writeGzip(t, "notes.txt.gz", "", []byte("text")) },
			wantErr: ErrUnsupported,
		},
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "gone.nes") },
			wantErr: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_CorruptArchives(t *testing.T) {
	for _, name := range []string{"bad.7z", "bad.rar", "bad.zip"} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, name, []byte("not an archive")))
			assert.Error(t, err)
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		path   string
		want   kind
	}{
		{"7z magic", []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C, 0, 4}, "x.bin", kind7z},
		{"rar magic", []byte("Rar!\x1a\x07"), "x", kindRar},
		{"gzip magic", []byte{0x1F, 0x8B, 8}, "x", kindGzip},
		{"rom by extension", []byte{0, 1, 2}, "x.nes", kindPlain},
		{"unknown", []byte{0, 1, 2}, "x.bin", kindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detect(tt.header, tt.path))
		})
	}
}
