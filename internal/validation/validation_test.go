package validation

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/FocuswithJustin/deckir/core/errors"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantError error
	}{
		{name: "relative", path: "cases/heat.sif"},
		{name: "absolute", path: "/data/cases"},
		{name: "unicode", path: "cases/wärme.sif"},
		{name: "empty", path: "", wantError: ErrEmptyPath},
		{name: "too long", path: strings.Repeat("a", MaxPathLength+1), wantError: ErrPathTooLong},
		{name: "null byte", path: "case\x00.sif", wantError: ErrInvalidCharacter},
		{name: "newline", path: "case\n.sif", wantError: ErrInvalidCharacter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantError == nil {
				if err != nil {
					t.Errorf("ValidatePath() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantError) {
				t.Errorf("ValidatePath() error = %v, want %v", err, tt.wantError)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("ValidatePath() error = %v does not match ErrInvalidInput", err)
			}
		})
	}
}

func TestValidateDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "case.sif")
	if err := os.WriteFile(file, []byte("RUN\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateDir(dir); err != nil {
		t.Errorf("ValidateDir(dir) = %v", err)
	}
	if err := ValidateDir(file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("ValidateDir(file) = %v, want ErrNotDirectory", err)
	}
	if err := ValidateDir(filepath.Join(dir, "missing")); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("ValidateDir(missing) = %v, want ErrNotFound", err)
	}
}

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "case.sif")
	if err := os.WriteFile(file, []byte("RUN\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateInputFile(file); err != nil {
		t.Errorf("ValidateInputFile(file) = %v", err)
	}
	if err := ValidateInputFile(dir); !errors.Is(err, ErrNotRegular) {
		t.Errorf("ValidateInputFile(dir) = %v, want ErrNotRegular", err)
	}
	if err := ValidateInputFile(filepath.Join(dir, "missing.sif")); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("ValidateInputFile(missing) = %v, want ErrNotFound", err)
	}
	if err := ValidateInputFile(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("ValidateInputFile(\"\") = %v, want ErrEmptyPath", err)
	}
}

func TestRelWithin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name      string
		path      string
		want      string
		wantError error
	}{
		{name: "direct child", path: filepath.Join(base, "case.sif"), want: "case.sif"},
		{name: "nested", path: filepath.Join(base, "heat", "case.sif"), want: filepath.Join("heat", "case.sif")},
		{name: "dotdot inside", path: filepath.Join(base, "heat", "..", "case.sif"), want: "case.sif"},
		{name: "base itself", path: base, want: "."},
		{name: "sibling", path: filepath.Join(base, "..", "other"), wantError: ErrPathTraversal},
		{name: "parent", path: filepath.Dir(base), wantError: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RelWithin(base, tt.path)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Errorf("RelWithin() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("RelWithin() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RelWithin() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelWithinDotDotPrefixedName(t *testing.T) {
	base := t.TempDir()
	got, err := RelWithin(base, filepath.Join(base, "..cache"))
	if err != nil {
		t.Fatalf("RelWithin() error = %v", err)
	}
	if got != "..cache" {
		t.Errorf("RelWithin() = %q, want ..cache", got)
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     FileKind
	}{
		{name: "deck", filename: "case.sif", content: []byte("Header\n  Mesh DB \".\" \"mesh\"\nEnd\n"), want: KindDeck},
		{name: "deck without extension", filename: "ELMERSOLVER_STARTINFO", content: []byte("case.sif\n"), want: KindDeck},
		{name: "record json", filename: "case__ab12cd34.json", content: []byte("{\n  \"source_code\": \"\"\n}"), want: KindRecord},
		{name: "json that is not an object", filename: "list.json", content: []byte("[1, 2]"), want: KindDeck},
		{name: "record xz", filename: "case__ab12cd34.json.xz", content: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0x00}, want: KindRecordXZ},
		{name: "bundle xz", filename: "records.tar.xz", content: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0x00}, want: KindBundle},
		{name: "bundle gz", filename: "records.tar.gz", content: []byte{0x1f, 0x8b, 0x08, 0x00}, want: KindBundle},
		{name: "catalog", filename: "catalog.db", content: []byte("SQLite format 3\x00rest"), want: KindCatalog},
		{name: "dialect", filename: "elmer.yaml", content: []byte("terminator: End\n"), want: KindDialect},
		{name: "binary", filename: "mesh.bin", content: []byte{0x01, 0x02, 0x00, 0x04}, want: KindBinary},
		{name: "empty", filename: "empty.sif", content: nil, want: KindEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectKind(bytes.NewReader(tt.content), tt.filename)
			if err != nil {
				t.Fatalf("DetectKind() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, errors.New("read error") }

func TestDetectKindReadError(t *testing.T) {
	_, err := DetectKind(errorReader{}, "case.sif")
	if !errors.Is(err, apperrors.ErrIO) {
		t.Errorf("DetectKind() error = %v, want ErrIO", err)
	}
}

func TestDetectFileKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "case.sif")
	if err := os.WriteFile(path, []byte("RUN\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DetectFileKind(path)
	if err != nil || got != KindDeck {
		t.Errorf("DetectFileKind() = %v, %v; want deck", got, err)
	}
	if _, err := DetectFileKind(filepath.Join(dir, "missing")); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("DetectFileKind(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLooksLikeText(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"empty", nil, false},
		{"ascii", []byte("Solver 1\n  Equation = Heat\nEnd\n"), true},
		{"utf8", []byte("! Wärmeleitung\nRUN\n"), true},
		{"null byte", []byte("abc\x00def"), false},
		{"mostly control", []byte{0x01, 0x02, 0x03, 'a'}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeText(tt.buf); got != tt.want {
				t.Errorf("LooksLikeText() = %v, want %v", got, tt.want)
			}
		})
	}
}
