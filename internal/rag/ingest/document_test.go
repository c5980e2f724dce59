package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
)

func TestGetDocType(t *testing.T) {
	tests := []struct {
		path string
		want commonModels.DocType
	}{
		{path: "constitution.pdf", want: commonModels.PDF},
		{path: "CONSTITUTION.PDF", want: commonModels.PDF},
		{path: "notes.docx", want: commonModels.DOCX},
		{path: "notes.rtf", want: commonModels.DOCX},
		{path: "plain.txt", want: commonModels.TXT},
		{path: "image.png", want: commonModels.ERR},
		{path: "noextension", want: commonModels.ERR},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := GetDocType(tt.path); got != tt.want {
				t.Errorf("GetDocType(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtractText_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("Section 1. Mauritius is a sovereign democratic State."), 0o600); err != nil {
		t.Fatal(err)
	}
	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "Section 1. Mauritius is a sovereign democratic State." {
		t.Errorf("unexpected text %q", text)
	}
}

func TestExtractText_Unsupported(t *testing.T) {
	if _, err := ExtractText("picture.png"); err == nil {
		t.Error("expected an error for an unsupported file")
	}
}
