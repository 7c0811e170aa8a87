package parser

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocumentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeTestDocx(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(testDocumentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestDOCXParser_ConcatenatesParagraphRunsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	writeTestDocx(t, path)

	p := &DOCXParser{}
	text, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", text)
}

func TestDOCXParser_MissingDocumentXML_ReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	p := &DOCXParser{}
	_, err = p.Parse(context.Background(), path)
	assert.Error(t, err)
}
