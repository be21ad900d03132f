package format

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	t.Run("extension beats content type", func(t *testing.T) {
		d := Detect("statement.csv", "application/pdf", nil)
		assert.Equal(t, CSV, d.Format)
		assert.Equal(t, SourceExtension, d.Source)
		assert.Equal(t, ConfidenceHigh, d.Confidence)
	})

	t.Run("magic bytes when extension unknown", func(t *testing.T) {
		d := Detect("statement.dat", "", []byte("%PDF-1.7\n"))
		assert.Equal(t, PDF, d.Format)
		assert.Equal(t, SourceMagic, d.Source)
	})

	t.Run("ofx header magic", func(t *testing.T) {
		d := Detect("", "", []byte("OFXHEADER:100\nDATA:OFXSGML\n"))
		assert.Equal(t, OFX, d.Format)
		assert.Equal(t, SourceMagic, d.Source)
	})

	t.Run("content type as last resort", func(t *testing.T) {
		d := Detect("upload", "text/csv; charset=utf-8", nil)
		assert.Equal(t, CSV, d.Format)
		assert.Equal(t, SourceContentType, d.Source)
		assert.Equal(t, ConfidenceMedium, d.Confidence)
	})

	t.Run("octet-stream is skipped", func(t *testing.T) {
		d := Detect("", "application/octet-stream", nil)
		assert.Equal(t, Unknown, d.Format)
		assert.Equal(t, SourceNone, d.Source)
		assert.Equal(t, ConfidenceLow, d.Confidence)
	})

	t.Run("never fails on empty input", func(t *testing.T) {
		d := Detect("", "", nil)
		assert.Equal(t, Unknown, d.Format)
	})

	t.Run("deterministic for arbitrary bytes", func(t *testing.T) {
		junk := []byte{0x00, 0xFF, 0x13, 0x37, 0x00}
		first := Detect("", "", junk)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Detect("", "", junk))
		}
	})
}

func zipWithEntries(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDetect_ZipDisambiguation(t *testing.T) {
	t.Run("ods by mimetype entry", func(t *testing.T) {
		data := zipWithEntries(t, map[string]string{
			"mimetype":    "application/vnd.oasis.opendocument.spreadsheet",
			"content.xml": "<office:document-content/>",
		})
		d := Detect("", "", data)
		assert.Equal(t, ODS, d.Format)
		assert.Equal(t, SourceMagic, d.Source)
	})

	t.Run("xlsx by workbook entries", func(t *testing.T) {
		data := zipWithEntries(t, map[string]string{
			"[Content_Types].xml": "<Types/>",
			"xl/workbook.xml":     "<workbook/>",
		})
		d := Detect("", "", data)
		assert.Equal(t, XLSX, d.Format)
	})

	t.Run("truncated zip defaults to xlsx", func(t *testing.T) {
		d := Detect("", "", []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00})
		assert.Equal(t, XLSX, d.Format)
	})
}

func TestDetector_Enabled(t *testing.T) {
	d := NewDetector([]Tag{PDF})

	assert.True(t, d.Enabled(CSV))
	assert.False(t, d.Enabled(PDF), "disabled by configuration")
	assert.False(t, d.Enabled(ODS), "detect-only format has no parser")
	assert.False(t, d.Enabled(Unknown))

	exts := NewDetector(nil).ActiveExtensions()
	assert.Contains(t, exts, ".csv")
	assert.Contains(t, exts, ".qbo")
	assert.NotContains(t, exts, ".ods")
}
