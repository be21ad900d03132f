package format

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"
)

// Confidence grades how trustworthy a detection is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Source records which signal produced the detection.
type Source string

const (
	SourceExtension   Source = "extension"
	SourceMagic       Source = "magic"
	SourceContentType Source = "content_type"
	SourceNone        Source = "none"
)

// Detection is the detector's result. It is a pure value; Unknown is a
// normal terminal outcome, not an error.
type Detection struct {
	Format     Tag
	Confidence Confidence
	Source     Source
}

// octetStream is what browsers send when they have no idea; matching on it
// would classify everything, so it is skipped.
const octetStream = "application/octet-stream"

// Detect classifies an upload from its filename, declared content type and
// leading bytes, in strict priority order: extension, then magic bytes,
// then content type. Declared content types rank last because clients
// routinely mis-report them. Detect never fails; all arguments are optional.
func Detect(filename, contentType string, prefix []byte) Detection {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if tag, ok := byExtension[ext]; ok {
			return Detection{Format: tag, Confidence: ConfidenceHigh, Source: SourceExtension}
		}
	}

	if len(prefix) >= 4 {
		if tag, ok := matchMagic(prefix); ok {
			return Detection{Format: tag, Confidence: ConfidenceHigh, Source: SourceMagic}
		}
	}

	if ct := normalizeContentType(contentType); ct != "" && ct != octetStream {
		if tag, ok := byContentType[ct]; ok {
			return Detection{Format: tag, Confidence: ConfidenceMedium, Source: SourceContentType}
		}
	}

	return Detection{Format: Unknown, Confidence: ConfidenceLow, Source: SourceNone}
}

func matchMagic(prefix []byte) (Tag, bool) {
	for _, p := range registry {
		for _, magic := range p.Magic {
			if !bytes.HasPrefix(prefix, magic) {
				continue
			}
			if bytes.Equal(magic, zipMagic) {
				return classifyZip(prefix), true
			}
			return p.Tag, true
		}
	}
	return Unknown, false
}

// classifyZip decides between the ZIP-container formats. When the caller
// handed over enough bytes to read the archive, its entry names settle the
// question; otherwise a raw scan for the characteristic markers is the best
// available signal. XLSX is the overwhelmingly more common upload and is
// the default.
func classifyZip(data []byte) Tag {
	if r, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		for _, f := range r.File {
			switch {
			case f.Name == "mimetype":
				rc, err := f.Open()
				if err != nil {
					continue
				}
				buf := make([]byte, 128)
				n, _ := rc.Read(buf)
				rc.Close()
				if bytes.Contains(buf[:n], []byte("opendocument.spreadsheet")) {
					return ODS
				}
			case strings.HasPrefix(f.Name, "xl/") || f.Name == "[Content_Types].xml":
				return XLSX
			}
		}
	}

	if bytes.Contains(data, []byte("opendocument.spreadsheet")) {
		return ODS
	}
	return XLSX
}

func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	// Strip parameters such as "; charset=utf-8".
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// Detector layers deployment-level enablement on top of the static
// registry. The registry itself never changes; only the disabled set varies
// per deployment. Detector is the single source of truth other components
// query for "is format X currently enabled."
type Detector struct {
	disabled map[Tag]struct{}
}

// NewDetector builds a detector with the given formats disabled. Tags that
// do not exist in the registry are ignored.
func NewDetector(disabled []Tag) *Detector {
	d := &Detector{disabled: make(map[Tag]struct{}, len(disabled))}
	for _, tag := range disabled {
		d.disabled[tag] = struct{}{}
	}
	return d
}

// Detect runs the package-level detection chain.
func (d *Detector) Detect(filename, contentType string, prefix []byte) Detection {
	return Detect(filename, contentType, prefix)
}

// Enabled reports whether a format is parseable in this deployment: it must
// both have a parser and not be disabled by configuration.
func (d *Detector) Enabled(tag Tag) bool {
	if !ParseSupported(tag) {
		return false
	}
	_, off := d.disabled[tag]
	return !off
}

// ActiveExtensions returns the extensions of every enabled format, for
// upload-form display.
func (d *Detector) ActiveExtensions() []string {
	var exts []string
	for _, p := range registry {
		if d.Enabled(p.Tag) {
			exts = append(exts, p.Extensions...)
		}
	}
	return exts
}
