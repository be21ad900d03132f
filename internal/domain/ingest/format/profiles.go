// Package format classifies untrusted uploaded bytes into one of the known
// document formats. Detection is a total function: any input, including an
// empty one, yields a result.
package format

// Tag identifies one upload format.
type Tag string

const (
	CSV     Tag = "csv"
	XLSX    Tag = "xlsx"
	XLS     Tag = "xls"
	TSV     Tag = "tsv"
	TXT     Tag = "txt"
	QBO     Tag = "qbo"
	OFX     Tag = "ofx"
	IIF     Tag = "iif"
	PDF     Tag = "pdf"
	ODS     Tag = "ods"
	Unknown Tag = "unknown"
)

// Profile describes how one format is recognized and whether the pipeline
// can parse it. Profiles are immutable process-lifetime records; the
// registry below is built once and never mutated.
type Profile struct {
	Tag            Tag
	Label          string
	Extensions     []string
	ContentTypes   []string
	Magic          [][]byte
	ParseSupported bool
}

// zipMagic is shared by every ZIP-container format (XLSX and ODS); matches
// on it are disambiguated by inspecting the archive's entries.
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

var registry = []Profile{
	{
		Tag:            CSV,
		Label:          "Comma-separated values",
		Extensions:     []string{".csv"},
		ContentTypes:   []string{"text/csv", "application/csv", "application/vnd.ms-excel.csv"},
		ParseSupported: true,
	},
	{
		Tag:            XLSX,
		Label:          "Excel workbook",
		Extensions:     []string{".xlsx"},
		ContentTypes:   []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		Magic:          [][]byte{zipMagic},
		ParseSupported: true,
	},
	{
		Tag:            XLS,
		Label:          "Excel 97-2003 workbook",
		Extensions:     []string{".xls"},
		ContentTypes:   []string{"application/vnd.ms-excel"},
		Magic:          [][]byte{{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}},
		ParseSupported: true,
	},
	{
		Tag:            TSV,
		Label:          "Tab-separated values",
		Extensions:     []string{".tsv", ".tab"},
		ContentTypes:   []string{"text/tab-separated-values"},
		ParseSupported: true,
	},
	{
		Tag:            TXT,
		Label:          "Plain text export",
		Extensions:     []string{".txt"},
		ContentTypes:   []string{"text/plain"},
		ParseSupported: true,
	},
	{
		Tag:            QBO,
		Label:          "QuickBooks Web Connect",
		Extensions:     []string{".qbo"},
		ContentTypes:   []string{"application/vnd.intu.qbo"},
		ParseSupported: true,
	},
	{
		Tag:            OFX,
		Label:          "Open Financial Exchange",
		Extensions:     []string{".ofx", ".qfx"},
		ContentTypes:   []string{"application/x-ofx", "application/vnd.intu.qfx"},
		Magic:          [][]byte{[]byte("OFXHEADER")},
		ParseSupported: true,
	},
	{
		Tag:            IIF,
		Label:          "QuickBooks IIF export",
		Extensions:     []string{".iif"},
		ContentTypes:   []string{"application/qbooks", "text/iif"},
		Magic:          [][]byte{[]byte("!TRNS"), []byte("!HDR")},
		ParseSupported: true,
	},
	{
		Tag:            PDF,
		Label:          "PDF document",
		Extensions:     []string{".pdf"},
		ContentTypes:   []string{"application/pdf", "application/x-pdf"},
		Magic:          [][]byte{[]byte("%PDF-")},
		ParseSupported: true,
	},
	{
		Tag:            ODS,
		Label:          "OpenDocument spreadsheet",
		Extensions:     []string{".ods"},
		ContentTypes:   []string{"application/vnd.oasis.opendocument.spreadsheet"},
		Magic:          [][]byte{zipMagic},
		ParseSupported: false,
	},
}

// Derived lookup maps, computed once at startup from the registry.
var (
	profilesByTag = make(map[Tag]Profile, len(registry))
	byExtension   = make(map[string]Tag)
	byContentType = make(map[string]Tag)
)

func init() {
	for _, p := range registry {
		profilesByTag[p.Tag] = p
		for _, ext := range p.Extensions {
			byExtension[ext] = p.Tag
		}
		for _, ct := range p.ContentTypes {
			byContentType[ct] = p.Tag
		}
	}
}

// Profiles returns a copy of the registry, in declaration order.
func Profiles() []Profile {
	out := make([]Profile, len(registry))
	copy(out, registry)
	return out
}

// ProfileFor looks up the profile for a tag. The boolean is false for
// Unknown and for tags with no registered profile.
func ProfileFor(tag Tag) (Profile, bool) {
	p, ok := profilesByTag[tag]
	return p, ok
}

// ParseSupported reports whether the pipeline has a parser for the tag.
func ParseSupported(tag Tag) bool {
	p, ok := profilesByTag[tag]
	return ok && p.ParseSupported
}
