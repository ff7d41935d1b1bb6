package hpack

import "fmt"

// HeaderField is a single name/value pair of a header list.
// NeverIndexed marks fields that must not enter a dynamic table on any hop.
type HeaderField struct {
	Name         string `json:"name"`
	Value        string `json:"value"`
	NeverIndexed bool   `json:"never_indexed,omitempty"`
}

// entryOverhead is the per-entry accounting overhead of RFC 7541 §4.1.
const entryOverhead = 32

const StaticTableSize = 61

func NewHeaderField(name string, value string, neverIndexed bool) HeaderField {
	return HeaderField{
		Name:         name,
		Value:        value,
		NeverIndexed: neverIndexed,
	}
}

// Size is the table accounting size of the field.
func (hf HeaderField) Size() uint64 {
	return uint64(len(hf.Name)) + uint64(len(hf.Value)) + entryOverhead
}

// Equal compares name and value only.
func (hf HeaderField) Equal(other HeaderField) bool {
	return hf.Name == other.Name && hf.Value == other.Value
}

func (hf HeaderField) String() string {
	var suffix string
	if hf.NeverIndexed {
		suffix = " (never indexed)"
	}
	return fmt.Sprintf("%s: %s%s", hf.Name, hf.Value, suffix)
}

// staticTable is RFC 7541 Appendix A; staticTable[i] is combined index i+1.
var staticTable = [StaticTableSize]HeaderField{
	{Name: ":authority"},
	{Name: ":method", Value: "GET"},
	{Name: ":method", Value: "POST"},
	{Name: ":path", Value: "/"},
	{Name: ":path", Value: "/index.html"},
	{Name: ":scheme", Value: "http"},
	{Name: ":scheme", Value: "https"},
	{Name: ":status", Value: "200"},
	{Name: ":status", Value: "204"},
	{Name: ":status", Value: "206"},
	{Name: ":status", Value: "304"},
	{Name: ":status", Value: "400"},
	{Name: ":status", Value: "404"},
	{Name: ":status", Value: "500"},
	{Name: "accept-charset"},
	{Name: "accept-encoding", Value: "gzip, deflate"},
	{Name: "accept-language"},
	{Name: "accept-ranges"},
	{Name: "accept"},
	{Name: "access-control-allow-origin"},
	{Name: "age"},
	{Name: "allow"},
	{Name: "authorization"},
	{Name: "cache-control"},
	{Name: "content-disposition"},
	{Name: "content-encoding"},
	{Name: "content-language"},
	{Name: "content-length"},
	{Name: "content-location"},
	{Name: "content-range"},
	{Name: "content-type"},
	{Name: "cookie"},
	{Name: "date"},
	{Name: "etag"},
	{Name: "expect"},
	{Name: "expires"},
	{Name: "from"},
	{Name: "host"},
	{Name: "if-match"},
	{Name: "if-modified-since"},
	{Name: "if-none-match"},
	{Name: "if-range"},
	{Name: "if-unmodified-since"},
	{Name: "last-modified"},
	{Name: "link"},
	{Name: "location"},
	{Name: "max-forwards"},
	{Name: "proxy-authenticate"},
	{Name: "proxy-authorization"},
	{Name: "range"},
	{Name: "referer"},
	{Name: "refresh"},
	{Name: "retry-after"},
	{Name: "server"},
	{Name: "set-cookie"},
	{Name: "strict-transport-security"},
	{Name: "transfer-encoding"},
	{Name: "user-agent"},
	{Name: "vary"},
	{Name: "via"},
	{Name: "www-authenticate"},
}

type staticKey struct {
	name  string
	value string
}

// Lowest combined index per name and per name/value pair.
var (
	staticNameIndex  = make(map[string]uint64, StaticTableSize)
	staticFieldIndex = make(map[staticKey]uint64, StaticTableSize)
)

func init() {
	for i := len(staticTable) - 1; i >= 0; i-- {
		hf := staticTable[i]
		staticNameIndex[hf.Name] = uint64(i + 1)
		staticFieldIndex[staticKey{hf.Name, hf.Value}] = uint64(i + 1)
	}
}
