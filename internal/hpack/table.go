package hpack

import (
	"fmt"
	"math/bits"
)

const DefaultMaxDynamicTableSize = 4096

// HeaderTable is the combined index space of RFC 7541 §2.3.3: indices
// 1..61 address the static table, 62 onwards the dynamic table, newest first.
//
// The dynamic table is a ring buffer. Its accounted size stays strictly below
// maxSize whenever it holds entries.
type HeaderTable struct {
	entries []HeaderField
	head    int // slot of the newest entry
	count   int
	size    uint64
	maxSize uint32
}

func NewHeaderTable(maxSize uint32) *HeaderTable {
	capacity := int(maxSize / 64)
	if capacity < 16 {
		capacity = 16
	}

	return &HeaderTable{
		entries: make([]HeaderField, capacity),
		maxSize: maxSize,
	}
}

func (t *HeaderTable) MaxSize() uint32 {
	return t.maxSize
}

// SetMaxSize changes the bound and evicts oldest entries until the table fits.
func (t *HeaderTable) SetMaxSize(maxSize uint32) {
	t.maxSize = maxSize
	for t.count > 0 && t.size >= uint64(t.maxSize) {
		t.evictOldest()
	}
}

// Size is the accounted size of the dynamic table.
func (t *HeaderTable) Size() uint64 {
	return t.size
}

// Len is the number of dynamic entries.
func (t *HeaderTable) Len() int {
	return t.count
}

// Add inserts name/value as the newest dynamic entry. An entry that cannot fit
// below the bound even in an empty table is rejected and the table is left as is.
func (t *HeaderTable) Add(name, value string) error {
	hf := HeaderField{Name: name, Value: value}
	entrySize := hf.Size()
	if entrySize >= uint64(t.maxSize) {
		return fmt.Errorf("%w: %d octets, table maximum %d", ErrEntryTooLarge, entrySize, t.maxSize)
	}

	for t.count > 0 && t.size+entrySize >= uint64(t.maxSize) {
		t.evictOldest()
	}

	total, carry := bits.Add64(t.size, entrySize, 0)
	if carry != 0 {
		return ErrTableSizeOverflow
	}

	if t.count == len(t.entries) {
		t.grow()
	}
	t.head = (t.head - 1 + len(t.entries)) % len(t.entries)
	t.entries[t.head] = hf
	t.count++
	t.size = total

	return nil
}

// Header resolves a 1-based combined index.
func (t *HeaderTable) Header(index uint64) (HeaderField, error) {
	if index == 0 {
		return HeaderField{}, fmt.Errorf("%w: 0", ErrInvalidIndex)
	}
	if index <= StaticTableSize {
		return staticTable[index-1], nil
	}

	dynamicIndex := index - StaticTableSize - 1
	if dynamicIndex >= uint64(t.count) {
		return HeaderField{}, fmt.Errorf("%w: %d (dynamic table holds %d entries)", ErrInvalidIndex, index, t.count)
	}
	return t.entries[t.slot(int(dynamicIndex))], nil
}

// Find returns the smallest index whose entry matches name and value, or
// failing that the smallest index whose entry matches name. It returns 0 when
// neither exists.
func (t *HeaderTable) Find(name, value string) (index uint64, nameValueMatch bool) {
	if i, ok := staticFieldIndex[staticKey{name, value}]; ok {
		return i, true
	}

	var nameIndex uint64
	if i, ok := staticNameIndex[name]; ok {
		nameIndex = i
	}

	for i := 0; i < t.count; i++ {
		e := t.entries[t.slot(i)]
		if e.Name != name {
			continue
		}
		if e.Value == value {
			return uint64(i) + StaticTableSize + 1, true
		}
		if nameIndex == 0 {
			nameIndex = uint64(i) + StaticTableSize + 1
		}
	}

	return nameIndex, false
}

// Entries copies the dynamic table, newest first.
func (t *HeaderTable) Entries() []HeaderField {
	out := make([]HeaderField, t.count)
	for i := range out {
		out[i] = t.entries[t.slot(i)]
	}
	return out
}

func (t *HeaderTable) slot(i int) int {
	return (t.head + i) % len(t.entries)
}

func (t *HeaderTable) evictOldest() {
	tail := t.slot(t.count - 1)
	t.size -= t.entries[tail].Size()
	t.entries[tail] = HeaderField{}
	t.count--
}

func (t *HeaderTable) grow() {
	entries := make([]HeaderField, len(t.entries)*2)
	for i := 0; i < t.count; i++ {
		entries[i] = t.entries[t.slot(i)]
	}
	t.entries = entries
	t.head = 0
}
