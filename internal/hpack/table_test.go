package hpack

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTable(t *testing.T) {
	table := NewHeaderTable(DefaultMaxDynamicTableSize)

	cases := map[uint64]HeaderField{
		1:  {Name: ":authority"},
		2:  {Name: ":method", Value: "GET"},
		4:  {Name: ":path", Value: "/"},
		8:  {Name: ":status", Value: "200"},
		16: {Name: "accept-encoding", Value: "gzip, deflate"},
		61: {Name: "www-authenticate"},
	}
	for index, want := range cases {
		got, err := table.Header(index)
		require.NoError(t, err)
		assert.Equal(t, want, got, "index %d", index)
	}
}

func TestHeaderInvalidIndex(t *testing.T) {
	table := NewHeaderTable(DefaultMaxDynamicTableSize)

	_, err := table.Header(0)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = table.Header(62)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.ErrorIs(t, err, ErrHeaderComp)

	require.NoError(t, table.Add("custom-key", "custom-header"))
	_, err = table.Header(62)
	assert.NoError(t, err)
	_, err = table.Header(63)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestAddNewestFirst(t *testing.T) {
	table := NewHeaderTable(DefaultMaxDynamicTableSize)
	require.NoError(t, table.Add("first", "1"))
	require.NoError(t, table.Add("second", "2"))

	hf, err := table.Header(62)
	require.NoError(t, err)
	assert.Equal(t, "second", hf.Name)

	hf, err = table.Header(63)
	require.NoError(t, err)
	assert.Equal(t, "first", hf.Name)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, uint64(6+1+32+5+1+32), table.Size())
}

func TestEvictionKeepsSizeBelowMaximum(t *testing.T) {
	table := NewHeaderTable(DefaultMaxDynamicTableSize)
	table.SetMaxSize(100)

	// each entry accounts for 1+7+32 = 40 octets
	for i := 0; i < 10; i++ {
		name := string(rune('a' + i))
		require.NoError(t, table.Add(name, "1234567"))
		assert.Less(t, table.Size(), uint64(100), "after add %d", i)

		newest, err := table.Header(62)
		require.NoError(t, err)
		assert.Equal(t, name, newest.Name)
	}

	// two entries fit below 100, the third would reach 120
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"j", "i"}, names(table.Entries()))
}

func TestEvictionAtExactBoundary(t *testing.T) {
	table := NewHeaderTable(100)
	require.NoError(t, table.Add("n", strings.Repeat("v", 27))) // 60
	require.NoError(t, table.Add("m", strings.Repeat("v", 7)))  // 40, total would be exactly 100

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, uint64(40), table.Size())
	assert.Equal(t, []string{"m"}, names(table.Entries()))
}

func TestAddEntryTooLarge(t *testing.T) {
	table := NewHeaderTable(100)
	require.NoError(t, table.Add("keep", "me"))

	err := table.Add("n", strings.Repeat("v", 67)) // 100
	assert.ErrorIs(t, err, ErrEntryTooLarge)
	assert.ErrorIs(t, err, ErrHeaderComp)

	assert.Equal(t, []string{"keep"}, names(table.Entries()))
}

func TestSetMaxSizeEvictsOldest(t *testing.T) {
	table := NewHeaderTable(DefaultMaxDynamicTableSize)
	require.NoError(t, table.Add("a", "1234567"))
	require.NoError(t, table.Add("b", "1234567"))
	require.NoError(t, table.Add("c", "1234567"))

	table.SetMaxSize(81)
	assert.Equal(t, []string{"c", "b"}, names(table.Entries()))
	assert.Equal(t, uint32(81), table.MaxSize())

	table.SetMaxSize(80)
	assert.Equal(t, []string{"c"}, names(table.Entries()))

	table.SetMaxSize(0)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, uint64(0), table.Size())

	assert.ErrorIs(t, table.Add("a", ""), ErrEntryTooLarge)
}

func TestFind(t *testing.T) {
	table := NewHeaderTable(DefaultMaxDynamicTableSize)
	require.NoError(t, table.Add("custom-key", "custom-value"))
	require.NoError(t, table.Add(":method", "GET"))

	cases := []struct {
		name, value    string
		index          uint64
		nameValueMatch bool
	}{
		{":method", "GET", 2, true},
		{":method", "PUT", 2, false},
		{"custom-key", "custom-value", 63, true},
		{"custom-key", "other", 63, false},
		{"www-authenticate", "", 61, true},
		{"x-unknown", "", 0, false},
	}
	for _, tc := range cases {
		index, match := table.Find(tc.name, tc.value)
		assert.Equal(t, tc.index, index, "%s: %s", tc.name, tc.value)
		assert.Equal(t, tc.nameValueMatch, match, "%s: %s", tc.name, tc.value)
	}
}

func TestFindPrefersNewestDynamicEntry(t *testing.T) {
	table := NewHeaderTable(DefaultMaxDynamicTableSize)
	require.NoError(t, table.Add("x-trace", "1"))
	require.NoError(t, table.Add("x-trace", "2"))

	index, match := table.Find("x-trace", "3")
	assert.Equal(t, uint64(62), index)
	assert.False(t, match)

	index, match = table.Find("x-trace", "1")
	assert.Equal(t, uint64(63), index)
	assert.True(t, match)
}

func TestTableGrowsRingBuffer(t *testing.T) {
	table := NewHeaderTable(1 << 20)
	for i := 0; i < 100; i++ {
		require.NoError(t, table.Add(fmt.Sprintf("h%d", i), "v"))
	}

	require.Equal(t, 100, table.Len())
	for i := 0; i < 100; i++ {
		hf, err := table.Header(uint64(62 + i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("h%d", 99-i), hf.Name)
	}
}

func names(fields []HeaderField) []string {
	out := make([]string, len(fields))
	for i, hf := range fields {
		out[i] = hf.Name
	}
	return out
}
