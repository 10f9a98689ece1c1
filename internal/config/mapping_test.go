package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadMappingAndLookup ensures entries resolve with defaults applied.
func TestLoadMappingAndLookup(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "mapping.yaml", `
notes:
  60:
    product_id: s1018231
    product_name: Oat milk
  62:
    product_id: s2044120
    amount: 2
    confirmation: single_tap
defaults:
  amount: 1
  confirmation: double_tap
behavior:
  out_of_range_handling: log
`)

	m, err := LoadMapping(path)
	require.NoError(t, err)
	require.True(t, m.LogsUnmappedNotes())

	p := m.Lookup(60)
	require.NotNil(t, p)
	require.Equal(t, "s1018231", p.ProductID)
	require.Equal(t, "Oat milk", p.DisplayName)
	require.Equal(t, 1, p.Amount)
	require.Equal(t, ConfirmationDoubleTap, p.Confirmation)

	p = m.Lookup(62)
	require.NotNil(t, p)
	require.Equal(t, "Product s2044120", p.DisplayName)
	require.Equal(t, 2, p.Amount)
	require.Equal(t, ConfirmationSingleTap, p.Confirmation)

	require.Nil(t, m.Lookup(61))
}

// TestLookupFallsBackToDoubleTap covers a mapping file with no defaults section.
func TestLookupFallsBackToDoubleTap(t *testing.T) {
	t.Parallel()

	m := &Mapping{
		Notes: map[int]NoteMapping{
			64: {ProductID: "s1"},
		},
	}
	require.NoError(t, ValidateMapping(m))

	p := m.Lookup(64)
	require.NotNil(t, p)
	require.Equal(t, 1, p.Amount)
	require.Equal(t, ConfirmationDoubleTap, p.Confirmation)
}

// TestLogsUnmappedNotesIsOptIn ensures unmapped notes are dropped silently
// unless out_of_range_handling explicitly asks for logging.
func TestLogsUnmappedNotesIsOptIn(t *testing.T) {
	t.Parallel()

	m := &Mapping{}
	require.False(t, m.LogsUnmappedNotes())

	m.Behavior.OutOfRangeHandling = "ignore"
	require.False(t, m.LogsUnmappedNotes())

	m.Behavior.OutOfRangeHandling = "log"
	require.True(t, m.LogsUnmappedNotes())
}

// TestValidateMapping rejects bad notes, missing product ids and unknown modes.
func TestValidateMapping(t *testing.T) {
	t.Parallel()

	require.Error(t, ValidateMapping(nil))

	m := &Mapping{Notes: map[int]NoteMapping{130: {ProductID: "s1"}}}
	require.Error(t, ValidateMapping(m))

	m = &Mapping{Notes: map[int]NoteMapping{60: {}}}
	require.Error(t, ValidateMapping(m))

	m = &Mapping{Notes: map[int]NoteMapping{60: {ProductID: "s1", Confirmation: "triple_tap"}}}
	require.Error(t, ValidateMapping(m))
}
