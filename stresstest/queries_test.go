package stresstest

import (
	"testing"
)

// TestNewQuerySource_CopiesInput verifies the source is insulated from
// later mutation of the caller's slice
func TestNewQuerySource_CopiesInput(t *testing.T) {
	records := []QueryRecord{
		{Text: "SELECT 1", Kind: KindRead},
		{Text: "DELETE FROM t", Kind: KindWrite},
	}

	source := NewQuerySource(records)
	records[0].Text = "mutated"

	if got := source.At(0).Text; got != "SELECT 1" {
		t.Errorf("Expected original text 'SELECT 1', got: %s", got)
	}

	if source.Len() != 2 {
		t.Errorf("Expected 2 records, got: %d", source.Len())
	}
}

// TestFromStatements verifies raw statements are wrapped as unclassified
func TestFromStatements(t *testing.T) {
	source := FromStatements("SELECT 1", "SELECT 2", "SELECT 3")

	if source.Len() != 3 {
		t.Fatalf("Expected 3 records, got: %d", source.Len())
	}

	for i := 0; i < source.Len(); i++ {
		if source.At(i).Kind != KindUnknown {
			t.Errorf("Record %d: expected kind %q, got: %q", i, KindUnknown, source.At(i).Kind)
		}
	}

	if source.At(1).Text != "SELECT 2" {
		t.Errorf("Expected 'SELECT 2' at index 1, got: %s", source.At(1).Text)
	}
}

// TestQuerySource_NilLen verifies a nil source reports zero length
func TestQuerySource_NilLen(t *testing.T) {
	var source *QuerySource
	if source.Len() != 0 {
		t.Errorf("Expected 0 for nil source, got: %d", source.Len())
	}
}
