package querylog

import (
	"reflect"
	"strings"
	"testing"

	"github.com/studiowebux/sqlstress/stresstest"
)

// TestDefaultRules tests the built-in rule set is internally consistent
func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	if len(rules.Ignore) == 0 {
		t.Error("Expected default ignore patterns")
	}
	if len(rules.SystemSchemas) == 0 {
		t.Error("Expected default system schema patterns")
	}
	if rules.MinLength != 10 {
		t.Errorf("Expected min length 10, got: %d", rules.MinLength)
	}

	if _, err := New(rules); err != nil {
		t.Fatalf("Failed to compile default rules: %v", err)
	}
}

// TestParseRules_Overlay tests partial documents keep the remaining defaults
func TestParseRules_Overlay(t *testing.T) {
	doc := `
min_length: 25
read_keywords:
  - SELECT
`
	rules, err := ParseRules([]byte(doc))
	if err != nil {
		t.Fatalf("Failed to parse rules: %v", err)
	}

	if rules.MinLength != 25 {
		t.Errorf("Expected min length 25, got: %d", rules.MinLength)
	}
	if len(rules.ReadKeywords) != 1 || rules.ReadKeywords[0] != "SELECT" {
		t.Errorf("Expected read keywords overridden, got: %v", rules.ReadKeywords)
	}

	defaults := DefaultRules()
	if !reflect.DeepEqual(rules.Ignore, defaults.Ignore) {
		t.Error("Expected ignore patterns to keep their defaults")
	}
	if !reflect.DeepEqual(rules.WriteKeywords, defaults.WriteKeywords) {
		t.Error("Expected write keywords to keep their defaults")
	}
}

// TestParseRules_Invalid tests malformed YAML is rejected
func TestParseRules_Invalid(t *testing.T) {
	if _, err := ParseRules([]byte("min_length: [not a number")); err == nil {
		t.Error("Expected error for malformed YAML, got nil")
	}
}

// TestRules_RoundTrip tests Encode output parses back to the same rules
func TestRules_RoundTrip(t *testing.T) {
	original := DefaultRules()
	original.MinLength = 15
	original.Ignore = append(original.Ignore, "FLUSH PRIVILEGES")

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("Failed to encode rules: %v", err)
	}

	parsed, err := ParseRules(data)
	if err != nil {
		t.Fatalf("Failed to parse encoded rules: %v", err)
	}

	if !reflect.DeepEqual(parsed, original) {
		t.Errorf("Round trip changed rules:\noriginal: %+v\nparsed:   %+v", original, parsed)
	}
}

// TestNew_BadPattern tests invalid regexps are reported with the pattern
func TestNew_BadPattern(t *testing.T) {
	rules := DefaultRules()
	rules.Ignore = append(rules.Ignore, "(unclosed")

	if _, err := New(rules); err == nil {
		t.Error("Expected error for bad ignore pattern, got nil")
	} else if !strings.Contains(err.Error(), "(unclosed") {
		t.Errorf("Expected pattern in error, got: %v", err)
	}

	rules = DefaultRules()
	rules.SystemSchemas = append(rules.SystemSchemas, "[bad")

	if _, err := New(rules); err == nil {
		t.Error("Expected error for bad system pattern, got nil")
	}
}

// TestNew_CustomKeywords tests classification follows the supplied rules
func TestNew_CustomKeywords(t *testing.T) {
	rules := DefaultRules()
	rules.ReadKeywords = []string{"FETCH"}
	rules.WriteKeywords = []string{"STORE"}

	e, err := New(rules)
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	if got := e.Classify("FETCH next 10 FROM cur"); got != stresstest.KindRead {
		t.Errorf("Expected read, got: %q", got)
	}
	if got := e.Classify("STORE INTO t VALUES (1)"); got != stresstest.KindWrite {
		t.Errorf("Expected write, got: %q", got)
	}
	if got := e.Classify("SELECT id FROM t"); got != stresstest.KindUnknown {
		t.Errorf("Expected unknown for unlisted keyword, got: %q", got)
	}
}
