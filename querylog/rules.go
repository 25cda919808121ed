package querylog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rules configures which statements the extractor drops and how the rest
// are classified. Ignore and SystemSchemas are regular expressions applied
// case-insensitively anywhere in the statement.
type Rules struct {
	Ignore        []string `yaml:"ignore"`
	SystemSchemas []string `yaml:"system_schemas"`

	// ReadKeywords and WriteKeywords classify a statement by its first
	// token, compared upper-cased.
	ReadKeywords  []string `yaml:"read_keywords"`
	WriteKeywords []string `yaml:"write_keywords"`

	// MinLength drops statements shorter than this many characters.
	MinLength int `yaml:"min_length"`
}

// DefaultRules returns the canonical rule set for MySQL general logs:
// session and transaction-control noise is ignored, statements against
// internal schemas (including RDS heartbeat tables) are marked system.
func DefaultRules() Rules {
	return Rules{
		Ignore: []string{
			`SET SESSION sql_mode`,
			`SET NAMES`,
			`SET @@`,
			`SET sql_mode`,
			`SHOW`,
			`SELECT @@`,
			`SET character_set`,
			`SET FOREIGN_KEY_CHECKS`,
			`SET UNIQUE_CHECKS`,
			`SET AUTOCOMMIT`,
			`START TRANSACTION`,
			`COMMIT`,
			`ROLLBACK`,
		},
		SystemSchemas: []string{
			`\bINFORMATION_SCHEMA\b`,
			`\bPERFORMANCE_SCHEMA\b`,
			`\bSYS\b\.`,
			`\bMYSQL\b\.`,
			`\bHEARTBEAT\b\.`,
			`\bRDS_HEARTBEAT\w*\b`,
			`\bHEARTBEAT\w*\b`,
			`FROM\s+SYS\b`,
			`JOIN\s+SYS\b`,
			`FROM\s+MYSQL\b`,
			`JOIN\s+MYSQL\b`,
			`FROM\s+HEARTBEAT\b`,
			`JOIN\s+HEARTBEAT\b`,
		},
		ReadKeywords: []string{
			"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "ANALYZE",
		},
		WriteKeywords: []string{
			"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER",
			"TRUNCATE", "REPLACE", "MERGE", "UPSERT",
		},
		MinLength: 10,
	}
}

// ParseRules overlays a YAML document onto the default rule set; fields
// absent from the document keep their defaults.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	return rules, nil
}

// Encode renders the rule set as YAML.
func (r Rules) Encode() ([]byte, error) {
	return yaml.Marshal(r)
}
