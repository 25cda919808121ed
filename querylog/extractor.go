// Package querylog extracts replayable SQL statements from MySQL general
// query logs. It parses the log's event lines, reassembles multi-line
// statements, drops session noise and internal-schema traffic, and
// classifies what remains as read or write for the stress engine.
package querylog

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/studiowebux/sqlstress/stresstest"
)

// eventPattern matches a general log event line: timestamp, thread id,
// event verb, rest of line. A Query event starts a statement; any other
// verb (Connect, Quit, Init DB, Prepare, ...) terminates the pending one.
var eventPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z?\s+\d+\s+(\w+)\s*(.*)$`)

const maxLogLine = 1024 * 1024

// Stats counts every completed statement the extractor processed, by
// outcome. Emitted records can be fewer than Read+Write+Unknown when a
// kind filter or statement limit is set.
type Stats struct {
	Read    int `json:"read"`
	Write   int `json:"write"`
	Unknown int `json:"unknown"`
	Ignored int `json:"ignored"`
	System  int `json:"system"`
}

// Total returns the number of completed statements processed.
func (s Stats) Total() int {
	return s.Read + s.Write + s.Unknown + s.Ignored + s.System
}

// Extractor turns a general query log into classified query records.
// Configure the exported fields before calling Extract; an Extractor is
// safe for concurrent use once configured.
type Extractor struct {
	// MaxStatements stops extraction once this many records have been
	// emitted. Zero means unlimited.
	MaxStatements int

	// OnlyKind, when set, emits only statements of that kind. The counters
	// still cover everything seen.
	OnlyKind stresstest.QueryKind

	rules  Rules
	ignore []*regexp.Regexp
	system []*regexp.Regexp
	read   map[string]bool
	write  map[string]bool
}

// New compiles the rule set into an extractor.
func New(rules Rules) (*Extractor, error) {
	e := &Extractor{
		rules: rules,
		read:  make(map[string]bool, len(rules.ReadKeywords)),
		write: make(map[string]bool, len(rules.WriteKeywords)),
	}
	for _, pattern := range rules.Ignore {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}
		e.ignore = append(e.ignore, re)
	}
	for _, pattern := range rules.SystemSchemas {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			return nil, fmt.Errorf("system pattern %q: %w", pattern, err)
		}
		e.system = append(e.system, re)
	}
	for _, kw := range rules.ReadKeywords {
		e.read[strings.ToUpper(kw)] = true
	}
	for _, kw := range rules.WriteKeywords {
		e.write[strings.ToUpper(kw)] = true
	}
	return e, nil
}

// Default returns an extractor with the canonical MySQL rule set.
func Default() *Extractor {
	e, err := New(DefaultRules())
	if err != nil {
		panic("querylog: default rules do not compile: " + err.Error())
	}
	return e
}

// Extract scans a general query log and returns the surviving statements
// in log order, together with counters for everything it saw. The reader
// is consumed line by line; statements spanning multiple lines are
// reassembled newline-joined.
func (e *Extractor) Extract(r io.Reader) ([]stresstest.QueryRecord, Stats, error) {
	var (
		records []stresstest.QueryRecord
		stats   Stats
		pending []string
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		stmt := strings.TrimSpace(strings.Join(pending, "\n"))
		pending = pending[:0]
		if stmt == "" {
			return
		}
		switch {
		case e.IsSystem(stmt):
			stats.System++
		case e.ShouldIgnore(stmt):
			stats.Ignored++
		default:
			kind := e.Classify(stmt)
			switch kind {
			case stresstest.KindRead:
				stats.Read++
			case stresstest.KindWrite:
				stats.Write++
			default:
				stats.Unknown++
			}
			if e.OnlyKind != "" && kind != e.OnlyKind {
				return
			}
			if e.MaxStatements > 0 && len(records) >= e.MaxStatements {
				return
			}
			records = append(records, stresstest.QueryRecord{Text: stmt, Kind: kind})
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)

	for scanner.Scan() {
		if e.MaxStatements > 0 && len(records) >= e.MaxStatements {
			return records, stats, nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := eventPattern.FindStringSubmatch(line); m != nil {
			flush()
			if m[1] == "Query" {
				// A start fragment that is already ignorable never begins
				// a statement, so its continuations are dropped with it.
				fragment := strings.TrimSpace(m[2])
				if fragment != "" && !e.ShouldIgnore(fragment) {
					pending = append(pending, fragment)
				}
			}
			continue
		}

		if len(pending) > 0 {
			pending = append(pending, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, Stats{}, fmt.Errorf("scan query log: %w", err)
	}

	flush()
	return records, stats, nil
}

// ShouldIgnore reports whether a statement is session noise: shorter than
// MinLength or matching any ignore pattern.
func (e *Extractor) ShouldIgnore(stmt string) bool {
	trimmed := strings.TrimSpace(stmt)
	if len(trimmed) < e.rules.MinLength {
		return true
	}
	for _, re := range e.ignore {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// IsSystem reports whether a statement touches an internal schema.
func (e *Extractor) IsSystem(stmt string) bool {
	for _, re := range e.system {
		if re.MatchString(stmt) {
			return true
		}
	}
	return false
}

// Classify maps a statement to its kind by its first keyword.
func (e *Extractor) Classify(stmt string) stresstest.QueryKind {
	fields := strings.Fields(strings.ToUpper(stmt))
	if len(fields) == 0 {
		return stresstest.KindUnknown
	}
	switch {
	case e.read[fields[0]]:
		return stresstest.KindRead
	case e.write[fields[0]]:
		return stresstest.KindWrite
	default:
		return stresstest.KindUnknown
	}
}
