// Package jsonrepair extracts a JSON object from LLM text that may be
// wrapped in prose or markdown fences, and may be truncated mid-element,
// and repairs the common failure modes before handing a strictly-valid
// JSON object back to the caller.
//
// Grounded on codenerd's internal/perception/transducer_llm.go::extractJSON
// (a bare brace counter with no string-awareness) and extended with the
// string/escape tracking and repair passes spec.md §4.B requires.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/oemforge/oemforge/internal/obslog"
)

// ErrNoJSONObject is returned when the text contains no '{' at all.
var ErrNoJSONObject = errors.New("jsonrepair: no JSON object found in text")

// ErrUnrepairable is returned when fence-stripping, brace-depth slicing,
// trailing-comma repair, and truncation repair all fail to produce
// strictly-valid JSON.
var ErrUnrepairable = errors.New("jsonrepair: could not repair response into valid JSON")

var fencePattern = regexp.MustCompile("```(?:json)?")

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// Extract runs the full repair pipeline on raw LLM text and returns the
// extracted object as raw, strictly-valid JSON bytes.
func Extract(raw string) (json.RawMessage, error) {
	timer := obslog.StartTimer(obslog.CategoryJSONRepair, "Extract")
	defer timer.Stop()
	log := obslog.Get(obslog.CategoryJSONRepair)

	stripped := stripFences(raw)

	start := strings.IndexByte(stripped, '{')
	if start == -1 {
		log.Warn("no '{' found in response (len=%d)", len(raw))
		return nil, ErrNoJSONObject
	}

	candidate, balanced := scanBalancedObject(stripped, start)

	if balanced {
		if msg, err := strictParse(candidate); err == nil {
			return msg, nil
		}
		if repaired, err := strictParse(repairTrailingCommas(candidate)); err == nil {
			log.Debug("trailing-comma repair succeeded on a balanced candidate")
			return repaired, nil
		}
	}

	repaired := repairTruncation(candidate)
	repaired = repairTrailingCommas(repaired)
	if msg, err := strictParse(repaired); err == nil {
		log.Debug("truncation repair succeeded, repaired len=%d", len(repaired))
		return msg, nil
	}

	log.Error("all repair strategies exhausted, candidate len=%d", len(candidate))
	return nil, ErrUnrepairable
}

func strictParse(candidate string) (json.RawMessage, error) {
	var v interface{}
	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.RawMessage(candidate), nil
}

// stripFences removes markdown code-fence markers (``` and ```json) from
// the text; it leaves everything else, including surrounding prose, intact
// for the brace scanner to skip over.
func stripFences(s string) string {
	return fencePattern.ReplaceAllString(s, "")
}

// scanBalancedObject scans forward from start tracking curly-brace depth
// while skipping over string-literal contents (so braces inside a quoted
// string never affect depth). It returns the candidate slice and whether
// depth returned to zero (a structurally complete object) before the text
// ran out.
func scanBalancedObject(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return s[start:], false
}

// repairTrailingCommas removes a ',' that immediately precedes (modulo
// whitespace) a closing '}' or ']'.
func repairTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// repairTruncation recovers from a response cut off mid-element: if the
// candidate ends inside an open string, it is truncated back to the last
// safe element boundary, then any unclosed '{'/'[' are closed in reverse
// order they were opened.
func repairTruncation(candidate string) string {
	s := candidate
	if endsInsideString(s) {
		s = truncateToLastSafeBoundary(s)
	}

	stack := unclosedBrackets(s)
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")

	var closers strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			closers.WriteByte('}')
		case '[':
			closers.WriteByte(']')
		}
	}
	return s + closers.String()
}

// endsInsideString reports whether s, scanned from the start and respecting
// backslash escapes, ends with an odd number of unescaped '"' — i.e. the
// text was cut off while inside a string literal.
func endsInsideString(s string) bool {
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
	}
	return inString
}

// truncateToLastSafeBoundary cuts s back to just after the last "}," it
// contains (a complete array element boundary), falling back to just after
// the last "}" if no "}," exists.
func truncateToLastSafeBoundary(s string) string {
	if i := strings.LastIndex(s, "},"); i != -1 {
		return s[:i+1]
	}
	if i := strings.LastIndex(s, "}"); i != -1 {
		return s[:i+1]
	}
	return s
}

// unclosedBrackets returns the stack of '{'/'[' that were opened outside of
// any string literal and never closed, in the order they were opened.
func unclosedBrackets(s string) []byte {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return stack
}
