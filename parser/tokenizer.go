// Package parser segments numbered Spanish legal text into the five
// canvas sections of a rental contract.
package parser

import (
	"sort"
	"strings"
)

// HeadingPrefix is the literal that opens every clause heading. The
// match is exact: spacing, accents and the trailing colon must all be
// present or the heading is skipped.
const HeadingPrefix = "CLÁUSULA "

// DefaultOrdinals is the closed vocabulary of clause ordinals, in
// legal order from PRIMERA to TRIGÉSIMA.
var DefaultOrdinals = []string{
	"PRIMERA", "SEGUNDA", "TERCERA", "CUARTA", "QUINTA",
	"SEXTA", "SÉPTIMA", "OCTAVA", "NOVENA", "DÉCIMA",
	"UNDÉCIMA", "DUODÉCIMA", "DECIMOTERCERA", "DECIMOCUARTA", "DECIMOQUINTA",
	"DECIMOSEXTA", "DECIMOSÉPTIMA", "DECIMOCTAVA", "DECIMONOVENA",
	"VIGÉSIMA", "VIGÉSIMA PRIMERA", "VIGÉSIMA SEGUNDA", "VIGÉSIMA TERCERA",
	"VIGÉSIMA CUARTA", "VIGÉSIMA QUINTA", "VIGÉSIMA SEXTA", "VIGÉSIMA SÉPTIMA",
	"VIGÉSIMA OCTAVA", "VIGÉSIMA NOVENA", "TRIGÉSIMA",
}

// Clause is one tokenized segment of the document, anchored at a
// recognized heading.
type Clause struct {
	Ordinal string // the matched ordinal token, e.g. "PRIMERA"
	Title   string // heading text after the colon, trimmed
	Body    string // raw text until the next heading or end of input
	Rank    int    // position of the ordinal in the vocabulary
}

// Tokenizer recognizes clause headings from a configurable ordinal
// list. The zero value is not usable; call NewTokenizer.
type Tokenizer struct {
	ordinals []string       // sorted longest-first for matching
	rank     map[string]int // ordinal -> vocabulary position
}

// NewTokenizer builds a tokenizer over the given ordinal vocabulary.
// With no arguments it uses DefaultOrdinals.
func NewTokenizer(ordinals ...string) *Tokenizer {
	if len(ordinals) == 0 {
		ordinals = DefaultOrdinals
	}
	rank := make(map[string]int, len(ordinals))
	for i, o := range ordinals {
		rank[o] = i
	}
	sorted := make([]string, len(ordinals))
	copy(sorted, ordinals)
	// Longest first so VIGÉSIMA PRIMERA wins over VIGÉSIMA.
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	return &Tokenizer{ordinals: sorted, rank: rank}
}

// heading is an internal match of HeadingPrefix + ordinal + ":".
type heading struct {
	start    int // offset of HeadingPrefix
	bodyFrom int // offset just past the heading line
	ordinal  string
	title    string
}

// Tokenize splits text into clauses, one per recognized heading.
// Text before the first heading is discarded; with no headings at all
// the result is empty.
func (t *Tokenizer) Tokenize(text string) []Clause {
	headings := t.findHeadings(text)
	clauses := make([]Clause, 0, len(headings))
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		clauses = append(clauses, Clause{
			Ordinal: h.ordinal,
			Title:   h.title,
			Body:    text[h.bodyFrom:end],
			Rank:    t.rank[h.ordinal],
		})
	}
	return clauses
}

// findHeadings scans for headings anchored at the start of a line.
func (t *Tokenizer) findHeadings(text string) []heading {
	var out []heading
	offset := 0
	for {
		i := strings.Index(text[offset:], HeadingPrefix)
		if i < 0 {
			return out
		}
		abs := offset + i
		if abs > 0 && text[abs-1] != '\n' {
			offset = abs + len(HeadingPrefix)
			continue
		}
		h, ok := t.matchHeading(text, abs)
		if !ok {
			offset = abs + len(HeadingPrefix)
			continue
		}
		out = append(out, h)
		offset = h.bodyFrom
	}
}

// matchHeading checks whether the text at start carries a known
// ordinal followed by a colon.
func (t *Tokenizer) matchHeading(text string, start int) (heading, bool) {
	rest := text[start+len(HeadingPrefix):]
	for _, ord := range t.ordinals {
		if !strings.HasPrefix(rest, ord+":") {
			continue
		}
		lineEnd := strings.IndexByte(rest, '\n')
		var rawTitle string
		bodyFrom := start + len(HeadingPrefix) + len(ord) + 1
		if lineEnd < 0 {
			rawTitle = rest[len(ord)+1:]
			bodyFrom += len(rawTitle)
		} else {
			rawTitle = rest[len(ord)+1 : lineEnd]
			bodyFrom += len(rawTitle) + 1 // consume the newline
		}
		return heading{
			start:    start,
			bodyFrom: bodyFrom,
			ordinal:  ord,
			title:    strings.TrimSpace(rawTitle),
		}, true
	}
	return heading{}, false
}
