package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/model"
)

// SignatureMarker opens the closing block of the document. The match
// is case-sensitive and literal.
const SignatureMarker = "Firmado en dos ejemplares"

// sectionByOrdinal routes the first five clauses to fixed sections.
// Ordinals beyond QUINTA are routed by keyword, see sectionFor.
var sectionByOrdinal = map[string]string{
	"PRIMERA": model.SectionHeader,
	"SEGUNDA": model.SectionConditions,
	"TERCERA": model.SectionConditions,
	"CUARTA":  model.SectionConditions,
	"QUINTA":  model.SectionObligations,
}

// terminationKeywords decide placement of clauses six and beyond.
// The check is case-insensitive over the clause title and body.
var terminationKeywords = []string{
	"terminación",
	"término del contrato",
	"resolución",
	"rescisión",
	"desahucio",
	"vencimiento",
	"restitución del inmueble",
}

var multiNewline = regexp.MustCompile(`\n{3,}`)

// normalize collapses runs of 3+ newlines to exactly 2 and trims
// surrounding whitespace.
func normalize(s string) string {
	return strings.TrimSpace(multiNewline.ReplaceAllString(s, "\n\n"))
}

// sectionFor maps a tokenized clause to its canvas section. Placement
// of clauses beyond QUINTA is heuristic: callers should not rely on a
// fixed section for them.
func sectionFor(c Clause) string {
	if sec, ok := sectionByOrdinal[c.Ordinal]; ok {
		return sec
	}
	probe := strings.ToLower(c.Title + "\n" + c.Body)
	for _, kw := range terminationKeywords {
		if strings.Contains(probe, kw) {
			return model.SectionTermination
		}
	}
	return model.SectionObligations
}

// headingLine rebuilds the clause heading as it appears in the source
// document.
func headingLine(ordinal, title string) string {
	return HeadingPrefix + ordinal + ": " + title
}

// ParseN8nContractToCanvas converts a flat numbered-clause legal
// document into the five-section canvas shape. Unrecognized input
// yields empty sections rather than an error; a missing signature
// block leaves signatures empty.
func ParseN8nContractToCanvas(text string) model.ContractContent {
	return NewTokenizer().ParseToCanvas(text)
}

// ParseToCanvas is ParseN8nContractToCanvas over this tokenizer's
// ordinal vocabulary.
func (t *Tokenizer) ParseToCanvas(text string) model.ContractContent {
	body, signatures := splitSignatureBlock(text)

	var content model.ContractContent
	for _, key := range model.SectionKeys {
		content.Section(key).Title = model.DefaultSectionTitles[key]
	}

	parts := map[string][]string{}
	for _, clause := range t.Tokenize(body) {
		sec := sectionFor(clause)
		parts[sec] = append(parts[sec], headingLine(clause.Ordinal, clause.Title)+"\n"+clause.Body)
	}
	for key, chunks := range parts {
		content.Section(key).Content = normalize(strings.Join(chunks, "\n\n"))
	}
	content.Signatures.Content = normalize(signatures)
	return content
}

// splitSignatureBlock cuts the trailing signature block off the
// document so it is not carried inside the last clause.
func splitSignatureBlock(text string) (body, signatures string) {
	i := strings.Index(text, SignatureMarker)
	if i < 0 {
		return text, ""
	}
	return text[:i], text[i:]
}

// ClausesFromText tokenizes a document into persistable clause rows
// for the given contract. Sort order follows the ordinal vocabulary.
// The signature block, when present, becomes a trailing row with no
// clause number so the projection can reproduce the full document.
func ClausesFromText(contractID, text string) []model.ContractClause {
	body, signatures := splitSignatureBlock(text)
	tokens := NewTokenizer().Tokenize(body)
	clauses := make([]model.ContractClause, 0, len(tokens)+1)
	for _, tok := range tokens {
		clauses = append(clauses, model.ContractClause{
			ContractID:    contractID,
			ClauseNumber:  tok.Ordinal,
			ClauseTitle:   tok.Title,
			ClauseContent: normalize(tok.Body),
			CanvasSection: sectionFor(tok),
			SortOrder:     tok.Rank,
		})
	}
	if signatures != "" {
		// The closing block carries no ordinal; an empty clause number
		// keeps it heading-less on projection.
		clauses = append(clauses, model.ContractClause{
			ContractID:    contractID,
			ClauseContent: normalize(signatures),
			CanvasSection: model.SectionSignatures,
			SortOrder:     len(DefaultOrdinals),
		})
	}
	return clauses
}

// CanvasFromClauses projects stored clause rows into contract content,
// concatenating heading + body per section in sort order. The
// projection is pure: duplicate or gapped sort orders simply dictate
// concatenation order. Sections without clauses keep their default
// title and an empty body.
func CanvasFromClauses(clauses []model.ContractClause) model.ContractContent {
	ordered := make([]model.ContractClause, len(clauses))
	copy(ordered, clauses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	var content model.ContractContent
	for _, key := range model.SectionKeys {
		content.Section(key).Title = model.DefaultSectionTitles[key]
	}

	parts := map[string][]string{}
	for _, cl := range ordered {
		sec := cl.CanvasSection
		if !model.ValidSection(sec) {
			continue
		}
		chunk := cl.ClauseContent
		if cl.ClauseNumber != "" {
			chunk = headingLine(cl.ClauseNumber, cl.ClauseTitle) + "\n" + cl.ClauseContent
		}
		parts[sec] = append(parts[sec], chunk)
	}
	for key, chunks := range parts {
		content.Section(key).Content = normalize(strings.Join(chunks, "\n\n"))
	}
	return content
}
