// Package intent classifies what kind of answer a query is asking for.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the inferred intent of a query.
type Kind string

const (
	Plain           Kind = "plain"
	Summarization   Kind = "summarization"
	StructuralCount Kind = "structural_count"
	Opinion         Kind = "opinion"
)

// Classification is attached to the assistant turn it produced.
// SectionNumber is only ever set for Summarization.
type Classification struct {
	Kind          Kind
	SectionNumber *int
}

// Flags is the wire shape of a Classification.
type Flags struct {
	IsSummarization bool `json:"is_summarization"`
	SectionNumber   *int `json:"section_number"`
	IsChapterCount  bool `json:"is_chapter_count"`
	IsOpinion       bool `json:"is_opinion"`
}

// Flags derives the boolean view sent to clients.
func (c Classification) Flags() Flags {
	return Flags{
		IsSummarization: c.Kind == Summarization,
		SectionNumber:   c.SectionNumber,
		IsChapterCount:  c.Kind == StructuralCount,
		IsOpinion:       c.Kind == Opinion,
	}
}

// Rule maps a match on the lowercased query to a kind.
type Rule struct {
	Name  string
	Kind  Kind
	Match func(query string) bool
}

func anyPhrase(phrases ...string) func(string) bool {
	return func(q string) bool {
		for _, p := range phrases {
			if strings.Contains(q, p) {
				return true
			}
		}
		return false
	}
}

func anyPattern(patterns ...*regexp.Regexp) func(string) bool {
	return func(q string) bool {
		for _, p := range patterns {
			if p.MatchString(q) {
				return true
			}
		}
		return false
	}
}

var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`section\s+(\d+)`),
	regexp.MustCompile(`chapter\s+(\d+)`),
	regexp.MustCompile(`part\s+(\d+)`),
	regexp.MustCompile(`subsection\s+(\d+)`),
	regexp.MustCompile(`(\d+)(?:st|nd|rd|th)?\s+section`),
	regexp.MustCompile(`(\d+)(?:st|nd|rd|th)?\s+chapter`),
}

var structuralNoun = regexp.MustCompile(`\b(?:sections?|chapters?|parts?|subsections?)\b`)

// DefaultRules is evaluated top to bottom; the first match wins. Explicit
// summary requests beat counting and opinion phrases, which in turn beat a
// bare mention of a section or chapter.
var DefaultRules = []Rule{
	{
		Name: "summary terms",
		Kind: Summarization,
		Match: anyPhrase("summarize", "summarise", "summary", "summaries",
			"overview", "brief", "outline", "key points"),
	},
	{
		Name:  "section ordinal",
		Kind:  Summarization,
		Match: anyPattern(sectionPatterns...),
	},
	{
		Name: "structure count",
		Kind: StructuralCount,
		Match: anyPhrase("how many chapters", "total chapters", "number of chapters",
			"how many sections", "total sections", "number of sections",
			"document structure", "table of contents", "chapters in this",
			"sections in this", "parts in this"),
	},
	{
		Name: "opinion",
		Kind: Opinion,
		Match: anyPhrase("what do you think", "your opinion", "your thoughts",
			"what is your view", "do you agree", "what is your take",
			"analyze this", "evaluate this", "critique this",
			"assess this", "judge this", "rate this"),
	},
	{
		Name:  "structural noun",
		Kind:  Summarization,
		Match: structuralNoun.MatchString,
	},
}

// Classifier applies a rule table. The zero value uses DefaultRules.
type Classifier struct {
	Rules []Rule
}

// Classify never fails; queries matching no rule are Plain.
func (c Classifier) Classify(query string) Classification {
	rules := c.Rules
	if rules == nil {
		rules = DefaultRules
	}
	q := strings.ToLower(query)
	for _, r := range rules {
		if !r.Match(q) {
			continue
		}
		cl := Classification{Kind: r.Kind}
		if r.Kind == Summarization {
			cl.SectionNumber = SectionNumber(q)
		}
		return cl
	}
	return Classification{Kind: Plain}
}

// Classify uses DefaultRules.
func Classify(query string) Classification {
	return Classifier{}.Classify(query)
}

// SectionNumber extracts a section, chapter or part ordinal, or nil.
func SectionNumber(query string) *int {
	q := strings.ToLower(query)
	for _, p := range sectionPatterns {
		m := p.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return &n
	}
	return nil
}
