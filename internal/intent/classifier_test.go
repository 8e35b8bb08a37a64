package intent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		kind    Kind
		section *int
	}{
		{"plain", "What is the refund policy?", Plain, nil},
		{"empty", "", Plain, nil},
		{"summary term", "Can you SUMMARIZE this?", Summarization, nil},
		{"key points", "list the key points", Summarization, nil},
		{"section ordinal", "what does section 4 say", Summarization, intPtr(4)},
		{"ordinal suffix", "explain the 2nd chapter", Summarization, intPtr(2)},
		{"summary beats opinion", "summarize and give your opinion on section 3", Summarization, intPtr(3)},
		{"count beats bare noun", "how many chapters does this have?", StructuralCount, nil},
		{"table of contents", "Show me the table of contents", StructuralCount, nil},
		{"opinion", "What do you think about the conclusion?", Opinion, nil},
		{"opinion beats bare noun", "critique this chapter", Opinion, nil},
		{"bare noun", "what is in the first section", Summarization, nil},
		{"noun inside word", "which department approved it", Plain, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.section, got.SectionNumber)
		})
	}
}

func TestClassify_SectionOnlyForSummarization(t *testing.T) {
	got := Classify("how many sections in this? chapter 5 looked long")
	assert.Equal(t, Summarization, got.Kind, "an ordinal is a summary request")

	got = Classify("what do you think of the sections in this")
	assert.Equal(t, StructuralCount, got.Kind)
	assert.Nil(t, got.SectionNumber)
}

func TestClassifier_CustomRules(t *testing.T) {
	c := Classifier{Rules: []Rule{
		{Name: "always opinion", Kind: Opinion, Match: func(string) bool { return true }},
	}}
	assert.Equal(t, Opinion, c.Classify("summarize section 1").Kind)
}

func TestFlagsJSON(t *testing.T) {
	data, err := json.Marshal(Classification{Kind: Summarization, SectionNumber: intPtr(3)}.Flags())
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_summarization":true,"section_number":3,"is_chapter_count":false,"is_opinion":false}`, string(data))

	data, err = json.Marshal(Classification{Kind: Plain}.Flags())
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_summarization":false,"section_number":null,"is_chapter_count":false,"is_opinion":false}`, string(data))
}
