package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceRefJSON_UnknownProvenance(t *testing.T) {
	data, err := json.Marshal(SourceRef{Index: 1, Content: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":1,"content":"abc","page":"Unknown","source":"Unknown"}`, string(data))

	data, err = json.Marshal(SourceRef{Index: 2, Content: "x", Page: 3, Source: "a.pdf"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":2,"content":"x","page":3,"source":"a.pdf"}`, string(data))
}

func TestSourcesFrom_NumbersInOrder(t *testing.T) {
	refs := SourcesFrom([]TextUnit{{Content: "a", Page: 1}, {Content: "b", Page: 2}})

	require.Len(t, refs, 2)
	assert.Equal(t, 1, refs[0].Index)
	assert.Equal(t, "a", refs[0].Content)
	assert.Equal(t, 2, refs[1].Index)
	assert.Equal(t, 2, refs[1].Page)
}

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(Invalid("rating", "Rating must be between 1 and 5"), ErrValidation))
	assert.True(t, errors.Is(NotFound("abc"), ErrNotFound))

	genErr := &GenerationError{StatusCode: 401, Body: "bad key"}
	assert.Equal(t, "API call failed: 401 - bad key", genErr.Error())

	loadErr := &LoadError{Name: "a.pdf", Err: errors.New("broken xref")}
	assert.Contains(t, loadErr.Error(), "broken xref")
}
