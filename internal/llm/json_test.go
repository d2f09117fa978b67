package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  \n```json {\"a\":1}```  ", `{"a":1}`},
		{"trailing fence only", "{\"a\":1}\n```", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONText(tt.input))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject("```json\n{\"title\":\"  Fiesta \",\"n\":3}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Fiesta", StringField(obj, "title"))
	assert.Equal(t, "", StringField(obj, "n"))
	assert.Equal(t, "", StringField(obj, "missing"))

	_, err = DecodeObject("Sorry, I cannot help with that.")
	assert.Error(t, err)

	_, err = DecodeObject("null")
	assert.Error(t, err)

	_, err = DecodeObject("[1,2]")
	assert.Error(t, err)
}
