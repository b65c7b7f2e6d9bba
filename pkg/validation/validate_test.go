package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"min=1,max=5"`
}

func TestParseArgumentsFromMap(t *testing.T) {
	result, err := ParseArguments[sampleInput](map[string]any{
		"name":  "widget",
		"count": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "widget", result.Name)
	assert.Equal(t, 3, result.Count)
}

func TestParseArgumentsPassthrough(t *testing.T) {
	in := sampleInput{Name: "widget", Count: 2}
	result, err := ParseArguments[sampleInput](in)
	require.NoError(t, err)
	assert.Equal(t, in, result)
}

func TestValidateArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{
			name: "valid",
			args: map[string]any{"name": "widget", "count": 3},
		},
		{
			name:    "missing name",
			args:    map[string]any{"count": 3},
			wantErr: true,
		},
		{
			name:    "count out of range",
			args:    map[string]any{"name": "widget", "count": 9},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateArguments[sampleInput](tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateReportsFieldAndRule(t *testing.T) {
	_, err := Validate(sampleInput{Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name")
	assert.Contains(t, err.Error(), "required")
}
