package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOperationKind(t *testing.T) {
	tests := []struct {
		input string
		want  OperationKind
		ok    bool
	}{
		{"generate", OperationGenerate, true},
		{"magic_edit", OperationMagicEdit, true},
		{"upscale", OperationUpscale, true},
		{"remove_bg", OperationRemoveBG, true},
		{"", "", false},
		{"GENERATE", "", false},
		{"thumbnail", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseOperationKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPolicyFor(t *testing.T) {
	// Only thumbnail generation counts against the monthly cap.
	assert.True(t, PolicyFor(OperationGenerate).Capped)
	assert.False(t, PolicyFor(OperationMagicEdit).Capped)
	assert.False(t, PolicyFor(OperationUpscale).Capped)
	assert.False(t, PolicyFor(OperationRemoveBG).Capped)

	for kind := range OperationPolicies {
		assert.True(t, PolicyFor(kind).RequiresSubscription, "kind %s", kind)
	}
}

func TestPolicyFor_UnknownKindIsStrictest(t *testing.T) {
	p := PolicyFor(OperationKind("bogus"))
	assert.True(t, p.Capped)
	assert.True(t, p.RequiresSubscription)
}

func TestValidAspectRatio(t *testing.T) {
	assert.True(t, ValidAspectRatio(""))
	assert.True(t, ValidAspectRatio("16:9"))
	assert.True(t, ValidAspectRatio("9:16"))
	assert.True(t, ValidAspectRatio("1:1"))
	assert.False(t, ValidAspectRatio("4:3"))
	assert.False(t, ValidAspectRatio("16x9"))
}
