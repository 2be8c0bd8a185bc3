package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrub(t *testing.T) {
	in := map[string]any{
		"api_token":    "whatever",
		"token_hash":   "abc",
		"token_suffix": "x9Qz",
		"name":         "ci",
		"nested": map[string]any{
			"value": "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.c2ln",
		},
		"list": []any{"Bearer eyJa.eyJb.c", 7},
		"":     "dropped",
	}

	out := Scrub(in)
	assert.Equal(t, redacted, out["api_token"])
	assert.Equal(t, redacted, out["token_hash"])
	assert.Equal(t, "x9Qz", out["token_suffix"])
	assert.Equal(t, "ci", out["name"])
	assert.Equal(t, redacted, out["nested"].(map[string]any)["value"])
	assert.Equal(t, []any{redacted, 7}, out["list"])
	assert.NotContains(t, out, "")
}

func TestLooksLikeCredential(t *testing.T) {
	assert.True(t, LooksLikeCredential("eyJhbGciOi.eyJzdWIi.sig"))
	assert.False(t, LooksLikeCredential("plain text"))
	assert.False(t, LooksLikeCredential("eyJonly.two"))
}
