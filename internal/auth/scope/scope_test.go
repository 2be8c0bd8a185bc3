package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		scopes []string
		want   error
	}{
		{name: "single", scopes: []string{"SERVICE_OCR"}},
		{name: "lower case accepted", scopes: []string{"service_files", " SERVICE_OCR "}},
		{name: "empty", scopes: nil, want: ErrEmptyScopes},
		{name: "blank only", scopes: []string{"  "}, want: ErrEmptyScopes},
		{name: "unknown", scopes: []string{"SERVICE_OCR", "SERVICE_MINING"}, want: ErrInvalidScope},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.scopes)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNormalizeDeduplicates(t *testing.T) {
	got := Normalize([]string{"service_ocr", "SERVICE_OCR", "", "service-files"})
	assert.Equal(t, []string{"SERVICE_OCR", "SERVICE_FILES"}, got)
}

func TestHasIsExact(t *testing.T) {
	scopes := []string{"SERVICE_OCR"}
	assert.True(t, Has(scopes, ScopeServiceOCR))
	assert.False(t, Has(scopes, ScopeServiceFiles))
	assert.False(t, Has([]string{"*"}, ScopeServiceOCR))
	assert.False(t, Has(scopes, ""))
}

func TestParse(t *testing.T) {
	got, err := Parse("ocr")
	require.NoError(t, err)
	assert.Equal(t, ScopeServiceOCR, got)

	got, err = Parse("service-translation")
	require.NoError(t, err)
	assert.Equal(t, ScopeServiceTranslation, got)

	_, err = Parse("mining")
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestAllMatchesValid(t *testing.T) {
	for _, s := range All() {
		assert.True(t, IsValid(s), s)
	}
}
