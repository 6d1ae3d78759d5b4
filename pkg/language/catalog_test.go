package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_CodeForAndNameFor(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name string
		code string
	}{
		{name: "Auto-detect", code: Auto},
		{name: "English", code: "en"},
		{name: "Russian", code: "ru"},
		{name: "French", code: "fr"},
		{name: "German", code: "de"},
		{name: "Spanish", code: "es"},
		{name: "Chinese", code: "zh"},
		{name: "Japanese", code: "ja"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := c.CodeFor(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)

			name, err := c.NameFor(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestCatalog_RussianAliases(t *testing.T) {
	c := DefaultCatalog()

	code, err := c.CodeFor("Английский")
	require.NoError(t, err)
	assert.Equal(t, "en", code)

	name, err := c.NameFor("en")
	require.NoError(t, err)
	assert.Equal(t, "English", name)
}

func TestCatalog_Unknown(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.CodeFor("Klingon")
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	_, err = c.NameFor("tlh")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestNewCatalog_DuplicateCode(t *testing.T) {
	_, err := NewCatalog([]Entry{{Name: "English", Code: "en"}, {Name: "Anglais", Code: "EN"}})
	assert.Error(t, err)
}

func TestCatalog_TargetsExcludeAuto(t *testing.T) {
	c := DefaultCatalog()
	targets := c.Targets()
	assert.Len(t, targets, len(c.Entries())-1)
	for _, e := range targets {
		assert.NotEqual(t, Auto, e.Code)
	}
	assert.Equal(t, "en", targets[0].Code)
}

func TestCatalog_IsSupported(t *testing.T) {
	c := DefaultCatalog()
	assert.True(t, c.IsSupported("ja"))
	assert.False(t, c.IsSupported(Auto))
	assert.False(t, c.IsSupported("it"))
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"EN":      "en",
		"fr-CA":   "fr",
		"en-US":   "en",
		"zh_Hans": "zh",
		" de ":    "de",
		"":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestCatalog_Resolve(t *testing.T) {
	c := DefaultCatalog()

	for _, in := range []string{"ru", "RU", "ru-RU", "Russian", "Русский"} {
		code, err := c.Resolve(in)
		require.NoError(t, err, in)
		assert.Equal(t, "ru", code, in)
	}

	code, err := c.Resolve("auto")
	require.NoError(t, err)
	assert.Equal(t, Auto, code)

	_, err = c.Resolve("pt")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}
