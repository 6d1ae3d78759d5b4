package language

import (
	"errors"
	"fmt"
	"strings"
)

// Auto is the pseudo source code meaning "detect the language at request time".
// It is never a valid target.
const Auto = "auto"

// ErrUnknownLanguage is returned when a name or code is absent from the catalog.
var ErrUnknownLanguage = errors.New("unknown language")

// Entry pairs a human-readable language name with its ISO 639-1 code.
type Entry struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// defaultEntries is the closed set of languages offered to users, in selector order.
var defaultEntries = []Entry{
	{Name: "Auto-detect", Code: Auto},
	{Name: "English", Code: "en"},
	{Name: "Russian", Code: "ru"},
	{Name: "French", Code: "fr"},
	{Name: "German", Code: "de"},
	{Name: "Spanish", Code: "es"},
	{Name: "Chinese", Code: "zh"},
	{Name: "Japanese", Code: "ja"},
}

// Russian display names accepted as input. They resolve through
// CodeFor but are never returned by NameFor.
var aliases = map[string]string{
	"Автоопределение": Auto,
	"Английский":      "en",
	"Русский":         "ru",
	"Французский":     "fr",
	"Немецкий":        "de",
	"Испанский":       "es",
	"Китайский":       "zh",
	"Японский":        "ja",
}

// Catalog maps display names to codes and back. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	entries []Entry
	byName  map[string]string
	byCode  map[string]string
}

// NewCatalog builds a catalog from entries. Codes must be unique.
func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byName:  make(map[string]string, len(entries)),
		byCode:  make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		code := strings.ToLower(strings.TrimSpace(e.Code))
		if code == "" || e.Name == "" {
			return nil, fmt.Errorf("invalid catalog entry %+v", e)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("duplicate language code %q", code)
		}
		c.byCode[code] = e.Name
		c.byName[e.Name] = code
		c.entries = append(c.entries, Entry{Name: e.Name, Code: code})
	}
	return c, nil
}

// DefaultCatalog returns the built-in language set, including the Russian
// display-name aliases.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultEntries)
	if err != nil {
		panic(err)
	}
	for name, code := range aliases {
		c.byName[name] = code
	}
	return c
}

// CodeFor returns the ISO code for a display name.
func (c *Catalog) CodeFor(name string) (string, error) {
	code, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("%w: name %q", ErrUnknownLanguage, name)
	}
	return code, nil
}

// NameFor returns the display name for an ISO code.
func (c *Catalog) NameFor(code string) (string, error) {
	name, ok := c.byCode[strings.ToLower(code)]
	if !ok {
		return "", fmt.Errorf("%w: code %q", ErrUnknownLanguage, code)
	}
	return name, nil
}

// IsSupported reports whether code is a concrete (non-auto) catalog language.
func (c *Catalog) IsSupported(code string) bool {
	if code == Auto {
		return false
	}
	_, ok := c.byCode[code]
	return ok
}

// Entries returns all entries in selector order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Targets returns the entries that may be chosen as a translation target.
func (c *Catalog) Targets() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Code != Auto {
			out = append(out, e)
		}
	}
	return out
}

// Normalize reduces a language tag to the base code used by the catalog.
// Examples:
//   - "EN" -> "en"
//   - "fr-CA" -> "fr"
//   - "zh_Hans" -> "zh"
func Normalize(tag string) string {
	lang := strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return lang
}

// Resolve accepts either a code, a tag or a display name and returns the
// catalog code. Auto is accepted.
func (c *Catalog) Resolve(v string) (string, error) {
	if code := Normalize(v); code != "" {
		if _, ok := c.byCode[code]; ok {
			return code, nil
		}
	}
	return c.CodeFor(v)
}
