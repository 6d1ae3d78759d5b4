package language

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/pemistahl/lingua-go"
	"github.com/sirupsen/logrus"
)

// Unknown is returned by Detect when no supported language could be identified.
const Unknown = "und"

// ErrNotIdentified is returned by identifiers that cannot name a language.
var ErrNotIdentified = errors.New("language not identified")

// Identifier is the external language-identification routine.
// It returns a best-guess ISO 639-1 code and a confidence in [0,1].
type Identifier interface {
	Identify(text string) (code string, confidence float64, err error)
}

// Detector wraps an Identifier and normalizes its output to catalog codes.
// Detection is best effort: any failure becomes Unknown.
type Detector struct {
	identifier    Identifier
	catalog       *Catalog
	minConfidence float64
	logger        *logrus.Logger
}

// NewDetector creates a detector over identifier. Results below minConfidence
// are treated as Unknown.
func NewDetector(identifier Identifier, catalog *Catalog, minConfidence float64, logger *logrus.Logger) *Detector {
	if logger == nil {
		logger = logrus.New()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Detector{
		identifier:    identifier,
		catalog:       catalog,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Detect returns the catalog code of text's language, or Unknown.
func (d *Detector) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return Unknown
	}

	code, confidence, err := d.identifier.Identify(text)
	if err != nil {
		d.logger.WithError(err).Debug("Language identification failed")
		return Unknown
	}

	code = Normalize(code)
	fields := logrus.Fields{
		"code":       code,
		"confidence": confidence,
	}
	if confidence < d.minConfidence {
		d.logger.WithFields(fields).Debug("Detected language below confidence threshold")
		return Unknown
	}
	if !d.catalog.IsSupported(code) {
		d.logger.WithFields(fields).Debug("Detected language is not offered")
		return Unknown
	}

	d.logger.WithFields(fields).Debug("Language detected")
	return code
}

// WhatlangIdentifier identifies languages with whatlanggo.
type WhatlangIdentifier struct{}

// Identify implements Identifier.
func (WhatlangIdentifier) Identify(text string) (string, float64, error) {
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", info.Confidence, ErrNotIdentified
	}
	return code, info.Confidence, nil
}

// LinguaIdentifier identifies languages with lingua-go, restricted to a fixed
// language set so that model loading stays small.
type LinguaIdentifier struct {
	detector lingua.LanguageDetector
}

var linguaLanguages = map[string]lingua.Language{
	"en": lingua.English,
	"ru": lingua.Russian,
	"fr": lingua.French,
	"de": lingua.German,
	"es": lingua.Spanish,
	"zh": lingua.Chinese,
	"ja": lingua.Japanese,
}

// NewLinguaIdentifier builds a lingua detector for the concrete languages of catalog.
func NewLinguaIdentifier(catalog *Catalog) (*LinguaIdentifier, error) {
	var langs []lingua.Language
	for _, e := range catalog.Targets() {
		if l, ok := linguaLanguages[e.Code]; ok {
			langs = append(langs, l)
		}
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("lingua needs at least two languages, got %d", len(langs))
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		Build()
	return &LinguaIdentifier{detector: detector}, nil
}

// Identify implements Identifier.
func (l *LinguaIdentifier) Identify(text string) (string, float64, error) {
	lang, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		return "", 0, ErrNotIdentified
	}
	confidence := l.detector.ComputeLanguageConfidence(text, lang)
	return strings.ToLower(lang.IsoCode639_1().String()), confidence, nil
}

// NewIdentifier returns the identifier registered under name.
func NewIdentifier(name string, catalog *Catalog) (Identifier, error) {
	switch strings.ToLower(name) {
	case "", "whatlanggo", "whatlang":
		return WhatlangIdentifier{}, nil
	case "lingua":
		return NewLinguaIdentifier(catalog)
	default:
		return nil, fmt.Errorf("unknown detector %q (supported: whatlanggo, lingua)", name)
	}
}
