package language

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// minDetectRunes is the shortest text worth classifying; shorter input
// resolves to the fallback.
const minDetectRunes = 3

// FallbackPolicy decides which language a detection result maps to.
// Results below MinConfidence or outside the supported set resolve to
// Default. A zero MinConfidence keeps the detector's top guess.
type FallbackPolicy struct {
	Default       Code
	MinConfidence float64
}

// DefaultPolicy falls back to English, matching the historic behavior of
// the bot when detection fails.
var DefaultPolicy = FallbackPolicy{Default: EN}

// Resolve maps a detector's ISO code to a supported Code.
func (p FallbackPolicy) Resolve(iso string, confidence float64) Code {
	if confidence < p.MinConfidence {
		return p.Default
	}
	if c, ok := fromISO(iso); ok {
		return c
	}
	return p.Default
}

// fromISO accepts ISO 639-1 and ISO 639-3 codes. Plateau Malagasy ("plt")
// is the variety most detectors return for Malagasy text.
func fromISO(iso string) (Code, bool) {
	switch strings.ToLower(iso) {
	case "en", "eng":
		return EN, true
	case "fr", "fra", "fre":
		return FR, true
	case "es", "spa":
		return ES, true
	case "de", "deu", "ger":
		return DE, true
	case "mg", "mlg", "plt":
		return MG, true
	default:
		return "", false
	}
}

// Detector classifies text with whatlanggo, restricted to the supported
// languages, and applies a FallbackPolicy.
type Detector struct {
	policy  FallbackPolicy
	options whatlanggo.Options
}

var supportedLangs = map[whatlanggo.Lang]bool{
	whatlanggo.Eng: true,
	whatlanggo.Fra: true,
	whatlanggo.Spa: true,
	whatlanggo.Deu: true,
	whatlanggo.Mlg: true,
}

// NewDetector creates a detector using policy.
func NewDetector(policy FallbackPolicy) *Detector {
	if policy.Default == "" {
		policy.Default = DefaultPolicy.Default
	}
	return &Detector{policy: policy, options: whatlanggo.Options{Whitelist: supportedLangs}}
}

// Detect returns the language of text. It never fails.
func (d *Detector) Detect(text string) Code {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minDetectRunes {
		return d.policy.Default
	}
	info := whatlanggo.DetectWithOptions(text, d.options)
	iso := info.Lang.Iso6391()
	if iso == "" {
		iso = info.Lang.Iso6393()
	}
	return d.policy.Resolve(iso, info.Confidence)
}

// Policy returns the detector's fallback policy.
func (d *Detector) Policy() FallbackPolicy {
	return d.policy
}
