package mapping

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName returns a title-cased indicator name. The configured label
// wins; otherwise the key's numeric prefix is dropped, so
// "6_fatigue_loss_of_energy" becomes "Fatigue Loss Of Energy".
func DisplayName(key string, cfg IndicatorConfig) string {
	if cfg.Label != "" {
		return titleCase(cfg.Label)
	}
	name := key
	if idx := strings.IndexByte(name, '_'); idx > 0 && strings.IndexFunc(name[:idx], func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return key
	}
	return titleCase(name)
}

// titleCase builds a fresh Caser per call; Casers carry state and are not
// safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
