// Package scraper
package scraper

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// serviceOrigin is the site origin every relative link resolves against.
const serviceOrigin = "https://service.berlin.de"

// Domain terms the structural predicates key on. These are part of the
// matching logic itself and are not overridable.
const (
	registryTerm    = "standesamt"
	appointmentTerm = "termin"
)

// bookingPathTerms mark URL paths that lead into a booking flow.
var bookingPathTerms = []string{"buchung", "booking"}

// bookingPathPrefix is the fixed appointment-booking entry path on the
// service site.
const bookingPathPrefix = "/terminvereinbarung/"

// Rules holds the declarative phrase tables the heuristics match against.
// All entries are matched lowercase; German and English variants sit side
// by side because the site serves both.
type Rules struct {
	// NegativePhrases suppress a finding outright when present anywhere in
	// the page text.
	NegativePhrases []string `yaml:"negative_phrases"`
	// PositivePhrases count as availability evidence per matching text node.
	PositivePhrases []string `yaml:"positive_phrases"`
	// BookingPhrases identify booking-action buttons and links.
	BookingPhrases []string `yaml:"booking_phrases"`
	// Districts are the Berlin district names a Standesamt link may carry.
	Districts []string `yaml:"districts"`
	// LinkDenylist drops generic navigation links from location discovery.
	LinkDenylist []string `yaml:"link_denylist"`
}

func DefaultRules() Rules {
	return Rules{
		NegativePhrases: []string{
			"keine termine",
			"no appointments",
			"ausgebucht",
			"nicht verfügbar",
			"derzeit keine termine",
			"currently no appointments",
			"alle termine vergeben",
			"all appointments taken",
			"keine verfügbaren termine",
			"no available appointments",
			"keine freien termine",
			"no free appointments",
		},
		PositivePhrases: []string{
			"termine verfügbar",
			"appointments available",
			"freie termine",
			"free appointments",
			"buchbare termine",
			"bookable appointments",
			"termin wählen",
			"choose appointment",
			"verfügbare zeiten",
			"available times",
		},
		BookingPhrases: []string{
			"termin buchen",
			"book appointment",
			"termin vereinbaren",
			"make appointment",
			"buchen",
		},
		Districts: []string{
			"mitte",
			"friedrichshain",
			"kreuzberg",
			"pankow",
			"charlottenburg",
			"wilmersdorf",
			"spandau",
			"steglitz",
			"zehlendorf",
			"tempelhof",
			"schöneberg",
			"neukölln",
			"treptow",
			"köpenick",
			"marzahn",
			"hellersdorf",
			"lichtenberg",
			"reinickendorf",
		},
		LinkDenylist: []string{
			"alle standorte",
			"all locations",
			"nach behörden",
			"by authority",
			"weitere standorte",
			"more locations",
		},
	}
}

// LoadRules reads a YAML rules file and overlays it on the defaults. Only
// lists present and non-empty in the file replace their default; anything
// omitted keeps the built-in table.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("reading rules file: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return rules, fmt.Errorf("parsing rules file: %w", err)
	}

	if len(override.NegativePhrases) > 0 {
		rules.NegativePhrases = override.NegativePhrases
	}
	if len(override.PositivePhrases) > 0 {
		rules.PositivePhrases = override.PositivePhrases
	}
	if len(override.BookingPhrases) > 0 {
		rules.BookingPhrases = override.BookingPhrases
	}
	if len(override.Districts) > 0 {
		rules.Districts = override.Districts
	}
	if len(override.LinkDenylist) > 0 {
		rules.LinkDenylist = override.LinkDenylist
	}

	rules.normalize()
	return rules, nil
}

// normalize lowercases every table so matching stays case-insensitive even
// with user-supplied entries.
func (r *Rules) normalize() {
	lower := func(list []string) {
		for i, s := range list {
			list[i] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	lower(r.NegativePhrases)
	lower(r.PositivePhrases)
	lower(r.BookingPhrases)
	lower(r.Districts)
	lower(r.LinkDenylist)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}
