package scraper

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"
	"terminwatch/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

// Discover extracts candidate Standesamt locations from the overview page,
// in document order. Link-based discovery wins; the form-option fallback
// only runs when no link qualified, and the form scan is diagnostic only.
func Discover(page *domain.Page, rules Rules) []domain.Location {
	locations := discoverLinks(page.Doc, rules)
	if len(locations) > 0 {
		return locations
	}

	locations = discoverOptions(page.Doc)
	if len(locations) > 0 {
		return locations
	}

	logAppointmentForms(page.Doc)
	return nil
}

func discoverLinks(doc *goquery.Document, rules Rules) []domain.Location {
	var locations []domain.Location

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(name) < 5 {
			return
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}

		text := strings.ToLower(name)
		if containsAny(text, rules.LinkDenylist) {
			return
		}

		absolute, path := resolveTarget(href)
		if absolute == "" {
			return
		}

		if !qualifiesAsLocation(text, path, rules) {
			return
		}

		locations = append(locations, domain.Location{Name: name, URL: absolute})
		slog.Info("Found location", "name", name, "url", absolute)
	})

	return locations
}

// qualifiesAsLocation applies the link heuristics in order; any single one
// suffices.
func qualifiesAsLocation(text, path string, rules Rules) bool {
	hasRegistry := strings.Contains(text, registryTerm)

	switch {
	case hasRegistry && containsAny(text, rules.Districts):
		return true
	case hasRegistry && strings.Contains(path, appointmentTerm):
		return true
	case hasRegistry && containsAny(path, bookingPathTerms):
		return true
	case hasRegistry && strings.HasPrefix(path, bookingPathPrefix):
		return true
	}
	return false
}

// resolveTarget makes href absolute against the service origin and returns
// the absolute URL together with its lowercased path.
func resolveTarget(href string) (absolute, path string) {
	base, err := url.Parse(serviceOrigin)
	if err != nil {
		return "", ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", ""
	}
	return resolved.String(), strings.ToLower(resolved.Path)
}

// discoverOptions finds Standesamt entries in location-selection dropdowns.
// These locations have no direct URL; they are recorded for diagnostics and
// never fetched.
func discoverOptions(doc *goquery.Document) []domain.Location {
	var locations []domain.Location

	doc.Find("select option").Each(func(i int, s *goquery.Selection) {
		value := strings.TrimSpace(s.AttrOr("value", ""))
		if value == "" {
			// Placeholder entries ("Bitte wählen...") carry no value.
			return
		}
		name := strings.TrimSpace(s.Text())
		if !strings.Contains(strings.ToLower(name), registryTerm) {
			return
		}
		locations = append(locations, domain.Location{Name: name, SelectionValue: value})
		slog.Info("Found location option", "name", name, "value", value)
	})

	return locations
}

// logAppointmentForms records that the page holds an appointment form we
// cannot follow. The caller classifies the main page directly in that case.
func logAppointmentForms(doc *goquery.Document) {
	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		if strings.Contains(text, appointmentTerm) && strings.Contains(text, registryTerm) {
			slog.Info("Appointment form found on main page; no followable locations")
		}
	})
}
