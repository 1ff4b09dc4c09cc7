// Package domain
package domain

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is one fetched and parsed HTML document. It lives for the duration
// of a single check and is never shared between fetches.
type Page struct {
	RequestedURL string
	FinalURL     string
	Title        string
	Language     string // ISO 639-3 code, e.g. "deu", or "" when undetectable
	Doc          *goquery.Document
}

// Location is a candidate Standesamt sub-page discovered on the overview
// page. A Location without a URL can only be reached through a form
// submission and is never fetched; it is kept for diagnostics only.
type Location struct {
	Name           string
	URL            string
	SelectionValue string
}

// Followable reports whether the location has a direct URL to fetch.
func (l Location) Followable() bool {
	return l.URL != ""
}

// Evidence holds the independent availability indicator counts collected
// from one page.
type Evidence struct {
	EnabledBookingButtons int
	CalendarElements      int
	TimeSlots             int
	AvailabilityTexts     int
	DateSelects           int
}

// Total is the sum of all indicator counts.
func (e Evidence) Total() int {
	return e.EnabledBookingButtons + e.CalendarElements + e.TimeSlots + e.AvailabilityTexts + e.DateSelects
}

// Finding records that one page showed evidence of bookable appointments.
type Finding struct {
	Type       string
	Location   string // empty on the main/overview page
	URL        string
	DetectedAt time.Time
	Evidence   Evidence
}

// FindingType labels every finding produced by this service.
const FindingType = "Berlin Service Appointment"
