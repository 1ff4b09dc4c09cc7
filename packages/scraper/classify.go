package scraper

import (
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
	"terminwatch/packages/domain"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// maxTimeSlotLen bounds the visible length of a clock-time label like
// "09:00" or "14:30 Uhr".
const maxTimeSlotLen = 10

// Classify inspects one page for bookable-appointment evidence and returns
// at most one Finding. locationLabel is empty when classifying the main
// overview page; pageURL is recorded on the Finding as its source.
//
// A negative phrase anywhere on the page suppresses the finding regardless
// of evidence, and a disabled booking button on the overview page means the
// site is asking for a location selection first, not offering a slot.
func Classify(page *domain.Page, locationLabel, pageURL string, rules Rules, threshold int) *domain.Finding {
	pageText := strings.ToLower(page.Doc.Text())

	if phrase := firstMatch(pageText, rules.NegativePhrases); phrase != "" {
		slog.Info("Unavailability phrase found", "location", locationLabel, "phrase", phrase)
		return nil
	}

	evidence := domain.Evidence{
		EnabledBookingButtons: countEnabledBookingButtons(page.Doc, rules.BookingPhrases),
		CalendarElements:      countCalendarInputs(page.Doc),
		TimeSlots:             countTimeSlots(page.Doc),
		AvailabilityTexts:     countAvailabilityTexts(page.Doc, rules.PositivePhrases),
		DateSelects:           countDateSelects(page.Doc),
	}

	slog.Info("Appointment indicators",
		"location", locationLabel,
		"enabled_buttons", evidence.EnabledBookingButtons,
		"calendar_elements", evidence.CalendarElements,
		"time_slots", evidence.TimeSlots,
		"availability_texts", evidence.AvailabilityTexts,
		"date_selects", evidence.DateSelects,
		"total", evidence.Total(),
	)

	if locationLabel == "" && hasDisabledBookingButton(page.Doc) {
		slog.Info("Disabled booking button on overview page; location selection required")
		return nil
	}

	if evidence.Total() < threshold {
		return nil
	}

	return &domain.Finding{
		Type:       domain.FindingType,
		Location:   locationLabel,
		URL:        pageURL,
		DetectedAt: time.Now(),
		Evidence:   evidence,
	}
}

func firstMatch(text string, phrases []string) string {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return p
		}
	}
	return ""
}

// isDisabled reports whether any class token of the element marks it
// disabled. Elements without a class attribute count as enabled.
func isDisabled(s *goquery.Selection) bool {
	for _, token := range strings.Fields(s.AttrOr("class", "")) {
		if strings.Contains(strings.ToLower(token), "disabled") {
			return true
		}
	}
	return false
}

// countEnabledBookingButtons counts buttons and links that are not marked
// disabled and whose text is a booking action.
func countEnabledBookingButtons(doc *goquery.Document, bookingPhrases []string) int {
	count := 0
	doc.Find("button, a").Each(func(i int, s *goquery.Selection) {
		if isDisabled(s) {
			return
		}
		if containsAny(strings.ToLower(strings.TrimSpace(s.Text())), bookingPhrases) {
			count++
		}
	})
	return count
}

// countCalendarInputs counts date-typed inputs styled as calendars.
func countCalendarInputs(doc *goquery.Document) int {
	count := 0
	doc.Find(`input[type="date"], input[type="datetime-local"]`).Each(func(i int, s *goquery.Selection) {
		if strings.Contains(strings.ToLower(s.AttrOr("class", "")), "calendar") {
			count++
		}
	})
	return count
}

// countTimeSlots counts enabled buttons and links whose label looks like a
// clock time: short, contains a colon and at least one digit.
func countTimeSlots(doc *goquery.Document) int {
	count := 0
	doc.Find("button, a").Each(func(i int, s *goquery.Selection) {
		if isDisabled(s) {
			return
		}
		if looksLikeTimeSlot(strings.TrimSpace(s.Text())) {
			count++
		}
	})
	return count
}

func looksLikeTimeSlot(text string) bool {
	if text == "" || utf8.RuneCountInString(text) > maxTimeSlotLen {
		return false
	}
	if !strings.Contains(text, ":") {
		return false
	}
	return strings.ContainsFunc(text, unicode.IsDigit)
}

// countAvailabilityTexts counts text nodes carrying a positive availability
// phrase. Nodes are counted, not substring occurrences, so one banner
// mentioning two phrases still counts once.
func countAvailabilityTexts(doc *goquery.Document, positivePhrases []string) int {
	count := 0
	for _, root := range doc.Nodes {
		walkTextNodes(root, func(text string) {
			if containsAny(strings.ToLower(text), positivePhrases) {
				count++
			}
		})
	}
	return count
}

func walkTextNodes(n *html.Node, visit func(string)) {
	if n.Type == html.TextNode {
		visit(n.Data)
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkTextNodes(c, visit)
	}
}

// countDateSelects counts select elements whose name points at a date, time
// or appointment choice.
func countDateSelects(doc *goquery.Document) int {
	count := 0
	doc.Find("select[name]").Each(func(i int, s *goquery.Selection) {
		name := strings.ToLower(s.AttrOr("name", ""))
		if strings.Contains(name, "date") || strings.Contains(name, "time") || strings.Contains(name, appointmentTerm) {
			count++
		}
	})
	return count
}

// hasDisabledBookingButton reports a disabled button mentioning the
// appointment term. Only buttons count here; a disabled link is styling
// noise on this site.
func hasDisabledBookingButton(doc *goquery.Document) bool {
	found := false
	doc.Find("button").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if isDisabled(s) && strings.Contains(strings.ToLower(s.Text()), appointmentTerm) {
			found = true
			return false
		}
		return true
	})
	return found
}
