package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"terminwatch/packages/config"
	"terminwatch/packages/domain"
	"terminwatch/packages/metrics"
)

// PageFetcher retrieves and parses one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Page, error)
}

// Scraper runs one availability check against the service site.
type Scraper struct {
	cfg     config.Config
	fetcher PageFetcher
	rules   Rules
}

func New(cfg config.Config, fetcher PageFetcher, rules Rules) *Scraper {
	return &Scraper{cfg: cfg, fetcher: fetcher, rules: rules}
}

// CheckAppointments performs one full run: fetch the overview page,
// discover locations, classify each followable location (bounded), or the
// overview page itself when no locations were found. Every network failure
// is recovered and logged; the run never fails on one.
func (s *Scraper) CheckAppointments(ctx context.Context) []domain.Finding {
	slog.Info("Fetching main page", "url", s.cfg.ServiceURL)
	sleepJitter(ctx, s.cfg.MainDelayMin, s.cfg.MainDelayMax)

	page, err := s.fetcher.Fetch(ctx, s.cfg.ServiceURL)
	if err != nil {
		slog.Error("Failed to fetch main page", "url", s.cfg.ServiceURL, "error", err)
		metrics.FetchErrorsTotal.WithLabelValues("main").Inc()
		return nil
	}

	locations := Discover(page, s.rules)
	if len(locations) == 0 {
		slog.Info("No locations found; classifying main page directly")
		if finding := Classify(page, "", s.cfg.ServiceURL, s.rules, s.cfg.EvidenceThreshold); finding != nil {
			return []domain.Finding{*finding}
		}
		return nil
	}

	slog.Info("Found locations to check", "count", len(locations))
	return s.checkLocations(ctx, locations)
}

// checkLocations fetches and classifies at most MaxLocations locations in
// document order. A failed fetch skips that location only.
func (s *Scraper) checkLocations(ctx context.Context, locations []domain.Location) []domain.Finding {
	if len(locations) > s.cfg.MaxLocations {
		locations = locations[:s.cfg.MaxLocations]
	}

	var findings []domain.Finding
	for _, loc := range locations {
		if !loc.Followable() {
			slog.Info("Skipping location without direct URL", "name", loc.Name)
			continue
		}
		if ctx.Err() != nil {
			return findings
		}

		slog.Info("Checking location", "name", loc.Name, "url", loc.URL)
		sleepJitter(ctx, s.cfg.LocationDelayMin, s.cfg.LocationDelayMax)

		page, err := s.fetcher.Fetch(ctx, loc.URL)
		if err != nil {
			slog.Error("Failed to fetch location page", "name", loc.Name, "url", loc.URL, "error", err)
			metrics.FetchErrorsTotal.WithLabelValues("location").Inc()
			continue
		}

		if finding := Classify(page, loc.Name, loc.URL, s.rules, s.cfg.EvidenceThreshold); finding != nil {
			slog.Info("Appointment availability detected", "name", loc.Name)
			findings = append(findings, *finding)
		}
	}
	return findings
}

// FormatMessage renders the findings of one run into the plain-text alert
// body handed to the notification dispatcher.
func (s *Scraper) FormatMessage(findings []domain.Finding) string {
	if len(findings) == 0 {
		return "No appointments found."
	}

	var b strings.Builder
	b.WriteString("🎉 Berlin Service Appointments Available!\n\n")
	fmt.Fprintf(&b, "Found %d available appointment(s):\n\n", len(findings))

	for i, f := range findings {
		label := f.Location
		if label == "" {
			label = "main page"
		}
		fmt.Fprintf(&b, "Appointment %d:\n", i+1)
		fmt.Fprintf(&b, "  Type: %s\n", f.Type)
		fmt.Fprintf(&b, "  Location: %s\n", label)
		fmt.Fprintf(&b, "  URL: %s\n", f.URL)
		fmt.Fprintf(&b, "  Found at: %s\n", f.DetectedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "  Evidence: %d booking button(s), %d calendar element(s), %d time slot(s), %d availability text(s), %d date select(s) (total %d)\n\n",
			f.Evidence.EnabledBookingButtons,
			f.Evidence.CalendarElements,
			f.Evidence.TimeSlots,
			f.Evidence.AvailabilityTexts,
			f.Evidence.DateSelects,
			f.Evidence.Total(),
		)
	}

	b.WriteString("🚀 Book your appointment quickly!\n")
	fmt.Fprintf(&b, "Direct link: %s\n\n", s.cfg.ServiceURL)
	fmt.Fprintf(&b, "Checked at: %s", time.Now().Format("2006-01-02 15:04:05"))

	return b.String()
}

// sleepJitter pauses for a random duration in [min, max] to keep request
// timing irregular. Returns early when the context is cancelled.
func sleepJitter(ctx context.Context, min, max time.Duration) {
	if max <= 0 || max < min {
		return
	}
	d := min
	if span := max - min; span > 0 {
		d += rand.N(span)
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
