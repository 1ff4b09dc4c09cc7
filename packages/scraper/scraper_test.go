package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"terminwatch/packages/config"
	"terminwatch/packages/domain"
	"terminwatch/packages/fetcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(serviceURL string) config.Config {
	return config.Config{
		ServiceURL:        serviceURL,
		RequestTimeout:    5 * time.Second,
		EvidenceThreshold: 1,
		MaxLocations:      5,
	}
}

const availableLocationPage = `<html><body>
	<h1>Terminvereinbarung</h1>
	<button class="btn">Termin buchen</button>
	<a class="slot" href="/s">09:00</a>
</body></html>`

const bookedOutLocationPage = `<html><body>
	<h1>Terminvereinbarung</h1>
	<p>Derzeit keine Termine verfügbar.</p>
</body></html>`

func TestCheckAppointments_LocationFetchesAreBounded(t *testing.T) {
	var locationFetches atomic.Int64

	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/dienstleistung/", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<html><body>")
		for i := 0; i < 9; i++ {
			fmt.Fprintf(&b, `<a href="%s/terminvereinbarung/standesamt-%d">Standesamt Nummer %d</a>`, ts.URL, i, i)
		}
		b.WriteString("</body></html>")
		_, _ = w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/terminvereinbarung/", func(w http.ResponseWriter, r *http.Request) {
		locationFetches.Add(1)
		_, _ = w.Write([]byte(availableLocationPage))
	})

	cfg := testConfig(ts.URL + "/dienstleistung/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())

	findings := s.CheckAppointments(context.Background())

	assert.EqualValues(t, 5, locationFetches.Load(), "must never fetch more than MaxLocations location pages")
	require.Len(t, findings, 5)
	for i, f := range findings {
		assert.Equal(t, fmt.Sprintf("Standesamt Nummer %d", i), f.Location)
		assert.Contains(t, f.URL, "/terminvereinbarung/standesamt-")
		assert.GreaterOrEqual(t, f.Evidence.Total(), 1)
	}
}

func TestCheckAppointments_FailedLocationFetchIsSkipped(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/dienstleistung/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="%s/terminvereinbarung/broken">Standesamt Kaputt Hier</a>
			<a href="%s/terminvereinbarung/ok">Standesamt Funktioniert</a>
		</body></html>`, ts.URL, ts.URL)
	})
	mux.HandleFunc("/terminvereinbarung/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/terminvereinbarung/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(availableLocationPage))
	})

	cfg := testConfig(ts.URL + "/dienstleistung/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())

	findings := s.CheckAppointments(context.Background())
	require.Len(t, findings, 1)
	assert.Equal(t, "Standesamt Funktioniert", findings[0].Location)
}

func TestCheckAppointments_BookedOutLocationsYieldNoFindings(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/dienstleistung/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="%s/terminvereinbarung/voll">Standesamt Ausgelastet</a>
		</body></html>`, ts.URL)
	})
	mux.HandleFunc("/terminvereinbarung/voll", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bookedOutLocationPage))
	})

	cfg := testConfig(ts.URL + "/dienstleistung/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())

	assert.Empty(t, s.CheckAppointments(context.Background()))
}

func TestCheckAppointments_MainPageClassifiedWhenNoLocations(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/dienstleistung/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(availableLocationPage))
	})

	cfg := testConfig(ts.URL + "/dienstleistung/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())

	findings := s.CheckAppointments(context.Background())
	require.Len(t, findings, 1)
	assert.Empty(t, findings[0].Location)
	assert.Equal(t, cfg.ServiceURL, findings[0].URL)
}

func TestCheckAppointments_MainPageFetchFailureIsRecovered(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL + "/dienstleistung/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())

	assert.Empty(t, s.CheckAppointments(context.Background()))
}

func TestCheckAppointments_InertLocationsAreNotFetched(t *testing.T) {
	var fetches atomic.Int64

	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/dienstleistung/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<select name="standort">
				<option value="">Bitte wählen</option>
				<option value="1001">Standesamt Mitte</option>
			</select>
		</body></html>`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte(availableLocationPage))
	})

	cfg := testConfig(ts.URL + "/dienstleistung/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())

	assert.Empty(t, s.CheckAppointments(context.Background()))
	assert.EqualValues(t, 0, fetches.Load(), "form-only locations must never be fetched")
}

func TestFormatMessage_StructuredPerFindingBlocks(t *testing.T) {
	cfg := testConfig("https://service.berlin.de/dienstleistung/324591/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())

	detected := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	findings := []domain.Finding{
		{
			Type:       domain.FindingType,
			Location:   "Standesamt Mitte",
			URL:        "https://service.berlin.de/terminvereinbarung/standesamt-mitte",
			DetectedAt: detected,
			Evidence:   domain.Evidence{EnabledBookingButtons: 1, TimeSlots: 3},
		},
		{
			Type:       domain.FindingType,
			URL:        cfg.ServiceURL,
			DetectedAt: detected,
			Evidence:   domain.Evidence{DateSelects: 1},
		},
	}

	msg := s.FormatMessage(findings)

	assert.Contains(t, msg, "Found 2 available appointment(s)")
	assert.Contains(t, msg, "Appointment 1:")
	assert.Contains(t, msg, "Appointment 2:")
	assert.Contains(t, msg, "Location: Standesamt Mitte")
	assert.Contains(t, msg, "Location: main page")
	assert.Contains(t, msg, "2026-08-23 10:30:00")
	assert.Contains(t, msg, "1 booking button(s)")
	assert.Contains(t, msg, "3 time slot(s)")
	assert.Contains(t, msg, "(total 4)")
	assert.Contains(t, msg, "(total 1)")
	assert.Contains(t, msg, "Direct link: "+cfg.ServiceURL)

	// Findings appear in run order.
	assert.Less(t, strings.Index(msg, "Standesamt Mitte"), strings.Index(msg, "main page"))
}

func TestFormatMessage_Empty(t *testing.T) {
	cfg := testConfig("https://service.berlin.de/dienstleistung/324591/")
	s := New(cfg, fetcher.New(cfg.RequestTimeout), DefaultRules())
	assert.Equal(t, "No appointments found.", s.FormatMessage(nil))
}
