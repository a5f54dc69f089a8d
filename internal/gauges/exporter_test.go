package gauges

import (
	"math"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExporter_SetAndScrape(t *testing.T) {
	e := NewExporter()
	e.Set("ticker", "BTC/JPY", 30005)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `metric{name="BTC/JPY",type="ticker"} 30005`) {
		t.Errorf("scrape output missing gauge sample:\n%s", body)
	}
}

func TestExporter_NaNForMissing(t *testing.T) {
	e := NewExporter()
	e.Set("balance", "Wallet BTC", math.NaN())

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `metric{name="Wallet BTC",type="balance"} NaN`) {
		t.Errorf("scrape output missing NaN sample:\n%s", body)
	}
}

func TestExporter_LastWriteWins(t *testing.T) {
	e := NewExporter()
	e.Set("ticker", "BTC/JPY", 100)
	e.Set("ticker", "BTC/JPY", 200)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `metric{name="BTC/JPY",type="ticker"} 200`) {
		t.Errorf("gauge did not keep the latest value:\n%s", body)
	}
}
