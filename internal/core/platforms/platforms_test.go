package platforms

import (
	"strings"
	"testing"
)

func TestValid(t *testing.T) {
	for _, p := range All() {
		if !Valid(p) {
			t.Errorf("Valid(%s) = false", p)
		}
	}
	for _, p := range []Platform{"ebay", "", "AMAZON"} {
		if Valid(p) {
			t.Errorf("Valid(%q) = true", p)
		}
	}
}

func TestSearchURL(t *testing.T) {
	got, err := SearchURL(Amazon, "usb c hub")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://www.amazon.com/s?k=usb+c+hub" {
		t.Fatalf("SearchURL = %s", got)
	}

	got, err = SearchURL(Aliexpress, "café & tea")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "%26") || strings.Contains(got, " ") {
		t.Fatalf("query not escaped: %s", got)
	}

	if _, err := SearchURL("ebay", "anything"); err == nil {
		t.Fatal("unsupported platform accepted")
	}
}

func TestExpectedDomainsCoverAllPlatforms(t *testing.T) {
	for _, p := range All() {
		if len(ExpectedDomains[p]) == 0 {
			t.Errorf("no expected domains for %s", p)
		}
	}
}

func TestExtractionScripts(t *testing.T) {
	for _, p := range All() {
		dom := ExtractionScript(p, false)
		state := ExtractionScript(p, true)
		if dom == "" || state == "" {
			t.Fatalf("missing extraction script for %s", p)
		}
		if dom == state {
			t.Errorf("%s state script identical to dom script", p)
		}
		for _, field := range []string{"title", "price", "images", "scraped_at"} {
			if !strings.Contains(dom, field) {
				t.Errorf("%s dom script does not yield %s", p, field)
			}
			if !strings.Contains(state, field) {
				t.Errorf("%s state script does not yield %s", p, field)
			}
		}
	}
}
