package validate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"harvester/internal/logger"
)

// Listing is the structured record an extraction query yields.
type Listing struct {
	Title          string    `json:"title"`
	Price          string    `json:"price"`
	Description    string    `json:"description,omitempty"`
	Images         []string  `json:"images"`
	URL            string    `json:"url,omitempty"`
	SupplierDomain string    `json:"supplier_domain,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at,omitempty"`
}

// Quality tiers derived from confidence.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
)

// Result of one validation pass. Valid is true iff there are zero hard
// errors; warnings only cost confidence.
type Result struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Confidence int      `json:"confidence"`
	Quality    string   `json:"quality"`
}

// Validator applies structural and heuristic rules to extracted listings
// and scores how trustworthy the result is.
type Validator struct {
	log *logger.Logger

	mu    sync.RWMutex
	rules Rules
	now   func() time.Time
}

func New(rules Rules) *Validator {
	return &Validator{log: logger.New("Validator"), rules: rules, now: time.Now}
}

// UpdateRules replaces the rule set wholesale.
func (v *Validator) UpdateRules(rules Rules) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules = rules
	v.log.LogInfo("validation rules replaced")
}

func (v *Validator) Rules() Rules {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rules
}

// Validate checks each field against its rules, accumulating hard errors
// and soft warnings. Confidence starts at 100 and every defect subtracts
// its penalty; it never goes back up within a pass.
func (v *Validator) Validate(l Listing) Result {
	v.mu.RLock()
	rules := v.rules
	v.mu.RUnlock()

	pass := &scoringPass{}

	// Title
	title := strings.TrimSpace(l.Title)
	switch {
	case title == "":
		pass.fail(rules.Penalties.MissingRequired, "title is required")
	case len(title) < rules.TitleMinLen:
		pass.fail(rules.Penalties.TextTooShort, fmt.Sprintf("title shorter than %d characters", rules.TitleMinLen))
	case len(title) > rules.TitleMaxLen:
		pass.warn(rules.Penalties.TextTooLong, fmt.Sprintf("title longer than %d characters", rules.TitleMaxLen))
	}
	if title != "" {
		if isRepetitive(title) {
			pass.warn(rules.Penalties.RepetitiveText, "title looks repetitive")
		}
		if isPlaceholder(title) {
			pass.warn(rules.Penalties.PlaceholderText, "title looks like placeholder content")
		}
	}

	// Description
	if len(l.Description) > rules.DescriptionMaxLen {
		pass.warn(rules.Penalties.TextTooLong, fmt.Sprintf("description longer than %d characters", rules.DescriptionMaxLen))
	} else if l.Description != "" && isPlaceholder(l.Description) {
		pass.warn(rules.Penalties.PlaceholderText, "description looks like placeholder content")
	}

	// Price
	price := strings.TrimSpace(strings.ReplaceAll(l.Price, ",", ""))
	if price == "" {
		pass.fail(rules.Penalties.MissingRequired, "price is required")
	} else if value, err := strconv.ParseFloat(price, 64); err != nil {
		pass.fail(rules.Penalties.PriceUnparsable, fmt.Sprintf("price %q is not numeric", l.Price))
	} else {
		if value < rules.PriceMin || value > rules.PriceMax {
			pass.fail(rules.Penalties.PriceOutOfBounds, fmt.Sprintf("price %.2f outside [%.2f, %.2f]", value, rules.PriceMin, rules.PriceMax))
		}
		if value == 0 || value == 1 {
			pass.warn(rules.Penalties.SuspiciousPrice, fmt.Sprintf("price of exactly %.0f is suspicious", value))
		}
	}

	// Images
	if len(l.Images) < rules.MinImages {
		pass.fail(rules.Penalties.TooFewImages, fmt.Sprintf("listing has %d images, need at least %d", len(l.Images), rules.MinImages))
	}
	if len(l.Images) > rules.MaxImages {
		pass.warn(rules.Penalties.TooManyImages, fmt.Sprintf("listing has %d images, cap is %d", len(l.Images), rules.MaxImages))
	}
	for _, img := range l.Images {
		if !wellFormedURL(img) {
			pass.fail(rules.Penalties.MalformedURL, fmt.Sprintf("malformed image url: %s", img))
			continue
		}
		if !hasImageExtension(img) {
			pass.warn(rules.Penalties.NoImageExtension, fmt.Sprintf("image url without recognizable extension: %s", img))
		}
	}

	// Listing URL
	if l.URL != "" && !wellFormedURL(l.URL) {
		pass.fail(rules.Penalties.MalformedURL, fmt.Sprintf("malformed listing url: %s", l.URL))
	}

	// Supplier domain
	if l.SupplierDomain != "" && len(rules.AllowedDomains) > 0 && !domainAllowed(l.SupplierDomain, rules.AllowedDomains) {
		pass.warn(rules.Penalties.UnexpectedDomain, fmt.Sprintf("supplier domain %s outside the expected marketplace set", l.SupplierDomain))
	}

	// Recency
	if rules.MaxListingAgeDays > 0 && !l.ScrapedAt.IsZero() {
		age := v.now().Sub(l.ScrapedAt)
		if age > time.Duration(rules.MaxListingAgeDays)*24*time.Hour {
			pass.warn(rules.Penalties.StaleListing, fmt.Sprintf("record scraped %s ago", age.Round(time.Hour)))
		}
	}

	confidence := 100 - pass.penalty
	if confidence < 0 {
		confidence = 0
	}

	return Result{
		Valid:      len(pass.errors) == 0,
		Errors:     pass.errors,
		Warnings:   pass.warnings,
		Confidence: confidence,
		Quality:    qualityTier(confidence),
	}
}

type scoringPass struct {
	errors   []string
	warnings []string
	penalty  int
}

func (p *scoringPass) fail(penalty int, msg string) {
	p.errors = append(p.errors, msg)
	p.penalty += penalty
}

func (p *scoringPass) warn(penalty int, msg string) {
	p.warnings = append(p.warnings, msg)
	p.penalty += penalty
}

func qualityTier(confidence int) string {
	switch {
	case confidence >= 90:
		return QualityExcellent
	case confidence >= 75:
		return QualityGood
	case confidence >= 50:
		return QualityFair
	default:
		return QualityPoor
	}
}

func wellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif"}

func hasImageExtension(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func domainAllowed(domain string, allowed []string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	for _, a := range allowed {
		if domain == a || strings.HasSuffix(domain, "."+a) {
			return true
		}
	}
	return false
}

// isRepetitive flags text where a single token dominates, a common shape
// of keyword-stuffed or broken extractions.
func isRepetitive(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 6 {
		return false
	}
	counts := make(map[string]int, len(words))
	max := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > max {
			max = counts[w]
		}
	}
	return float64(max)/float64(len(words)) > 0.5
}

var placeholderMarkers = []string{"lorem ipsum", "placeholder", "sample product", "test product", "asdf", "xxxx"}

func isPlaceholder(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ParseRaw converts the flat record an extraction query returns into a
// typed Listing. Unknown keys are ignored; the core never depends on the
// script's shape beyond these fields.
func ParseRaw(raw map[string]interface{}) Listing {
	l := Listing{
		Title:          str(raw["title"]),
		Price:          str(raw["price"]),
		Description:    str(raw["description"]),
		URL:            str(raw["url"]),
		SupplierDomain: str(raw["supplier_domain"]),
	}
	if imgs, ok := raw["images"].([]interface{}); ok {
		for _, img := range imgs {
			if s := str(img); s != "" {
				l.Images = append(l.Images, s)
			}
		}
	} else if imgs, ok := raw["images"].([]string); ok {
		l.Images = imgs
	}
	if ts := str(raw["scraped_at"]); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			l.ScrapedAt = t
		}
	}
	return l
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
