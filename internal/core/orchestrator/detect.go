package orchestrator

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrBlocked = errors.New("blocked: anti-bot interstitial detected")
	ErrCaptcha = errors.New("captcha challenge detected")
)

var blockedTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"checking your browser",
	"request blocked",
}

var captchaSelectors = "#captcha, .g-recaptcha, .h-captcha, #nocaptcha, iframe[src*='captcha'], form[action*='captcha']"

// detectInterstitial inspects the landed page for anti-bot challenge
// markers. A nil return means the page looks like real content; it says
// nothing about whether extraction will succeed.
func detectInterstitial(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable HTML is the extractor's problem, not a block.
		return nil
	}

	if doc.Find(captchaSelectors).Length() > 0 {
		return ErrCaptcha
	}

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").Text()))
	if title == "robot check" {
		return ErrCaptcha
	}
	for _, marker := range blockedTitles {
		if strings.Contains(title, marker) {
			return ErrBlocked
		}
	}

	body := strings.ToLower(doc.Find("body").Text())
	if strings.Contains(body, "verify you are a human") || strings.Contains(body, "enter the characters you see below") {
		return ErrCaptcha
	}
	if strings.Contains(body, "unusual traffic from your computer network") {
		return ErrBlocked
	}
	return nil
}
