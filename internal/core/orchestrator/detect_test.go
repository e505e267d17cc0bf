package orchestrator

import (
	"errors"
	"testing"
)

func TestDetectInterstitial(t *testing.T) {
	cases := []struct {
		name string
		html string
		want error
	}{
		{
			"real content",
			`<html><head><title>Wireless Headphones - Buy Online</title></head><body>Product details and reviews</body></html>`,
			nil,
		},
		{
			"cloudflare challenge title",
			`<html><head><title>Just a moment...</title></head><body></body></html>`,
			ErrBlocked,
		},
		{
			"access denied title",
			`<html><head><title>Access Denied</title></head><body></body></html>`,
			ErrBlocked,
		},
		{
			"amazon robot check",
			`<html><head><title>Robot Check</title></head><body></body></html>`,
			ErrCaptcha,
		},
		{
			"recaptcha widget",
			`<html><body><div class="g-recaptcha" data-sitekey="x"></div></body></html>`,
			ErrCaptcha,
		},
		{
			"captcha iframe",
			`<html><body><iframe src="https://challenge.example/captcha/frame"></iframe></body></html>`,
			ErrCaptcha,
		},
		{
			"hcaptcha widget",
			`<html><body><div class="h-captcha"></div></body></html>`,
			ErrCaptcha,
		},
		{
			"verify human body text",
			`<html><body><p>Please verify you are a human to continue.</p></body></html>`,
			ErrCaptcha,
		},
		{
			"character entry challenge",
			`<html><body><p>Enter the characters you see below</p></body></html>`,
			ErrCaptcha,
		},
		{
			"unusual traffic notice",
			`<html><body>Our systems have detected unusual traffic from your computer network.</body></html>`,
			ErrBlocked,
		},
		{
			"empty page",
			``,
			nil,
		},
		{
			"captcha word only in product text",
			`<html><head><title>CAPTCHA Solving Service Book</title></head><body>A book about the history of puzzles</body></html>`,
			nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := detectInterstitial(tc.html)
			if !errors.Is(got, tc.want) {
				t.Fatalf("detectInterstitial = %v, want %v", got, tc.want)
			}
		})
	}
}
