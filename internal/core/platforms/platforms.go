package platforms

import (
	"fmt"
	"net/url"
)

// Platform identifies a supported marketplace.
type Platform string

const (
	Alibaba    Platform = "alibaba"
	Aliexpress Platform = "aliexpress"
	Amazon     Platform = "amazon"
)

func All() []Platform {
	return []Platform{Alibaba, Aliexpress, Amazon}
}

func Valid(p Platform) bool {
	switch p {
	case Alibaba, Aliexpress, Amazon:
		return true
	}
	return false
}

// ExpectedDomains lists the domains a listing scraped from a platform is
// allowed to reference. Anything outside this set is suspicious.
var ExpectedDomains = map[Platform][]string{
	Alibaba:    {"alibaba.com", "alicdn.com"},
	Aliexpress: {"aliexpress.com", "aliexpress.us", "alicdn.com"},
	Amazon:     {"amazon.com", "media-amazon.com", "ssl-images-amazon.com"},
}

var searchURLs = map[Platform]string{
	Alibaba:    "https://www.alibaba.com/trade/search?SearchText=%s",
	Aliexpress: "https://www.aliexpress.com/wholesale?SearchText=%s",
	Amazon:     "https://www.amazon.com/s?k=%s",
}

// SearchURL builds the search page URL for a free-form query.
func SearchURL(p Platform, query string) (string, error) {
	tpl, ok := searchURLs[p]
	if !ok {
		return "", fmt.Errorf("unsupported platform: %s", p)
	}
	return fmt.Sprintf(tpl, url.QueryEscape(query)), nil
}
