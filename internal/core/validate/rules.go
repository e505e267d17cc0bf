package validate

// Penalties are the named confidence deductions. They are policy, not
// derivation; keeping them as data lets operators retune scoring without
// a deploy.
type Penalties struct {
	MissingRequired   int `yaml:"missing_required"`
	TextTooShort      int `yaml:"text_too_short"`
	TextTooLong       int `yaml:"text_too_long"`
	PriceUnparsable   int `yaml:"price_unparsable"`
	PriceOutOfBounds  int `yaml:"price_out_of_bounds"`
	SuspiciousPrice   int `yaml:"suspicious_price"`
	TooFewImages      int `yaml:"too_few_images"`
	TooManyImages     int `yaml:"too_many_images"`
	MalformedURL      int `yaml:"malformed_url"`
	NoImageExtension  int `yaml:"no_image_extension"`
	RepetitiveText    int `yaml:"repetitive_text"`
	PlaceholderText   int `yaml:"placeholder_text"`
	UnexpectedDomain  int `yaml:"unexpected_domain"`
	StaleListing      int `yaml:"stale_listing"`
}

// Rules drive the whole validation pass. They can be replaced wholesale
// via Validator.UpdateRules or a YAML override file.
type Rules struct {
	TitleMinLen       int      `yaml:"title_min_len"`
	TitleMaxLen       int      `yaml:"title_max_len"`
	DescriptionMaxLen int      `yaml:"description_max_len"`
	PriceMin          float64  `yaml:"price_min"`
	PriceMax          float64  `yaml:"price_max"`
	MinImages         int      `yaml:"min_images"`
	MaxImages         int      `yaml:"max_images"`
	MaxListingAgeDays int      `yaml:"max_listing_age_days"`
	AllowedDomains    []string `yaml:"allowed_domains"`

	Penalties Penalties `yaml:"penalties"`
}

func DefaultRules() Rules {
	return Rules{
		TitleMinLen:       5,
		TitleMaxLen:       300,
		DescriptionMaxLen: 10000,
		PriceMin:          0.01,
		PriceMax:          1_000_000,
		MinImages:         1,
		MaxImages:         30,
		MaxListingAgeDays: 7,
		AllowedDomains: []string{
			"alibaba.com", "alicdn.com",
			"aliexpress.com", "aliexpress.us",
			"amazon.com", "media-amazon.com", "ssl-images-amazon.com",
		},
		Penalties: Penalties{
			MissingRequired:  30,
			TextTooShort:     15,
			TextTooLong:      10,
			PriceUnparsable:  25,
			PriceOutOfBounds: 20,
			SuspiciousPrice:  15,
			TooFewImages:     15,
			TooManyImages:    5,
			MalformedURL:     10,
			NoImageExtension: 5,
			RepetitiveText:   10,
			PlaceholderText:  15,
			UnexpectedDomain: 10,
			StaleListing:     10,
		},
	}
}
