package config

import (
	"fmt"
	"net/url"
	"time"
)

// Selectors locates the listing fields inside a results page.
type Selectors struct {
	Container      string
	Name           string
	Price          string
	Rating         string
	Descriptor     string
	DescriptorLine string
}

// Config holds scraper configuration.
type Config struct {
	SearchURL        string
	PageParam        string
	FirstPage        int
	LastPage         int
	MaxAttempts      int
	RetryDelay       time.Duration
	RetryDelayMax    time.Duration
	RetryJitter      time.Duration
	PageDelayMin     time.Duration
	PageDelayMax     time.Duration
	Timeout          time.Duration
	Selectors        Selectors
	DescriptorLines  int
	Sentinel         string
	BatchSize        int
	DedupeMaxSize    int
	OutputFile       string
	OutputFormat     string // csv, json, dual, or sqlite
	UserAgent        string
	MetricsAddr      string
	Verbose          bool
	RespectRobotsTxt bool
}

// DefaultConfig returns the settings used against the Flipkart mobile search.
func DefaultConfig() *Config {
	return &Config{
		SearchURL:     "https://www.flipkart.com/search?q=mobile&otracker=search&otracker1=search&marketplace=FLIPKART&as-show=on&as=off",
		PageParam:     "page",
		FirstPage:     1,
		LastPage:      44,
		MaxAttempts:   5,
		RetryDelay:    3 * time.Second,
		RetryDelayMax: 30 * time.Second,
		RetryJitter:   3 * time.Second,
		PageDelayMin:  1 * time.Second,
		PageDelayMax:  5 * time.Second,
		Timeout:       30 * time.Second,
		Selectors: Selectors{
			Container:      "div.DOjaWF.gdgoEp",
			Name:           "div.KzDlHZ",
			Price:          "div.Nx9bqj._4b5DiR",
			Rating:         "div.XQDdHH",
			Descriptor:     "ul.G4BRas",
			DescriptorLine: "li",
		},
		DescriptorLines:  5,
		Sentinel:         "0",
		BatchSize:        64,
		DedupeMaxSize:    4096,
		OutputFile:       "output/Flipkart_Mobile_Data.csv",
		OutputFormat:     "csv",
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MetricsAddr:      "",
		Verbose:          false,
		RespectRobotsTxt: false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("search URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.SearchURL)
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("search URL must include a host")
	}
	if c.PageParam == "" {
		return fmt.Errorf("page parameter cannot be empty")
	}

	if c.FirstPage <= 0 {
		return fmt.Errorf("first page must be positive")
	}
	if c.LastPage < c.FirstPage {
		return fmt.Errorf("last page (%d) cannot precede first page (%d)", c.LastPage, c.FirstPage)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.RetryDelayMax < 0 {
		return fmt.Errorf("retry delay max cannot be negative")
	}
	if c.RetryDelayMax > 0 && c.RetryDelay > c.RetryDelayMax {
		return fmt.Errorf("retry delay (%s) cannot exceed retry delay max (%s)", c.RetryDelay, c.RetryDelayMax)
	}
	if c.RetryJitter < 0 {
		return fmt.Errorf("retry jitter cannot be negative")
	}
	if c.PageDelayMin < 0 || c.PageDelayMax < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.PageDelayMax < c.PageDelayMin {
		return fmt.Errorf("page delay max (%s) cannot be below page delay min (%s)", c.PageDelayMax, c.PageDelayMin)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Selectors.Container == "" || c.Selectors.Name == "" || c.Selectors.Descriptor == "" || c.Selectors.DescriptorLine == "" {
		return fmt.Errorf("container, name and descriptor selectors are required")
	}
	if c.DescriptorLines <= 0 {
		return fmt.Errorf("descriptor lines must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "sqlite":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or sqlite")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// Pages returns the number of result pages covered by the configured range.
func (c *Config) Pages() int {
	if c.LastPage < c.FirstPage {
		return 0
	}
	return c.LastPage - c.FirstPage + 1
}
