// Package models defines data structures for the scraper.
package models

import (
	"time"
)

// Sentinel is the placeholder stored when a field could not be extracted for a listing.
const Sentinel = "0"

// Phone represents one row of the assembled dataset.
type Phone struct {
	Number    int    `csv:"Product_Number" json:"product_number"`
	Name      string `csv:"Name" json:"name"`
	Price     string `csv:"Price" json:"price"`
	Battery   string `csv:"Battery" json:"battery"`
	Processor string `csv:"Processor" json:"processor"`
	Camera    string `csv:"Camera" json:"camera"`
	Rating    string `csv:"Rating" json:"rating"`
}

// PageStatus is the terminal state of one results page.
type PageStatus string

const (
	// PageDone means the page was fetched and its listings were extracted.
	PageDone PageStatus = "done"
	// PageEmpty means the page was fetched but held no results container.
	PageEmpty PageStatus = "empty"
	// PageSkipped means every fetch attempt failed.
	PageSkipped PageStatus = "skipped"
	// PageInterrupted means the run was cancelled before the page finished.
	PageInterrupted PageStatus = "interrupted"
)

// PageResult combines the fetch and extraction outcomes of a single page.
type PageResult struct {
	Page       int        `json:"page"`
	URL        string     `json:"url"`
	Status     PageStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	StatusCode int        `json:"status_code"`
	Items      int        `json:"items"`
	Error      string     `json:"error,omitempty"`
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Pages        []PageResult
	ItemCount    int
	ErrorCount   int
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	Interrupted  bool
}

// PagesWithStatus lists the page numbers that ended in status.
func (r *ScraperResult) PagesWithStatus(status PageStatus) []int {
	var pages []int
	for _, p := range r.Pages {
		if p.Status == status {
			pages = append(pages, p.Page)
		}
	}
	return pages
}
