package parser

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-phones/config"
	"github.com/aluiziolira/go-scrape-phones/models"
)

// ErrNoResultsContainer is returned when a page has no results container.
var ErrNoResultsContainer = errors.New("parser: results container not found")

const (
	keywordProcessor = "Processor"
	keywordBattery   = "Battery"
	keywordCamera    = "Camera"
)

// PageExtraction describes what one page contributed to the accumulator.
type PageExtraction struct {
	Names        int
	Prices       int
	Ratings      int
	PricePadded  int
	RatingPadded int
	Descriptors  int
}

// Mismatch reports whether the page yielded a different number of
// descriptor blocks than names. Nothing is corrected when it does.
func (e PageExtraction) Mismatch() bool {
	return e.Descriptors != e.Names
}

// Specs holds the classified descriptor values of one listing.
type Specs struct {
	Processor string
	Battery   string
	Camera    string
}

// Extractor pulls listing fields out of a results container.
type Extractor struct {
	selectors config.Selectors
	lines     int
	sentinel  string
}

// NewExtractor builds an extractor from the configured selectors.
func NewExtractor(cfg *config.Config) *Extractor {
	lines := cfg.DescriptorLines
	if lines <= 0 {
		lines = 5
	}
	sentinel := cfg.Sentinel
	if sentinel == "" {
		sentinel = models.Sentinel
	}
	return &Extractor{
		selectors: cfg.Selectors,
		lines:     lines,
		sentinel:  sentinel,
	}
}

// FindContainer returns the first results container in doc, or nil.
func (x *Extractor) FindContainer(doc *goquery.Selection) *goquery.Selection {
	if doc == nil {
		return nil
	}
	container := doc.Find(x.selectors.Container).First()
	if container.Length() == 0 {
		return nil
	}
	return container
}

// ExtractDocument locates the results container in doc and extracts it.
func (x *Extractor) ExtractDocument(doc *goquery.Document, acc *models.Accumulator) (PageExtraction, error) {
	if doc == nil {
		return PageExtraction{}, ErrNoResultsContainer
	}
	return x.ExtractContainer(x.FindContainer(doc.Selection), acc)
}

// ExtractContainer appends the page's names, prices, ratings and specs to acc.
func (x *Extractor) ExtractContainer(container *goquery.Selection, acc *models.Accumulator) (PageExtraction, error) {
	if container == nil || container.Length() == 0 {
		return PageExtraction{}, ErrNoResultsContainer
	}

	out := x.ExtractFields(container, acc)
	out.Descriptors = x.ExtractSpecs(container, acc)
	return out, nil
}

// ExtractFields appends names, prices and ratings to acc. Prices and
// ratings are right-padded with the sentinel up to the name count.
func (x *Extractor) ExtractFields(container *goquery.Selection, acc *models.Accumulator) PageExtraction {
	var out PageExtraction

	names := nodeTexts(container, x.selectors.Name)
	acc.Name = append(acc.Name, names...)
	out.Names = len(names)

	prices := nodeTexts(container, x.selectors.Price)
	acc.Price = append(acc.Price, prices...)
	out.Prices = len(prices)
	before := len(acc.Price)
	acc.Price = models.PadRight(acc.Price, len(acc.Name), x.sentinel)
	out.PricePadded = len(acc.Price) - before

	ratings := nodeTexts(container, x.selectors.Rating)
	acc.Rating = append(acc.Rating, ratings...)
	out.Ratings = len(ratings)
	before = len(acc.Rating)
	acc.Rating = models.PadRight(acc.Rating, len(acc.Name), x.sentinel)
	out.RatingPadded = len(acc.Rating) - before

	return out
}

// ExtractSpecs classifies every descriptor list in container and appends
// exactly one processor, battery and camera value per list.
func (x *Extractor) ExtractSpecs(container *goquery.Selection, acc *models.Accumulator) int {
	count := 0
	container.Find(x.selectors.Descriptor).Each(func(_ int, list *goquery.Selection) {
		var lines []string
		list.Find(x.selectors.DescriptorLine).Each(func(_ int, li *goquery.Selection) {
			lines = append(lines, strings.TrimSpace(li.Text()))
		})

		specs := ClassifySpecs(lines, x.lines, x.sentinel)
		acc.Processor = append(acc.Processor, specs.Processor)
		acc.Battery = append(acc.Battery, specs.Battery)
		acc.Camera = append(acc.Camera, specs.Camera)
		count++
	})
	return count
}

// ClassifySpecs scans the first limit lines in order. The first line
// containing each keyword wins; a line may satisfy several keywords.
func ClassifySpecs(lines []string, limit int, sentinel string) Specs {
	if limit >= 0 && len(lines) > limit {
		lines = lines[:limit]
	}

	var (
		specs                      Specs
		processor, battery, camera bool
	)
	for _, line := range lines {
		if !processor && strings.Contains(line, keywordProcessor) {
			specs.Processor = line
			processor = true
		}
		if !battery && strings.Contains(line, keywordBattery) {
			specs.Battery = line
			battery = true
		}
		if !camera && strings.Contains(line, keywordCamera) {
			specs.Camera = line
			camera = true
		}
	}

	if !processor {
		specs.Processor = sentinel
	}
	if !battery {
		specs.Battery = sentinel
	}
	if !camera {
		specs.Camera = sentinel
	}
	return specs
}

func nodeTexts(container *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	container.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}
