// Package scraper walks the paginated search results and feeds every
// fetched page to the listing extractor.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"

	"github.com/aluiziolira/go-scrape-phones/config"
	"github.com/aluiziolira/go-scrape-phones/models"
	"github.com/aluiziolira/go-scrape-phones/parser"
)

// FetchOutcome is the network-level result of fetching one page.
type FetchOutcome struct {
	Page       int
	URL        string
	Attempts   int
	StatusCode int
	Err        error

	document *goquery.Document
}

// OK reports whether an attempt returned HTTP 200.
func (o FetchOutcome) OK() bool {
	return o.Err == nil
}

// Document returns the page parsed from the successful response.
func (o FetchOutcome) Document() *goquery.Document {
	return o.document
}

// pageCapture collects the callbacks of a single colly visit.
type pageCapture struct {
	statusCode int
	err        error
	document   *goquery.Document
}

// Scraper fetches results pages one at a time with a colly collector.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	extractor *parser.Extractor
	backoff   Backoff
	Metrics   *Metrics

	// RunID identifies this scraper's runs in logs and stored rows.
	RunID string

	sleep  func(ctx context.Context, d time.Duration) error
	rnd    func(n int64) int64
	logger *slog.Logger

	capture      *pageCapture
	requestCount int
	errorCount   int
	retryCount   int
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("search url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		extractor:    parser.NewExtractor(cfg),
		backoff:      NewJitterBackoff(cfg.RetryDelay, cfg.RetryDelayMax, cfg.RetryJitter),
		Metrics:      NewMetrics(),
		RunID:        uuid.NewString(),
		sleep:        sleepContext,
		rnd:          rand.Int63n,
		logger:       slog.Default(),
		capture:      &pageCapture{},
		errorsByType: make(map[string]int),
	}
	s.configureHandlers()
	return s, nil
}

// SetBackoff replaces the retry delay strategy.
func (s *Scraper) SetBackoff(b Backoff) {
	if b != nil {
		s.backoff = b
	}
}

// PageURL returns the search URL for page.
func PageURL(cfg *config.Config, page int) (string, error) {
	u, err := url.Parse(cfg.SearchURL)
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set(cfg.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run visits every configured page in order and appends the extracted
// listings to acc. Pages that exhaust their attempts are skipped; a page
// without results container is recorded as empty. Cancelling ctx stops the
// loop and returns what was collected so far.
func (s *Scraper) Run(ctx context.Context, acc *models.Accumulator) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if acc == nil {
		return nil, fmt.Errorf("accumulator is nil")
	}

	result := &models.ScraperResult{
		RunID:     s.RunID,
		StartTime: time.Now(),
	}
	log := s.logger.With(slog.String("run_id", result.RunID))

	for page := s.cfg.FirstPage; page <= s.cfg.LastPage; page++ {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		pr := s.scrapePage(ctx, log, page, acc)
		result.Pages = append(result.Pages, pr)
		s.Metrics.IncPage(pr.Status)
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}
		if pr.Status == models.PageSkipped {
			continue
		}

		result.ItemCount += pr.Items
		if page == s.cfg.LastPage {
			break
		}
		delay := randomBetween(s.cfg.PageDelayMin, s.cfg.PageDelayMax, s.rnd)
		if err := s.sleep(ctx, delay); err != nil {
			result.Interrupted = true
			break
		}
	}

	result.EndTime = time.Now()
	result.RequestCount = s.requestCount
	result.ErrorCount = s.errorCount
	result.RetryCount = s.retryCount
	result.ErrorsByType = s.snapshotErrors()

	if result.Interrupted {
		log.Warn("scrape interrupted", slog.Int("pages_processed", len(result.Pages)))
	}
	return result, nil
}

func (s *Scraper) scrapePage(ctx context.Context, log *slog.Logger, page int, acc *models.Accumulator) models.PageResult {
	pr := models.PageResult{Page: page}

	pageURL, err := PageURL(s.cfg, page)
	if err != nil {
		pr.Status = models.PageSkipped
		pr.Error = err.Error()
		return pr
	}
	pr.URL = pageURL
	log.Info("fetching page", slog.Int("page", page), slog.String("url", pageURL))

	fetch := s.fetchPage(ctx, log, page, pageURL)
	pr.Attempts = fetch.Attempts
	pr.StatusCode = fetch.StatusCode
	if !fetch.OK() && ctx.Err() != nil && errors.Is(fetch.Err, ctx.Err()) {
		pr.Status = models.PageInterrupted
		pr.Error = fetch.Err.Error()
		log.Info("page interrupted",
			slog.Int("page", page),
			slog.Int("attempts", fetch.Attempts),
		)
		return pr
	}
	if !fetch.OK() {
		pr.Status = models.PageSkipped
		pr.Error = fetch.Err.Error()
		log.Warn("skipping page",
			slog.Int("page", page),
			slog.Int("attempts", fetch.Attempts),
			slog.Any("error", fetch.Err),
		)
		return pr
	}

	extraction, err := s.extractor.ExtractDocument(fetch.Document(), acc)
	if err != nil {
		pr.Status = models.PageEmpty
		pr.Error = err.Error()
		log.Warn("page has no extractable content",
			slog.Int("page", page),
			slog.Any("error", err),
		)
		return pr
	}

	pr.Status = models.PageDone
	pr.Items = extraction.Names
	s.Metrics.AddItems(extraction.Names)

	if extraction.Mismatch() {
		log.Warn("descriptor count differs from name count",
			slog.Int("page", page),
			slog.Int("names", extraction.Names),
			slog.Int("descriptors", extraction.Descriptors),
		)
	}
	log.Debug("accumulator lengths",
		slog.Int("page", page),
		slog.Int("name", len(acc.Name)),
		slog.Int("price", len(acc.Price)),
		slog.Int("rating", len(acc.Rating)),
		slog.Int("processor", len(acc.Processor)),
		slog.Int("battery", len(acc.Battery)),
		slog.Int("camera", len(acc.Camera)),
	)
	log.Info("page done",
		slog.Int("page", page),
		slog.Int("items", extraction.Names),
		slog.Int("price_padded", extraction.PricePadded),
		slog.Int("rating_padded", extraction.RatingPadded),
	)
	return pr
}

// fetchPage requests pageURL until it answers HTTP 200 or the attempt
// ceiling is reached, waiting the backoff delay between attempts.
func (s *Scraper) fetchPage(ctx context.Context, log *slog.Logger, page int, pageURL string) FetchOutcome {
	out := FetchOutcome{Page: page, URL: pageURL}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}

		out.Attempts = attempt
		status, doc, err := s.visit(pageURL)
		out.StatusCode = status
		if err == nil {
			out.Err = nil
			out.document = doc
			return out
		}

		out.Err = err
		category := errorTypeLabel(err)
		s.errorCount++
		s.errorsByType[category]++
		s.Metrics.IncError(category)

		if attempt == s.cfg.MaxAttempts {
			break
		}
		var blocked ErrBlocked
		if errors.As(err, &blocked) {
			log.Warn("page blocked, not retrying",
				slog.Int("page", page),
				slog.Any("error", err),
			)
			break
		}

		delay := s.backoff.Delay(attempt)
		s.retryCount++
		s.Metrics.IncRetries()
		log.Warn("retrying page",
			slog.Int("page", page),
			slog.Int("attempt", attempt),
			slog.Int("status", status),
			slog.String("category", category),
			slog.Duration("delay", delay),
		)
		if err := s.sleep(ctx, delay); err != nil {
			out.Err = err
			return out
		}
	}
	return out
}

// visit performs one synchronous request and reports its status, the
// parsed document and a classified error for anything but 200.
func (s *Scraper) visit(pageURL string) (int, *goquery.Document, error) {
	s.capture = &pageCapture{}
	visitErr := s.collector.Visit(pageURL)
	c := s.capture

	err := c.err
	if err == nil {
		err = visitErr
	}
	if err != nil {
		return c.statusCode, nil, classifyError(err, c.statusCode)
	}
	if c.statusCode != http.StatusOK {
		return c.statusCode, nil, classifyError(nil, c.statusCode)
	}
	return c.statusCode, c.document, nil
}

func (s *Scraper) configureHandlers() {
	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		s.requestCount++
		s.Metrics.IncRequest("started")
	})

	s.collector.OnResponse(func(r *colly.Response) {
		s.capture.statusCode = r.StatusCode
		s.Metrics.IncRequest("completed")
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
		if r.StatusCode != http.StatusOK {
			return
		}
		// Parsed here rather than in OnHTML, which colly skips unless the
		// Content-Type names html.
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			s.capture.err = fmt.Errorf("parse page: %w", err)
			return
		}
		s.capture.document = doc
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		s.capture.err = err
		if r != nil {
			s.capture.statusCode = r.StatusCode
		}
		s.Metrics.IncRequest("failed")
	})

}

func (s *Scraper) snapshotErrors() map[string]int {
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	for _, permanent := range []error{
		colly.ErrRobotsTxtBlocked,
		colly.ErrForbiddenDomain,
		colly.ErrForbiddenURL,
		colly.ErrNoURLFiltersMatch,
		colly.ErrMissingURL,
	} {
		if errors.Is(err, permanent) {
			return ErrBlocked{Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 && statusCode != http.StatusOK {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrUnavailable{StatusCode: statusCode, Err: wrapped}
		default:
			return ErrUnexpectedStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
