package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-phones/config"
	"github.com/aluiziolira/go-scrape-phones/models"
	"github.com/aluiziolira/go-scrape-phones/pipeline"
)

func TestEnvFileFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "default", args: []string{"-v"}, want: ".env"},
		{name: "separate value", args: []string{"-env-file", "prod.env"}, want: "prod.env"},
		{name: "equals form", args: []string{"--env-file=ci.env", "-v"}, want: "ci.env"},
		{name: "bare word ignored", args: []string{"env-file", "x.env"}, want: ".env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := envFileFromArgs(tt.args); got != tt.want {
				t.Fatalf("envFileFromArgs(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SCRAPER_FIRST_PAGE", "3")
	t.Setenv("SCRAPER_LAST_PAGE", "9")
	t.Setenv("SCRAPER_TIMEOUT", "5s")
	t.Setenv("SCRAPER_FORMAT", "sqlite")

	cfg := config.DefaultConfig()
	if err := applyEnv(cfg); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.FirstPage != 3 || cfg.LastPage != 9 || cfg.Timeout != 5*time.Second || cfg.OutputFormat != "sqlite" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("SCRAPER_LAST_PAGE", "many")
	if err := applyEnv(config.DefaultConfig()); err == nil {
		t.Fatalf("expected error for invalid SCRAPER_LAST_PAGE")
	}
}

func TestCreateWriter(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []string{"csv", "json", "dual", "sqlite"} {
		writer, err := createWriter(format, filepath.Join(dir, format, "phones.csv"), "run-1")
		if err != nil {
			t.Fatalf("createWriter(%s): %v", format, err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("close %s writer: %v", format, err)
		}
	}
	if _, err := createWriter("xml", filepath.Join(dir, "phones.xml"), "run-1"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestPrintSummary(t *testing.T) {
	result := &models.ScraperResult{
		RunID:     "run-1",
		StartTime: time.Unix(0, 0),
		EndTime:   time.Unix(2, 0),
		Pages: []models.PageResult{
			{Page: 1, Status: models.PageDone, Items: 2},
			{Page: 2, Status: models.PageSkipped},
		},
	}
	acc := &models.Accumulator{
		Name:      []string{"Phone A", "Phone B"},
		Price:     []string{"₹9,999", "0"},
		Rating:    []string{"4.3", "0"},
		Processor: []string{"0", "0"},
		Battery:   []string{"0", "0"},
		Camera:    []string{"0", "0"},
	}
	rows, err := pipeline.Assemble(acc, models.Sentinel)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	var buf bytes.Buffer
	printSummary(&buf, result, acc, rows, "out.csv", map[string]interface{}{})
	out := buf.String()

	for _, want := range []string{"Scrape complete", "Pages skipped: [2]", "Rows:          2", "Product_Number", "Phone B"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSummaryWithoutRows(t *testing.T) {
	result := &models.ScraperResult{
		RunID:       "run-2",
		Interrupted: true,
		Pages: []models.PageResult{
			{Page: 1, Status: models.PageEmpty},
			{Page: 2, Status: models.PageInterrupted, Attempts: 1},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, result, models.NewAccumulator(), nil, "out.json", map[string]interface{}{})
	out := buf.String()

	for _, want := range []string{"Scrape interrupted", "Pages empty:   [1]", "Interrupted:   [2]", "Rows:          0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Product_Number") {
		t.Fatalf("empty run should not print a preview table:\n%s", out)
	}
}
