// Package parser extracts mobile listings from search result pages.
package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-phones/models"
)

// ValidatePhone ensures an assembled row carries a listing name.
func ValidatePhone(p *models.Phone) error {
	if p == nil {
		return fmt.Errorf("phone is nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("phone %d missing name", p.Number)
	}
	return nil
}

// MissingFields lists the fields of p that hold the sentinel.
func MissingFields(p *models.Phone, sentinel string) []models.Field {
	if p == nil {
		return nil
	}
	var missing []models.Field
	check := func(f models.Field, value string) {
		if value == sentinel {
			missing = append(missing, f)
		}
	}
	check(models.FieldPrice, p.Price)
	check(models.FieldRating, p.Rating)
	check(models.FieldProcessor, p.Processor)
	check(models.FieldBattery, p.Battery)
	check(models.FieldCamera, p.Camera)
	return missing
}
