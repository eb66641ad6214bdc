package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aluiziolira/go-scrape-phones/models"
)

// MisalignmentError reports field lists whose length differs from the
// name list when the dataset is assembled.
type MisalignmentError struct {
	Names   int
	Lengths map[models.Field]int
}

func (e *MisalignmentError) Error() string {
	var parts []string
	for field, n := range e.Lengths {
		if n != e.Names {
			parts = append(parts, fmt.Sprintf("%s=%d", field, n))
		}
	}
	sort.Strings(parts)
	return fmt.Sprintf("pipeline: %d names but %s", e.Names, strings.Join(parts, ", "))
}

// Assemble zips the accumulated lists into one row per name, in order.
// Cells missing from a shorter list hold sentinel; entries beyond the name
// count are not emitted. Both cases are reported with a *MisalignmentError
// alongside the rows.
func Assemble(acc *models.Accumulator, sentinel string) ([]*models.Phone, error) {
	if acc == nil {
		return nil, fmt.Errorf("pipeline: accumulator is nil")
	}

	cell := func(f models.Field, i int) string {
		if v, ok := acc.Value(f, i); ok {
			return v
		}
		return sentinel
	}

	rows := make([]*models.Phone, 0, len(acc.Name))
	for i, name := range acc.Name {
		rows = append(rows, &models.Phone{
			Number:    i,
			Name:      name,
			Price:     cell(models.FieldPrice, i),
			Battery:   cell(models.FieldBattery, i),
			Processor: cell(models.FieldProcessor, i),
			Camera:    cell(models.FieldCamera, i),
			Rating:    cell(models.FieldRating, i),
		})
	}

	if !acc.Aligned() {
		return rows, &MisalignmentError{Names: len(acc.Name), Lengths: acc.Lengths()}
	}
	return rows, nil
}
