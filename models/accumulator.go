package models

// Field names one of the six accumulated listing attributes.
type Field string

const (
	FieldName      Field = "name"
	FieldPrice     Field = "price"
	FieldRating    Field = "rating"
	FieldProcessor Field = "processor"
	FieldBattery   Field = "battery"
	FieldCamera    Field = "camera"
)

// Fields lists every accumulated field in extraction order.
var Fields = []Field{FieldName, FieldPrice, FieldRating, FieldProcessor, FieldBattery, FieldCamera}

// Accumulator collects the raw field values of every processed page as
// parallel lists. Entries are only ever appended.
type Accumulator struct {
	Name      []string
	Price     []string
	Rating    []string
	Processor []string
	Battery   []string
	Camera    []string
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Len reports the number of values collected for f.
func (a *Accumulator) Len(f Field) int {
	return len(a.values(f))
}

// Lengths returns the length of every field list.
func (a *Accumulator) Lengths() map[Field]int {
	out := make(map[Field]int, len(Fields))
	for _, f := range Fields {
		out[f] = a.Len(f)
	}
	return out
}

// Aligned reports whether every field list has as many entries as Name.
func (a *Accumulator) Aligned() bool {
	n := len(a.Name)
	for _, f := range Fields {
		if a.Len(f) != n {
			return false
		}
	}
	return true
}

// Value returns the i-th entry of f, or ok=false when f has no such entry.
func (a *Accumulator) Value(f Field, i int) (string, bool) {
	values := a.values(f)
	if i < 0 || i >= len(values) {
		return "", false
	}
	return values[i], true
}

func (a *Accumulator) values(f Field) []string {
	switch f {
	case FieldName:
		return a.Name
	case FieldPrice:
		return a.Price
	case FieldRating:
		return a.Rating
	case FieldProcessor:
		return a.Processor
	case FieldBattery:
		return a.Battery
	case FieldCamera:
		return a.Camera
	default:
		return nil
	}
}

// PadRight appends sentinel to values until it holds at least n entries.
func PadRight(values []string, n int, sentinel string) []string {
	for len(values) < n {
		values = append(values, sentinel)
	}
	return values
}
