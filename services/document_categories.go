package services

import (
	"strings"
)

// Category states
const (
	CategoryMissing  = "missing"
	CategoryComplete = "complete"
	CategoryOptional = "optional"
)

// DocumentCategory is a named upload slot within a step.
type DocumentCategory struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	MaxFiles int    `json:"max_files"`
	GPS      bool   `json:"gps"`
}

// CategoryState is a category with its current file count.
type CategoryState struct {
	DocumentCategory
	Count int    `json:"count"`
	State string `json:"state"`
}

var documentCategories = map[int][]DocumentCategory{
	1: {
		{Name: "Aadhaar Card", Required: true, MaxFiles: 2},
		{Name: "PAN Card", Required: true, MaxFiles: 1},
		{Name: "Electricity Bill", Required: true, MaxFiles: 2},
		{Name: "Property Document", Required: true, MaxFiles: 3},
		{Name: "Passport Photo", Required: true, MaxFiles: 1},
		{Name: "Quotation", Required: true, MaxFiles: 2},
		{Name: "Bank Passbook", MaxFiles: 2},
		{Name: "Loan Sanction Letter", MaxFiles: 3},
	},
	2: {
		{Name: "Site Survey Report", Required: true, MaxFiles: 3},
		{Name: "Roof Layout", MaxFiles: 3},
		{Name: "Shadow Analysis", MaxFiles: 2},
	},
	3: {
		{Name: "Delivery Challan", Required: true, MaxFiles: 3},
		{Name: "Material Invoice", Required: true, MaxFiles: 2},
		{Name: "Warranty Card", MaxFiles: 5},
		{Name: "Installation Photo", Required: true, GPS: true},
		{Name: "Inverter Photo", Required: true, GPS: true},
		{Name: "Site Photo", GPS: true},
	},
	4: {
		{Name: "Portal Registration Receipt", Required: true, MaxFiles: 2},
		{Name: "Net Meter Application", Required: true, MaxFiles: 2},
		{Name: "Commissioning Certificate", Required: true, MaxFiles: 2},
		{Name: "Inspection Report", MaxFiles: 3},
	},
	5: {
		{Name: "Cancelled Cheque", Required: true, MaxFiles: 1},
		{Name: "Subsidy Claim Form", Required: true, MaxFiles: 2},
		{Name: "Bank Statement", MaxFiles: 3},
		{Name: "Subsidy Credit Proof", MaxFiles: 2},
	},
}

// Catalog resolves the static per-step category tables. GPS categories take
// their cap from the configured maximum image count.
type Catalog struct {
	gpsMaxImages int
}

func NewCatalog(gpsMaxImages int) *Catalog {
	if gpsMaxImages <= 0 {
		gpsMaxImages = 5
	}
	return &Catalog{gpsMaxImages: gpsMaxImages}
}

// Categories returns the categories of a step.
func (c *Catalog) Categories(step int) ([]DocumentCategory, error) {
	table, ok := documentCategories[step]
	if !ok {
		return nil, invalid("step", "must be between 1 and %d", LastStep())
	}
	out := make([]DocumentCategory, len(table))
	for i, cat := range table {
		if cat.GPS {
			cat.MaxFiles = c.gpsMaxImages
		}
		out[i] = cat
	}
	return out, nil
}

// Lookup finds a category by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(step int, name string) (DocumentCategory, error) {
	cats, err := c.Categories(step)
	if err != nil {
		return DocumentCategory{}, err
	}
	want := strings.TrimSpace(name)
	for _, cat := range cats {
		if strings.EqualFold(cat.Name, want) {
			return cat, nil
		}
	}
	return DocumentCategory{}, invalid("category", "unknown category %q for step %d", name, step)
}

// GpsCategories returns the photo categories of the dispatch step.
func (c *Catalog) GpsCategories() []DocumentCategory {
	cats, _ := c.Categories(DispatchStep)
	var out []DocumentCategory
	for _, cat := range cats {
		if cat.GPS {
			out = append(out, cat)
		}
	}
	return out
}

// CategoryStateOf classifies one category by its file count.
func CategoryStateOf(required bool, count int) string {
	switch {
	case count > 0:
		return CategoryComplete
	case required:
		return CategoryMissing
	default:
		return CategoryOptional
	}
}

// CategoryStates pairs categories with their counts and computes the
// completion percentage: floor(100 * satisfied / total), where a category is
// satisfied when it is optional or holds at least one file.
func CategoryStates(cats []DocumentCategory, counts map[string]int) ([]CategoryState, int) {
	states := make([]CategoryState, 0, len(cats))
	satisfied := 0
	for _, cat := range cats {
		n := counts[cat.Name]
		st := CategoryState{DocumentCategory: cat, Count: n, State: CategoryStateOf(cat.Required, n)}
		if st.State != CategoryMissing {
			satisfied++
		}
		states = append(states, st)
	}
	if len(cats) == 0 {
		return states, 100
	}
	return states, satisfied * 100 / len(cats)
}
