package fare

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"zibana/internal/domain"
)

// DefaultClass is used when a ride request names no class.
const DefaultClass = "go"

// RideClass is a service level with its own price multiplier and driver
// requirements.
type RideClass struct {
	ID                      string  `yaml:"id" json:"id"`
	Name                    string  `yaml:"name" json:"name"`
	FareMultiplier          float64 `yaml:"fare_multiplier" json:"fare_multiplier"`
	MinDriverRating         float64 `yaml:"min_driver_rating" json:"min_driver_rating"`
	MinVehicleYear          int     `yaml:"min_vehicle_year" json:"min_vehicle_year,omitempty"`
	RequiresPetApproval     bool    `yaml:"requires_pet_approval" json:"requires_pet_approval"`
	RequiresBackgroundCheck bool    `yaml:"requires_background_check" json:"requires_background_check"`
	RequiresEliteApproval   bool    `yaml:"requires_elite_approval" json:"requires_elite_approval"`
	MaxPassengers           int     `yaml:"max_passengers" json:"max_passengers"`
	SortOrder               int     `yaml:"sort_order" json:"-"`
	Active                  bool    `yaml:"active" json:"-"`
}

// Qualifies reports whether driver meets every requirement of the class.
func (c RideClass) Qualifies(d *domain.Driver) bool {
	if d.Rating < c.MinDriverRating {
		return false
	}
	if c.MinVehicleYear > 0 && d.VehicleYear < c.MinVehicleYear {
		return false
	}
	if c.RequiresPetApproval && !d.PetApproved {
		return false
	}
	if c.RequiresBackgroundCheck && !d.BackgroundChecked {
		return false
	}
	if c.RequiresEliteApproval && !d.EliteApproved {
		return false
	}
	return d.Seats >= c.MaxPassengers
}

// Catalog is the set of ride classes on offer.
type Catalog struct {
	classes map[string]RideClass
}

// DefaultCatalog returns the built-in ride classes.
func DefaultCatalog() *Catalog {
	return newCatalog([]RideClass{
		{ID: "go", Name: "Go", FareMultiplier: 1.0, MaxPassengers: 4, SortOrder: 1, Active: true},
		{ID: "plus", Name: "Plus", FareMultiplier: 1.3, MinDriverRating: 4.3, MaxPassengers: 7, SortOrder: 2, Active: true},
		{ID: "comfort", Name: "Comfort", FareMultiplier: 1.5, MinDriverRating: 4.5, MinVehicleYear: 2020, MaxPassengers: 4, SortOrder: 3, Active: true},
		{ID: "pet_ride", Name: "PetRide", FareMultiplier: 1.5, MinDriverRating: 4.3, RequiresPetApproval: true, MaxPassengers: 3, SortOrder: 4, Active: true},
		{ID: "safe_teen", Name: "SafeTeen", FareMultiplier: 1.4, MinDriverRating: 4.7, RequiresBackgroundCheck: true, MaxPassengers: 3, SortOrder: 5, Active: true},
		{ID: "elite", Name: "Elite", FareMultiplier: 2.0, MinDriverRating: 4.8, MinVehicleYear: 2022, RequiresEliteApproval: true, MaxPassengers: 4, SortOrder: 6, Active: true},
	})
}

func newCatalog(list []RideClass) *Catalog {
	c := &Catalog{classes: make(map[string]RideClass, len(list))}
	for _, rc := range list {
		c.classes[rc.ID] = rc
	}
	return c
}

type catalogFile struct {
	Classes []RideClass `yaml:"classes"`
}

// LoadCatalog reads class definitions from a YAML file. Entries replace
// built-in classes with the same id; new ids are added.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ride classes: read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog is LoadCatalog over an in-memory document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ride classes: decode: %w", err)
	}

	c := DefaultCatalog()
	for _, rc := range f.Classes {
		if rc.ID == "" {
			return nil, fmt.Errorf("ride classes: entry without id")
		}
		if rc.FareMultiplier < 1.0 {
			return nil, fmt.Errorf("ride classes: %s: fare multiplier %.2f below 1.0", rc.ID, rc.FareMultiplier)
		}
		c.classes[rc.ID] = rc
	}
	return c, nil
}

// Get returns an active class by id.
func (c *Catalog) Get(id string) (RideClass, bool) {
	rc, ok := c.classes[id]
	if !ok || !rc.Active {
		return RideClass{}, false
	}
	return rc, true
}

// List returns active classes in display order.
func (c *Catalog) List() []RideClass {
	out := make([]RideClass, 0, len(c.classes))
	for _, rc := range c.classes {
		if rc.Active {
			out = append(out, rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// EligibleFor returns the active classes driver may serve.
func (c *Catalog) EligibleFor(d *domain.Driver) []RideClass {
	var out []RideClass
	for _, rc := range c.List() {
		if rc.Qualifies(d) {
			out = append(out, rc)
		}
	}
	return out
}
