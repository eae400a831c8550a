package fare

import (
	"testing"

	"zibana/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	list := c.List()
	if len(list) != 6 || list[0].ID != "go" || list[5].ID != "elite" {
		t.Fatalf("unexpected list order: %+v", list)
	}
	elite, ok := c.Get("elite")
	if !ok || elite.FareMultiplier != 2.0 {
		t.Errorf("elite = %+v", elite)
	}
	if _, ok := c.Get("helicopter"); ok {
		t.Error("unknown class should not resolve")
	}
}

func TestRideClassQualifies(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	d := &domain.Driver{Rating: 4.6, Seats: 4, VehicleYear: 2021}

	var ids []string
	for _, rc := range c.EligibleFor(d) {
		ids = append(ids, rc.ID)
	}
	if len(ids) != 2 || ids[0] != "go" || ids[1] != "comfort" {
		t.Errorf("eligible = %v, want [go comfort]", ids)
	}

	d.PetApproved = true
	if pet, _ := c.Get("pet_ride"); !pet.Qualifies(d) {
		t.Error("pet-approved driver with enough seats should qualify for pet_ride")
	}
}

func TestRideClassQualifies_Seats(t *testing.T) {
	t.Parallel()

	plus, _ := DefaultCatalog().Get("plus")

	tests := []struct {
		name  string
		seats int
		want  bool
	}{
		{name: "sedan", seats: 4, want: false},
		{name: "six seater", seats: 6, want: false},
		{name: "seven seater", seats: 7, want: true},
		{name: "minibus", seats: 8, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := &domain.Driver{Rating: 4.9, Seats: tt.seats, VehicleYear: 2023}
			if got := plus.Qualifies(d); got != tt.want {
				t.Errorf("plus.Qualifies(%d seats) = %v, want %v", tt.seats, got, tt.want)
			}
		})
	}
}

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	doc := []byte(`
classes:
  - id: plus
    name: Plus XL
    fare_multiplier: 1.6
    min_driver_rating: 4.0
    max_passengers: 6
    sort_order: 2
    active: true
  - id: comfort
    active: false
    fare_multiplier: 1.5
`)
	c, err := ParseCatalog(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plus, ok := c.Get("plus")
	if !ok || plus.FareMultiplier != 1.6 || plus.Name != "Plus XL" {
		t.Errorf("plus = %+v", plus)
	}
	if _, ok := c.Get("comfort"); ok {
		t.Error("inactive class should be hidden")
	}

	if _, err := ParseCatalog([]byte("classes:\n  - id: go\n    fare_multiplier: 0.5\n")); err == nil {
		t.Error("expected error for discount multiplier")
	}
}
