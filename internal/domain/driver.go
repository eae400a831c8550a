package domain

// DriverStatus represents the current availability of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "ONLINE"
	DriverStatusOffline DriverStatus = "OFFLINE"
	DriverStatusOnTrip  DriverStatus = "ON_TRIP"
)

// Driver represents a driver and the vehicle/approval attributes used to
// decide which ride classes they may serve.
type Driver struct {
	ID                string
	Name              string
	Phone             string
	Status            DriverStatus
	Rating            float64
	Seats             int
	VehicleYear       int
	PetApproved       bool
	BackgroundChecked bool
	EliteApproved     bool
}
