package allowance

import "strings"

// VehicleType selects the mileage rate row
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleBicycle    VehicleType = "bicycle"
)

var vehicleTypes = map[VehicleType]bool{
	VehicleCar:        true,
	VehicleMotorcycle: true,
	VehicleBicycle:    true,
}

// ParseVehicleType maps user input onto the closed vehicle set. Anything else fails; there
// is no default to car.
func ParseVehicleType(s string) (VehicleType, error) {
	v := VehicleType(strings.ToLower(strings.TrimSpace(s)))
	if !vehicleTypes[v] {
		return "", &UnknownVehicleTypeError{VehicleType: s}
	}
	return v, nil
}

// String returns the string representation of the vehicle type
func (v VehicleType) String() string {
	return string(v)
}
