// Package detect holds the data types shared at the boundary with the
// external object detector: a per-frame detection and the vehicle class
// enumeration. The detector itself is a black-box inference function
// out of scope for this module (spec §1).
package detect

import "github.com/anprsight/vision-core/internal/geometry"

// VehicleClass is a tagged variant over the vehicle classes the
// detector may report. Dispatch on it is by type switch / equality,
// per Design Note 9's tagged-variant guidance.
type VehicleClass string

// The duplicate-key open question from spec.md Design Note (a) does not
// apply to this enumeration: it is listed explicitly, once, here.
const (
	ClassCar        VehicleClass = "car"
	ClassTruck      VehicleClass = "truck"
	ClassBus        VehicleClass = "bus"
	ClassMotorcycle VehicleClass = "motorcycle"
	ClassUnknown    VehicleClass = "unknown"
)

// ParseVehicleClass normalizes a detector label into one of the known
// classes, falling back to ClassUnknown for anything unrecognized.
func ParseVehicleClass(label string) VehicleClass {
	switch VehicleClass(label) {
	case ClassCar, ClassTruck, ClassBus, ClassMotorcycle:
		return VehicleClass(label)
	default:
		return ClassUnknown
	}
}

// Detection is a single, transient per-frame detector output: it lives
// for one frame and is consumed by the tracker's association step.
type Detection struct {
	Box        geometry.Box
	Class      VehicleClass
	Confidence float64
}
