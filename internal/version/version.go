// ABOUTME: Version constants for the controller
// ABOUTME: Used in logs and the monitor header
package version

const (
	// Product is the user-facing application name
	Product = "Zonecast Controller"

	// Manufacturer identifies the project
	Manufacturer = "Zonecast"

	// Version is the release version
	Version = "0.3.0"
)
