// ABOUTME: Version information for the sound player
// ABOUTME: Product, manufacturer and release constants shown in logs and the TUI
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "Resonate Sound"

	// Manufacturer is the software vendor
	Manufacturer = "Resonate"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
