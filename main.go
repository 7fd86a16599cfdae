// The main package for the pricetracker executable.
package main

import (
	"github.com/JakeFAU/realtime-price-tracker/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
