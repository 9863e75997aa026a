// Package led drives a board status LED from the pipeline state so a
// display-less tracking table shows whether it is running.
package led

// Patterns understood by every Controller.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
)

// Controller abstracts LED hardware across boards.
type Controller interface {
	// Set switches the LED on or off. An empty pattern leaves the trigger
	// unchanged.
	Set(enabled bool, pattern string) error
	// Name reports the board LED in use, empty when there is none.
	Name() string
}
