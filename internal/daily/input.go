package daily

import "regexp"

type InputType string

const (
	InputTouch InputType = "touch"
	InputClick InputType = "click"
)

const (
	TouchToleranceMeters = 35.0
	ClickToleranceMeters = 20.0
)

var touchUserAgent = regexp.MustCompile(`(?i)mobi|android|iphone|ipad|touch`)

// DetectInputType prefers the caller's explicit modality and falls back to the user agent.
func DetectInputType(explicit, userAgent string) InputType {
	switch InputType(explicit) {
	case InputTouch, InputClick:
		return InputType(explicit)
	}
	if touchUserAgent.MatchString(userAgent) {
		return InputTouch
	}
	return InputClick
}

// ToleranceMeters is how far from the target a click still counts as found.
func ToleranceMeters(t InputType) float64 {
	if t == InputTouch {
		return TouchToleranceMeters
	}
	return ClickToleranceMeters
}
