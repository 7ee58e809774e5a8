package schemas

// WebDriver key codes (W3C "Keyboard Actions" code points). Drivers
// translate these into synthetic key events when they appear in a
// SendKeys payload.
const (
	KeyNull      = "\ue000"
	KeyBackspace = "\ue003"
	KeyTab       = "\ue004"
	KeyEnter     = "\ue007"
	KeyEscape    = "\ue00c"
	KeyDelete    = "\ue017"
)

// booleanAttributes are the HTML attributes whose presence, not value,
// carries the meaning. The driver reports the string "true" when such an
// attribute is present and nothing at all otherwise, which is not how
// ordinary string-valued attributes behave; the action layer normalizes
// them via IsBooleanAttribute.
var booleanAttributes = map[string]struct{}{
	"async":          {},
	"autofocus":      {},
	"autoplay":       {},
	"checked":        {},
	"compact":        {},
	"complete":       {},
	"controls":       {},
	"declare":        {},
	"defaultchecked": {},
	"defer":          {},
	"disabled":       {},
	"ended":          {},
	"formnovalidate": {},
	"hidden":         {},
	"indeterminate":  {},
	"ismap":          {},
	"itemscope":      {},
	"loop":           {},
	"multiple":       {},
	"muted":          {},
	"nohref":         {},
	"novalidate":     {},
	"nowrap":         {},
	"open":           {},
	"paused":         {},
	"readonly":       {},
	"required":       {},
	"reversed":       {},
	"seeking":        {},
	"selected":       {},
}

// IsBooleanAttribute reports whether name is a presence-valued HTML
// attribute.
func IsBooleanAttribute(name string) bool {
	_, ok := booleanAttributes[name]
	return ok
}
