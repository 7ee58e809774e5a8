package schemas

import (
	"fmt"
)

// Strategy is a W3C element location strategy ("using" value).
type Strategy string

const (
	ByCSS             Strategy = "css selector"
	ByID              Strategy = "id"
	ByXPath           Strategy = "xpath"
	ByTag             Strategy = "tag name"
	ByLinkText        Strategy = "link text"
	ByPartialLinkText Strategy = "partial link text"
	ByName            Strategy = "name"
	ByClass           Strategy = "class name"
)

// Locator describes how to find one or more DOM elements. Exactly one
// variant is active: either a strategy+value pair, or an already-resolved
// Element handle which bypasses lookup entirely.
//
// Locators are built through the constructors below; there is no way to
// smuggle an unrecognized shape in. An arbitrary string is only treated as
// a CSS selector through the explicit Raw constructor.
type Locator struct {
	strategy Strategy
	value    string
	handle   Element
}

// CSS locates by CSS selector.
func CSS(selector string) Locator { return Locator{strategy: ByCSS, value: selector} }

// ID locates by element id attribute.
func ID(id string) Locator { return Locator{strategy: ByID, value: id} }

// XPath locates by XPath expression.
func XPath(expr string) Locator { return Locator{strategy: ByXPath, value: expr} }

// Tag locates by tag name.
func Tag(name string) Locator { return Locator{strategy: ByTag, value: name} }

// LinkText locates anchors by exact visible text.
func LinkText(text string) Locator { return Locator{strategy: ByLinkText, value: text} }

// PartialLinkText locates anchors whose visible text contains the argument.
func PartialLinkText(text string) Locator {
	return Locator{strategy: ByPartialLinkText, value: text}
}

// Name locates by name attribute.
func Name(name string) Locator { return Locator{strategy: ByName, value: name} }

// Class locates by a single class name.
func Class(name string) Locator { return Locator{strategy: ByClass, value: name} }

// FromElement wraps an already-resolved handle; resolution is identity.
func FromElement(el Element) Locator { return Locator{handle: el} }

// Raw treats an arbitrary string as a CSS selector. This is the explicit
// opt-in replacing the silent treat-unknown-shapes-as-CSS fallback some
// drivers ship with; prefer the typed constructors, which catch
// locator-shape typos at construction time.
func Raw(selector string) Locator { return CSS(selector) }

// Handle returns the pre-resolved element, if this locator wraps one.
func (l Locator) Handle() (Element, bool) { return l.handle, l.handle != nil }

// Strategy returns the location strategy for non-handle locators.
func (l Locator) Strategy() Strategy { return l.strategy }

// Value returns the strategy argument for non-handle locators.
func (l Locator) Value() string { return l.value }

// Validate reports whether the locator holds a usable shape.
func (l Locator) Validate() error {
	if l.handle != nil {
		return nil
	}
	switch l.strategy {
	case ByCSS, ByID, ByXPath, ByTag, ByLinkText, ByPartialLinkText, ByName, ByClass:
	case "":
		return fmt.Errorf("locator has no strategy and no element handle")
	default:
		return fmt.Errorf("unknown locator strategy %q", l.strategy)
	}
	if l.value == "" {
		return fmt.Errorf("locator strategy %q has an empty value", l.strategy)
	}
	return nil
}

func (l Locator) String() string {
	if l.handle != nil {
		return "element handle"
	}
	return fmt.Sprintf("%s=%q", l.strategy, l.value)
}
