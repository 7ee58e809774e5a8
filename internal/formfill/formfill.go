// Package formfill drives multi-field forms in three phases per group:
// clear every text-like field, fill every field, then verify the values
// stuck. Groups run strictly in order, which lets a later group depend on
// fields a dynamic form only reveals after an earlier group is complete.
package formfill

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/actions"
)

// Action is a custom per-field step for anything SendKeys cannot express
// (date pickers, file inputs, custom widgets).
type Action func(ctx context.Context) error

// Field pairs a locator with either a string to type or an Action to run.
type Field struct {
	Locator schemas.Locator
	Value   any
}

// Group is an ordered set of fields filled as one phase.
type Group []Field

// MismatchError reports a field whose value after filling does not match
// what was typed.
type MismatchError struct {
	Selector string
	Want     string
	Got      string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("form field %s holds %q after fill, wanted %q", e.Selector, e.Got, e.Want)
}

// Filler fills forms through an action layer.
type Filler struct {
	a   *actions.Actions
	log *zap.Logger
}

// New builds a Filler. log may be nil.
func New(a *actions.Actions, log *zap.Logger) *Filler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Filler{a: a, log: log.Named("formfill")}
}

// Fill processes each group in order: clear, fill, verify. The first
// failing field aborts the run.
func (f *Filler) Fill(ctx context.Context, groups ...Group) error {
	for i, g := range groups {
		f.log.Debug("filling form group", zap.Int("group", i), zap.Int("fields", len(g)))
		if err := f.clearGroup(ctx, g); err != nil {
			return fmt.Errorf("group %d clear: %w", i, err)
		}
		if err := f.fillGroup(ctx, g); err != nil {
			return fmt.Errorf("group %d fill: %w", i, err)
		}
		if err := f.verifyGroup(ctx, g); err != nil {
			return fmt.Errorf("group %d verify: %w", i, err)
		}
	}
	return nil
}

// inputTypesWithoutText are input types where SendKeys-based clearing is
// meaningless or harmful.
var inputTypesWithoutText = map[string]struct{}{
	"radio":    {},
	"checkbox": {},
	"button":   {},
	"submit":   {},
	"reset":    {},
	"image":    {},
	"file":     {},
	"hidden":   {},
}

// clearable reports whether the field holds free text that should be
// wiped before typing.
func (f *Filler) clearable(ctx context.Context, loc schemas.Locator) (bool, error) {
	tag, err := f.a.TagName(ctx, loc)
	if err != nil {
		return false, err
	}
	switch tag {
	case "select", "button":
		return false, nil
	case "input":
		typ, err := f.a.Attribute(ctx, loc, "type")
		if err != nil {
			return false, err
		}
		_, skip := inputTypesWithoutText[strings.ToLower(typ)]
		return !skip, nil
	default:
		return true, nil
	}
}

// clearGroup wipes every string-valued text field. The cursor position
// after focusing is unknowable, so the wipe sends one backspace and one
// delete per existing rune: whichever side of the caret each character
// sits on, one of the two removes it.
func (f *Filler) clearGroup(ctx context.Context, g Group) error {
	for _, field := range g {
		if _, isString := field.Value.(string); !isString {
			continue
		}
		ok, err := f.clearable(ctx, field.Locator)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		cur, err := f.a.Value(ctx, field.Locator)
		if err != nil {
			return err
		}
		n := utf8.RuneCountInString(cur)
		if n == 0 {
			continue
		}
		wipe := strings.Repeat(schemas.KeyBackspace, n) + strings.Repeat(schemas.KeyDelete, n)
		if err := f.a.SendKeys(ctx, field.Locator, wipe); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) fillGroup(ctx context.Context, g Group) error {
	for _, field := range g {
		switch v := field.Value.(type) {
		case string:
			if err := f.a.SendKeys(ctx, field.Locator, v); err != nil {
				return err
			}
		case Action:
			if err := v(ctx); err != nil {
				return fmt.Errorf("custom action on %s: %w", field.Locator, err)
			}
		case func(ctx context.Context) error:
			if err := v(ctx); err != nil {
				return fmt.Errorf("custom action on %s: %w", field.Locator, err)
			}
		default:
			return fmt.Errorf("field %s: unsupported value type %T", field.Locator, field.Value)
		}
	}
	return nil
}

// verifyGroup checks that each typed string actually landed. Custom
// actions verify themselves. Non-clearable fields (checkboxes, selects)
// are skipped deliberately: keystrokes select by visible label there, so
// the element's value attribute need not equal the typed string ("ca"
// typed into a state select lands on value="CA") and a read-back compare
// would flag correct fills.
func (f *Filler) verifyGroup(ctx context.Context, g Group) error {
	for _, field := range g {
		want, isString := field.Value.(string)
		if !isString || want == "" {
			continue
		}
		ok, err := f.clearable(ctx, field.Locator)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if f.a.ValueIs(ctx, field.Locator, want) {
			continue
		}
		got, err := f.a.Value(ctx, field.Locator)
		if err != nil {
			return err
		}
		return &MismatchError{Selector: field.Locator.String(), Want: want, Got: got}
	}
	return nil
}
