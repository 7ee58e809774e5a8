package locator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/driver/drivertest"
)

func TestResolveByStrategy(t *testing.T) {
	want := &drivertest.FakeElement{}
	d := &drivertest.FakeDriver{
		FindElementFunc: func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
			assert.Equal(t, schemas.ByCSS, strategy)
			assert.Equal(t, "#login", value)
			return want, nil
		},
	}

	el, err := Resolve(context.Background(), d, schemas.CSS("#login"))
	require.NoError(t, err)
	assert.Same(t, want, el.(*drivertest.FakeElement))
}

func TestResolveHandleBypassesDriver(t *testing.T) {
	want := &drivertest.FakeElement{}
	d := &drivertest.FakeDriver{
		FindElementFunc: func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
			t.Fatal("driver must not be consulted for a handle-backed locator")
			return nil, nil
		},
	}

	el, err := Resolve(context.Background(), d, schemas.FromElement(want))
	require.NoError(t, err)
	assert.Same(t, want, el.(*drivertest.FakeElement))
}

func TestResolveRejectsMalformedLocator(t *testing.T) {
	d := &drivertest.FakeDriver{}

	_, err := Resolve(context.Background(), d, schemas.Locator{})
	require.Error(t, err)
	assert.Equal(t, schemas.KindUnknown, schemas.KindOf(err), "shape errors are fatal, not retryable")
}

func TestResolveMissClassifiesAsNotFound(t *testing.T) {
	d := &drivertest.FakeDriver{} // default FindElement reports a miss

	_, err := Resolve(context.Background(), d, schemas.ID("gone"))
	require.Error(t, err)
	var de *schemas.DriverError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, schemas.KindNotFound, de.Kind)
}

func TestResolveAllEmptyIsNotFound(t *testing.T) {
	d := &drivertest.FakeDriver{
		FindElementsFunc: func(ctx context.Context, strategy schemas.Strategy, value string) ([]schemas.Element, error) {
			return nil, nil
		},
	}

	_, err := ResolveAll(context.Background(), d, schemas.Class("row"))
	require.Error(t, err)
	assert.Equal(t, schemas.KindNotFound, schemas.KindOf(err), "zero matches must poll like a miss")
}

func TestResolveAllReturnsMatches(t *testing.T) {
	a, b := &drivertest.FakeElement{}, &drivertest.FakeElement{}
	d := &drivertest.FakeDriver{
		FindElementsFunc: func(ctx context.Context, strategy schemas.Strategy, value string) ([]schemas.Element, error) {
			return []schemas.Element{a, b}, nil
		},
	}

	els, err := ResolveAll(context.Background(), d, schemas.Tag("li"))
	require.NoError(t, err)
	assert.Len(t, els, 2)
}

func TestResolveAllHandleYieldsSingleton(t *testing.T) {
	want := &drivertest.FakeElement{}
	els, err := ResolveAll(context.Background(), &drivertest.FakeDriver{}, schemas.FromElement(want))
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Same(t, want, els[0].(*drivertest.FakeElement))
}
