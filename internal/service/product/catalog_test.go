package product

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(domain.Product{ID: 1, Name: "Widget", Price: decimal.RequireFromString("10.00")})

	p, err := catalog.GetProductByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)

	_, err = catalog.GetProductByID(ctx, 2)
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))

	catalog.Put(domain.Product{ID: 1, Name: "Widget", Price: decimal.RequireFromString("12.50")})
	p, err = catalog.GetProductByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "12.5", p.Price.String())

	outage := errors.New("connection refused")
	catalog.FailWith(1, outage)
	_, err = catalog.GetProductByID(ctx, 1)
	assert.ErrorIs(t, err, outage)

	catalog.FailWith(1, nil)
	catalog.Delete(1)
	_, err = catalog.GetProductByID(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))

	assert.Equal(t, 5, catalog.Calls())
	assert.NoError(t, catalog.Ping(ctx))
}
