package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePriceList(t *testing.T) {
	reader, err := New().GeneratePriceList(context.Background(), PriceList{
		GeneratedAt: "2026-01-02 10:00",
		Items: []PriceListItem{
			{PrimaryCode: "00000001", InternalCode: "00000001", Description: "Filtro de aceite", Price: 10.5, Stock: 5},
			{PrimaryCode: "ABC123", InternalCode: "00000002", Description: "Bujía", Price: 3, Stock: 0},
		},
	})
	require.NoError(t, err)

	raw, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestGeneratePriceListCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().GeneratePriceList(ctx, PriceList{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "10.50", FormatPrice(10.5))
	assert.Equal(t, "3.00", FormatPrice(3))
}
