package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GeneratePriceList(ctx context.Context, data PriceList) (io.Reader, error)
}
