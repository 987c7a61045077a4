package ledger

import "context"

// Item is the vendor create payload.
type Item struct {
	Code  string  `json:"code"`
	Label string  `json:"label"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// Patch carries only the fields that changed locally.
type Patch struct {
	Label *string  `json:"label,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Stock *int     `json:"stock,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Label == nil && p.Price == nil && p.Stock == nil
}

// Result reports whether the ledger acknowledged a call. Failures are
// absorbed by the provider and only show up as Delivered == false.
type Result struct {
	Delivered  bool
	ExternalID string
}

type Provider interface {
	CreateProduct(ctx context.Context, item Item) Result
	UpdateProduct(ctx context.Context, code string, patch Patch) Result
	Enabled() bool
}

type NoOpProvider struct{}

func (p *NoOpProvider) CreateProduct(context.Context, Item) Result { return Result{} }

func (p *NoOpProvider) UpdateProduct(context.Context, string, Patch) Result { return Result{} }

func (p *NoOpProvider) Enabled() bool { return false }
