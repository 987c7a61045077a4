package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PriceList struct {
	Title       string
	GeneratedAt string
	Items       []PriceListItem
}

type PriceListItem struct {
	PrimaryCode  string
	InternalCode string
	Description  string
	Price        float64
	Stock        int
}

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GeneratePriceList(ctx context.Context, data PriceList) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := data.Title
	if title == "" {
		title = "Lista de precios"
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(8, "Generado: "+data.GeneratedAt, props.Text{Size: 9}),
		text.NewCol(4, fmt.Sprintf("%d artículos", len(data.Items)), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(4, col.New(12))

	header := props.Text{Style: fontstyle.Bold, Size: 9}
	headerRight := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}
	m.AddRow(8,
		text.NewCol(2, "Código", header),
		text.NewCol(2, "Interno", header),
		text.NewCol(5, "Descripción", header),
		text.NewCol(2, "Precio", headerRight),
		text.NewCol(1, "Stock", headerRight),
	)

	cell := props.Text{Size: 9}
	cellRight := props.Text{Size: 9, Align: align.Right}
	for _, item := range data.Items {
		m.AddRow(7,
			text.NewCol(2, item.PrimaryCode, cell),
			text.NewCol(2, item.InternalCode, cell),
			text.NewCol(5, item.Description, cell),
			text.NewCol(2, FormatPrice(item.Price), cellRight),
			text.NewCol(1, strconv.Itoa(item.Stock), cellRight),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

// FormatPrice renders a price with two decimals.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}
