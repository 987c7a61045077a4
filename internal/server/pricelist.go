package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/repuestos/internal/providers/pdf"
)

const priceListTitle = "Lista de precios"

func (s *Server) DownloadPriceList(c *gin.Context) {
	ctx := c.Request.Context()

	products, err := s.productSvc.List(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	data := pdf.PriceList{
		Title:       priceListTitle,
		GeneratedAt: now.Format("2006-01-02 15:04"),
		Items:       make([]pdf.PriceListItem, 0, len(products)),
	}
	for _, p := range products {
		data.Items = append(data.Items, pdf.PriceListItem{
			PrimaryCode:  p.PrimaryCode,
			InternalCode: p.InternalCode,
			Description:  p.Description,
			Price:        p.Price,
			Stock:        p.Stock,
		})
	}

	doc, err := s.pdf.GeneratePriceList(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("pricelist-%s.pdf", now.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, nil)
}
