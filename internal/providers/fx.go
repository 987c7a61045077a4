package providers

import (
	"github.com/smallbiznis/repuestos/internal/providers/ledger"
	"github.com/smallbiznis/repuestos/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	ledger.Module,
	pdf.Module,
)
