// Package leads bundles the capabilities the model uses to analyze an inbound
// sales lead: registry lookup, requirement classification and company search.
package leads

import (
	"context"

	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/model"
	"github.com/opentalon/leadgate/internal/siek"
)

const (
	Name        = "gateway_leads"
	Description = "Gateway para gestión y análisis de leads de ventas. " +
		"Permite buscar información de clientes en la base SIEK, " +
		"analizar requerimientos para clasificarlos, y buscar información " +
		"de empresas desconocidas (RUC, sector/rubro) usando búsqueda web."
)

// Capability names as declared to the model.
const (
	CapLookup   = "buscar_en_siek"
	CapClassify = "analizar_requerimiento"
	CapSearch   = "buscar_info_empresa"
)

// Registry is the customer registry the lookup capability queries.
type Registry interface {
	Lookup(ctx context.Context, document string) siek.LookupResult
	Configured() bool
}

// New builds the leads gateway. m serves the nested model calls of the
// classification and search capabilities.
func New(registry Registry, m model.Client, logger *zap.Logger) *gateway.Base {
	return gateway.NewBase(Name, Description, logger,
		NewLookupClient(registry),
		NewClassifyRequirement(m),
		NewSearchCompany(m),
	)
}
