package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/siek"
)

type lookupParams struct {
	RUC string `json:"ruc" jsonschema:"required" jsonschema_description:"Número de RUC (11 dígitos) o DNI (8 dígitos) del cliente a buscar. Debe ser solo números."`
}

// LookupClient checks whether a RUC/DNI belongs to a customer in the registry.
type LookupClient struct {
	registry Registry
	decl     gateway.Declaration
}

func NewLookupClient(registry Registry) *LookupClient {
	return &LookupClient{
		registry: registry,
		decl: gateway.Declare(CapLookup,
			"Busca información de un cliente en la base de datos SIEK usando su RUC (11 dígitos) o DNI (8 dígitos). "+
				"Retorna datos completos del cliente si existe: razón social, segmento, ubicación, contactos, etc. "+
				"Úsala cuando necesites verificar si un cliente ya existe en la base de datos.",
			lookupParams{}),
	}
}

func (c *LookupClient) Declaration() gateway.Declaration { return c.decl }

func (c *LookupClient) Execute(ctx context.Context, params gateway.Params) gateway.Result {
	var in lookupParams
	if err := gateway.DecodeParams(params, &in); err != nil {
		return gateway.FailWith(notFound(err.Error()), "%v", err)
	}
	doc, err := siek.NormalizeDocument(in.RUC)
	if err != nil {
		msg := "RUC/DNI invalido. RUC debe tener 11 digitos, DNI debe tener 8 digitos"
		if errors.Is(err, siek.ErrEmptyDocument) {
			msg = "RUC/DNI no proporcionado"
		}
		return gateway.FailWith(notFound(msg), "%s", msg)
	}
	if c.registry == nil || !c.registry.Configured() {
		msg := "Error de configuracion: API Key SIEK no disponible"
		return gateway.FailWith(notFound(msg), "%s", msg)
	}

	res := c.registry.Lookup(ctx, doc)
	switch res.Status {
	case siek.StatusFound:
		return gateway.OK(map[string]any{
			"encontrado": true,
			"data":       res.Raw,
			"mensaje":    "Cliente encontrado: " + res.Customer.LegalName,
		})
	case siek.StatusNotFound:
		return gateway.OK(notFound(fmt.Sprintf("Cliente con RUC/DNI %s no encontrado en base SIEK", doc)))
	default:
		return gateway.FailWith(notFound(res.Reason), "%s", res.Reason)
	}
}

func notFound(msg string) map[string]any {
	return map[string]any{"encontrado": false, "mensaje": msg}
}
