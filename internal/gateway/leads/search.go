package leads

import (
	"context"
	"strconv"
	"strings"

	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/model"
	"github.com/opentalon/leadgate/internal/siek"
)

const (
	ConfidenceHigh   = "alta"
	ConfidenceMedium = "media"
	ConfidenceLow    = "baja"

	SourceWeb      = "web"
	SourceNotFound = "no_encontrado"
)

// SearchGeneration is the sampling used for web-grounded company search.
var SearchGeneration = model.GenerationConfig{
	Temperature:     0.2,
	MaxOutputTokens: 500,
}

func isConfidence(s string) bool {
	return s == ConfidenceHigh || s == ConfidenceMedium || s == ConfidenceLow
}

// ConfidenceRank orders confidence labels; unknown labels rank lowest.
func ConfidenceRank(s string) int {
	switch s {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

type searchParams struct {
	Company    string `json:"nombre_empresa" jsonschema:"required" jsonschema_description:"Nombre de la empresa a buscar. Puede ser nombre comercial o razón social parcial."`
	Department string `json:"departamento,omitempty" jsonschema_description:"Departamento o ciudad de Perú donde está ubicada la empresa (opcional). Ayuda a desambiguar empresas con nombres similares."`
	Context    string `json:"contexto,omitempty" jsonschema_description:"Contexto adicional sobre la empresa (opcional): rubro, productos que vende, RUC conocido, etc. Mejora la precisión de la búsqueda."`
}

// SearchCompany infers a company's RUC, sector and legal name from a web-grounded model call.
type SearchCompany struct {
	model model.Client
	decl  gateway.Declaration
}

func NewSearchCompany(m model.Client) *SearchCompany {
	return &SearchCompany{
		model: m,
		decl: gateway.Declare(CapSearch,
			"Busca información de una empresa usando IA para encontrar su RUC (número de identificación tributaria) "+
				"y sector/rubro al que pertenece. Usa búsqueda web e inferencia. "+
				"Útil cuando tienes el nombre de una empresa pero no su RUC o sector. "+
				"Retorna: RUC, sector/rubro, razón social completa, nivel de confianza y fuente.",
			searchParams{}),
	}
}

func (s *SearchCompany) Declaration() gateway.Declaration { return s.decl }

func (s *SearchCompany) Execute(ctx context.Context, params gateway.Params) gateway.Result {
	var in searchParams
	if err := gateway.DecodeParams(params, &in); err != nil {
		return searchFailure(err.Error())
	}
	if in.Company == "" {
		return searchFailure("Nombre de empresa no proporcionado")
	}
	if s.model == nil {
		return searchFailure(model.ErrMissingAPIKey.Error())
	}

	resp, err := s.model.Generate(ctx, &model.Request{
		Turns:      []model.Turn{model.UserText(searchPrompt(in.Company, in.Department, in.Context))},
		Generation: SearchGeneration,
		WebSearch:  true,
	})
	if err != nil {
		return searchFailure(err.Error())
	}
	answer := resp.Turn.Text()
	if strings.TrimSpace(answer) == "" {
		return searchFailure("Respuesta vacia del modelo")
	}

	var parsed struct {
		RUC       any `json:"ruc"`
		Sector    any `json:"sector_rubro"`
		LegalName any `json:"razon_social"`
	}
	if err := model.DecodeJSON(answer, &parsed); err != nil {
		return searchFailure("No se pudo parsear respuesta JSON")
	}
	ruc := inferredDocument(parsed.RUC)
	sector := nullable(parsed.Sector)
	legal := nullable(parsed.LegalName)

	var confidence string
	switch {
	case ruc != nil && sector != nil && legal != nil:
		confidence = ConfidenceHigh
	case ruc != nil && sector != nil:
		confidence = ConfidenceMedium
	case ruc != nil || sector != nil:
		confidence = ConfidenceLow
	default:
		return gateway.FailWith(searchPayload(nil, nil, nil, ConfidenceLow, SourceNotFound), "Empresa no encontrada")
	}
	return gateway.OK(searchPayload(ruc, sector, legal, confidence, SourceWeb))
}

func searchPrompt(company, department, extra string) string {
	var b strings.Builder
	b.WriteString(`Encuentra el numero de RUC de la empresa "` + company + `"`)
	if department != "" {
		b.WriteString(" ubicada en " + department + ", Perú")
	} else {
		b.WriteString(" en Perú")
	}
	if extra != "" {
		b.WriteString(". Contexto adicional: " + extra)
	}
	b.WriteString(". También identifica su sector o rubro principal (ej: Minería, Alimentos, Salud, Pesquera, Servicios, etc.).")
	b.WriteString(" Si no encuentras información exacta, responde con ruc null y sector_rubro null.")
	b.WriteString(" Responde ÚNICAMENTE con formato JSON puro sin markdown, sin bloques de código, sin explicaciones adicionales.")
	b.WriteString(` Formato exacto: {"ruc": "numero_ruc_o_null", "sector_rubro": "sector_o_null", "razon_social": "razon_social_completa_o_null"}`)
	return b.String()
}

// nullable turns JSON null, "", "null" and non-string values without content into nil.
func nullable(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil
	}
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// inferredDocument keeps a model-reported RUC/DNI only when it normalizes to a
// valid 8 or 11 digit document.
func inferredDocument(v any) *string {
	s := nullable(v)
	if s == nil {
		return nil
	}
	doc, err := siek.NormalizeDocument(*s)
	if err != nil {
		return nil
	}
	return &doc
}

func searchPayload(ruc, sector, legal *string, confidence, source string) map[string]any {
	return map[string]any{
		"ruc":                   deref(ruc),
		"sector_rubro":          deref(sector),
		"razon_social_completa": deref(legal),
		"confianza":             confidence,
		"fuente":                source,
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func searchFailure(msg string) gateway.Result {
	return gateway.FailWith(searchPayload(nil, nil, nil, ConfidenceLow, SourceNotFound), "%s", msg)
}
