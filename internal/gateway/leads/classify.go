package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/model"
)

const (
	TypeProductPurchase  = "compra_producto"
	TypeTechnicalService = "servicio_tecnico"
)

// ClassifyGeneration is the sampling used for requirement classification.
var ClassifyGeneration = model.GenerationConfig{
	Temperature:     0.3,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 300,
}

type classifyParams struct {
	Text    string `json:"texto_requerimiento" jsonschema:"required" jsonschema_description:"Texto del requerimiento del lead a analizar. Puede ser desde una frase corta hasta varios párrafos."`
	Company string `json:"empresa_nombre,omitempty" jsonschema_description:"Nombre de la empresa del lead (opcional). Ayuda a proporcionar contexto adicional para el análisis."`
	Channel string `json:"origen,omitempty" jsonschema_description:"Origen del lead (opcional): web, email, teléfono, etc. Puede influir en el tipo de requerimiento."`
}

// ClassifyRequirement asks the model whether a requirement is a product purchase
// or a technical service request.
type ClassifyRequirement struct {
	model model.Client
	decl  gateway.Declaration
}

func NewClassifyRequirement(m model.Client) *ClassifyRequirement {
	return &ClassifyRequirement{
		model: m,
		decl: gateway.Declare(CapClassify,
			"Analiza un texto de requerimiento de un lead para clasificarlo como 'compra_producto' (cotización, compra, precio, etc.) "+
				"o 'servicio_tecnico' (calibración, mantenimiento, reparación, etc.). "+
				"Retorna el tipo identificado, nivel de confianza y razonamiento.",
			classifyParams{}),
	}
}

func (c *ClassifyRequirement) Declaration() gateway.Declaration { return c.decl }

func (c *ClassifyRequirement) Execute(ctx context.Context, params gateway.Params) gateway.Result {
	var in classifyParams
	if err := gateway.DecodeParams(params, &in); err != nil {
		return classifyFailure("Parametros invalidos", err.Error())
	}
	if in.Text == "" {
		return classifyFailure("No se proporciono texto de requerimiento", "Texto de requerimiento vacio")
	}
	if c.model == nil {
		return classifyFailure("Error de configuracion", model.ErrMissingAPIKey.Error())
	}

	resp, err := c.model.Generate(ctx, &model.Request{
		Turns:      []model.Turn{model.UserText(classifyPrompt(in.Text, in.Company, in.Channel))},
		Generation: ClassifyGeneration,
	})
	if err != nil {
		return classifyFailure("Error al analizar con IA", err.Error())
	}
	answer := resp.Turn.Text()
	if strings.TrimSpace(answer) == "" {
		return classifyFailure("No se pudo obtener respuesta de IA", "Respuesta vacia del modelo")
	}

	var parsed struct {
		Type       string `json:"tipo"`
		Confidence string `json:"confianza"`
		Reasoning  string `json:"razonamiento"`
	}
	if err := model.DecodeJSON(answer, &parsed); err != nil {
		return classifyFailure("Error al interpretar respuesta de IA", "No se pudo parsear respuesta JSON")
	}

	reqType := TypeProductPurchase
	if parsed.Type == TypeTechnicalService {
		reqType = TypeTechnicalService
	}
	confidence := parsed.Confidence
	if !isConfidence(confidence) {
		confidence = ConfidenceMedium
	}
	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "Analisis completado con IA"
	}
	return gateway.OK(map[string]any{
		"tipo_requerimiento": reqType,
		"confianza":          confidence,
		"razonamiento":       reasoning,
	})
}

func classifyPrompt(text, company, channel string) string {
	var b strings.Builder
	b.WriteString("Analiza el siguiente requerimiento de un cliente y clasifícalo como:\n")
	b.WriteString(`- "compra_producto": si el cliente quiere COMPRAR, COTIZAR, o ADQUIRIR productos/equipos` + "\n")
	b.WriteString(`- "servicio_tecnico": si el cliente necesita CALIBRACIÓN, MANTENIMIENTO, REPARACIÓN, INSTALACIÓN, o cualquier SERVICIO TÉCNICO` + "\n\n")
	fmt.Fprintf(&b, "Requerimiento: %q\n", text)
	if company != "" {
		fmt.Fprintf(&b, "\nEmpresa: %s", company)
	}
	if channel != "" {
		fmt.Fprintf(&b, "\nOrigen: %s", channel)
	}
	b.WriteString("\n\nResponde ÚNICAMENTE con un JSON (sin markdown, sin bloques de código):\n")
	b.WriteString("{\n")
	b.WriteString(`  "tipo": "compra_producto" o "servicio_tecnico",` + "\n")
	b.WriteString(`  "confianza": "alta", "media" o "baja",` + "\n")
	b.WriteString(`  "razonamiento": "breve explicación de tu decisión"` + "\n")
	b.WriteString("}")
	return b.String()
}

func classifyFailure(reasoning, errMsg string) gateway.Result {
	return gateway.FailWith(map[string]any{
		"tipo_requerimiento": TypeProductPurchase,
		"confianza":          ConfidenceLow,
		"razonamiento":       reasoning,
	}, "%s", errMsg)
}
