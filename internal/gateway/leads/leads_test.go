package leads

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/model"
	"github.com/opentalon/leadgate/internal/siek"
)

type fakeRegistry struct {
	configured bool
	result     siek.LookupResult
	docs       []string
}

func (f *fakeRegistry) Configured() bool { return f.configured }

func (f *fakeRegistry) Lookup(_ context.Context, doc string) siek.LookupResult {
	f.docs = append(f.docs, doc)
	return f.result
}

// textModel answers every request with the same text and records the requests.
type textModel struct {
	text     string
	err      error
	requests []*model.Request
}

func (m *textModel) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &model.Response{Turn: model.Turn{Role: model.RoleModel, Parts: []model.Part{{Text: m.text}}}}, nil
}

func TestGatewayDeclarations(t *testing.T) {
	g := New(&fakeRegistry{}, &textModel{}, nil)
	if g.Name() != "gateway_leads" {
		t.Errorf("Name() = %q", g.Name())
	}
	want := map[string][]string{
		"buscar_en_siek":         {"ruc"},
		"analizar_requerimiento": {"texto_requerimiento"},
		"buscar_info_empresa":    {"nombre_empresa"},
	}
	decls := g.Declarations()
	if len(decls) != 3 {
		t.Fatalf("got %d declarations", len(decls))
	}
	for _, d := range decls {
		req, ok := want[d.Name]
		if !ok {
			t.Errorf("unexpected capability %q", d.Name)
			continue
		}
		if strings.Join(d.RequiredParams(), ",") != strings.Join(req, ",") {
			t.Errorf("%s required = %v, want %v", d.Name, d.RequiredParams(), req)
		}
	}
	search := decls[2].Parameters
	for _, p := range []string{"nombre_empresa", "departamento", "contexto"} {
		if _, ok := search.Properties[p]; !ok {
			t.Errorf("buscar_info_empresa missing property %q", p)
		}
	}
}

func TestLookupFound(t *testing.T) {
	reg := &fakeRegistry{configured: true, result: siek.LookupResult{
		Status:   siek.StatusFound,
		Document: "20123456789",
		Customer: &siek.Customer{LegalName: "ACME SAC"},
		Raw:      map[string]any{"RazonSocial": "ACME SAC", "Segmento": "Minería"},
	}}
	g := New(reg, nil, nil)

	res := g.Execute(context.Background(), CapLookup, gateway.Params{"ruc": " 20-123456789 "})
	if !res.Success {
		t.Fatalf("lookup failed: %s", res.Error)
	}
	if res.Payload["encontrado"] != true {
		t.Errorf("encontrado = %v", res.Payload["encontrado"])
	}
	if !strings.Contains(res.Payload["mensaje"].(string), "ACME SAC") {
		t.Errorf("mensaje = %v", res.Payload["mensaje"])
	}
	if len(reg.docs) != 1 || reg.docs[0] != "20123456789" {
		t.Errorf("registry queried with %v", reg.docs)
	}
}

func TestLookupNotFoundIsSuccess(t *testing.T) {
	reg := &fakeRegistry{configured: true, result: siek.LookupResult{Status: siek.StatusNotFound}}
	res := NewLookupClient(reg).Execute(context.Background(), gateway.Params{"ruc": "45678901"})
	if !res.Success {
		t.Fatalf("not found should succeed: %s", res.Error)
	}
	if res.Payload["encontrado"] != false {
		t.Errorf("encontrado = %v", res.Payload["encontrado"])
	}
}

func TestLookupFailures(t *testing.T) {
	tests := []struct {
		name    string
		reg     *fakeRegistry
		ruc     any
		wantErr string
		queried bool
	}{
		{"empty", &fakeRegistry{configured: true}, "  ", "no proporcionado", false},
		{"short", &fakeRegistry{configured: true}, "12345", "invalido", false},
		{"unconfigured", &fakeRegistry{}, "20123456789", "API Key", false},
		{"upstream", &fakeRegistry{configured: true, result: siek.LookupResult{Status: siek.StatusFailed, Reason: "HTTP 502"}}, "20123456789", "HTTP 502", true},
		{"numeric ruc", &fakeRegistry{configured: true, result: siek.LookupResult{Status: siek.StatusFailed, Reason: "boom"}}, float64(20123456789), "boom", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewLookupClient(tt.reg).Execute(context.Background(), gateway.Params{"ruc": tt.ruc})
			if res.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("Error = %q, want substring %q", res.Error, tt.wantErr)
			}
			if res.Payload["encontrado"] != false {
				t.Errorf("encontrado = %v", res.Payload["encontrado"])
			}
			if got := len(tt.reg.docs) > 0; got != tt.queried {
				t.Errorf("queried = %v, want %v", got, tt.queried)
			}
		})
	}
}

func TestClassifyRequirement(t *testing.T) {
	tests := []struct {
		name           string
		answer         string
		wantType       string
		wantConfidence string
	}{
		{"service", `{"tipo":"servicio_tecnico","confianza":"alta","razonamiento":"pide calibración"}`, TypeTechnicalService, ConfidenceHigh},
		{"fenced purchase", "```json\n{\"tipo\":\"compra_producto\",\"confianza\":\"baja\"}\n```", TypeProductPurchase, ConfidenceLow},
		{"unknown type", `{"tipo":"otro","confianza":"media"}`, TypeProductPurchase, ConfidenceMedium},
		{"unknown confidence", `{"tipo":"servicio_tecnico","confianza":"altísima"}`, TypeTechnicalService, ConfidenceMedium},
		{"prose around json", `Claro: {"tipo":"servicio_tecnico","confianza":"media"} listo`, TypeTechnicalService, ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &textModel{text: tt.answer}
			res := NewClassifyRequirement(m).Execute(context.Background(), gateway.Params{
				"texto_requerimiento": "Necesito calibrar 3 balanzas",
				"empresa_nombre":      "ACME",
			})
			if !res.Success {
				t.Fatalf("classify failed: %s", res.Error)
			}
			if res.Payload["tipo_requerimiento"] != tt.wantType {
				t.Errorf("tipo_requerimiento = %v, want %s", res.Payload["tipo_requerimiento"], tt.wantType)
			}
			if res.Payload["confianza"] != tt.wantConfidence {
				t.Errorf("confianza = %v, want %s", res.Payload["confianza"], tt.wantConfidence)
			}
			if res.Payload["razonamiento"] == "" {
				t.Error("razonamiento is empty")
			}
		})
	}
}

func TestClassifyRequest(t *testing.T) {
	m := &textModel{text: `{"tipo":"compra_producto","confianza":"alta"}`}
	NewClassifyRequirement(m).Execute(context.Background(), gateway.Params{
		"texto_requerimiento": "Cotización de 2 multímetros",
		"origen":              "web",
	})
	if len(m.requests) != 1 {
		t.Fatalf("got %d model requests", len(m.requests))
	}
	req := m.requests[0]
	if req.Generation != ClassifyGeneration {
		t.Errorf("Generation = %+v", req.Generation)
	}
	if req.WebSearch || len(req.Tools) != 0 {
		t.Error("classification must not use tools")
	}
	prompt := req.Turns[0].Text()
	for _, want := range []string{`Requerimiento: "Cotización de 2 multímetros"`, "Origen: web", "servicio_tecnico"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Empresa:") {
		t.Error("prompt mentions empty company")
	}
}

func TestClassifyFailuresReportDefaults(t *testing.T) {
	tests := []struct {
		name  string
		model model.Client
		text  string
	}{
		{"empty text", &textModel{}, "   "},
		{"no model", nil, "algo"},
		{"model error", &textModel{err: errors.New("quota")}, "algo"},
		{"empty answer", &textModel{text: " "}, "algo"},
		{"not json", &textModel{text: "no sé"}, "algo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewClassifyRequirement(tt.model).Execute(context.Background(), gateway.Params{"texto_requerimiento": tt.text})
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Error == "" {
				t.Error("missing error")
			}
			if res.Payload["tipo_requerimiento"] != TypeProductPurchase || res.Payload["confianza"] != ConfidenceLow {
				t.Errorf("payload = %v", res.Payload)
			}
		})
	}
}

func TestSearchCompanyConfidence(t *testing.T) {
	tests := []struct {
		name           string
		answer         string
		wantSuccess    bool
		wantConfidence string
		wantRUC        any
		wantSource     string
	}{
		{"all fields", `{"ruc":"20100047218","sector_rubro":"Banca","razon_social":"BANCO DE CREDITO DEL PERU"}`, true, ConfidenceHigh, "20100047218", SourceWeb},
		{"ruc and sector", `{"ruc":"20100047218","sector_rubro":"Banca","razon_social":null}`, true, ConfidenceMedium, "20100047218", SourceWeb},
		{"sector only", `{"ruc":"null","sector_rubro":"Pesquera","razon_social":"null"}`, true, ConfidenceLow, nil, SourceWeb},
		{"numeric ruc", `{"ruc":20100047218,"sector_rubro":null}`, true, ConfidenceLow, "20100047218", SourceWeb},
		{"nothing", `{"ruc":null,"sector_rubro":"","razon_social":"NULL"}`, false, ConfidenceLow, nil, SourceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewSearchCompany(&textModel{text: tt.answer}).Execute(context.Background(), gateway.Params{"nombre_empresa": "BCP"})
			if res.Success != tt.wantSuccess {
				t.Fatalf("Success = %v (error %q)", res.Success, res.Error)
			}
			if res.Payload["confianza"] != tt.wantConfidence {
				t.Errorf("confianza = %v, want %s", res.Payload["confianza"], tt.wantConfidence)
			}
			if res.Payload["ruc"] != tt.wantRUC {
				t.Errorf("ruc = %v, want %v", res.Payload["ruc"], tt.wantRUC)
			}
			if res.Payload["fuente"] != tt.wantSource {
				t.Errorf("fuente = %v, want %s", res.Payload["fuente"], tt.wantSource)
			}
		})
	}
}

func TestSearchCompanyValidatesRUC(t *testing.T) {
	tests := []struct {
		name           string
		ruc            string
		wantRUC        any
		wantConfidence string
	}{
		{"prose", `"No encontrado"`, nil, ConfidenceLow},
		{"too short", `"123456789"`, nil, ConfidenceLow},
		{"dashed ruc", `"20-10004721-8"`, "20100047218", ConfidenceMedium},
		{"spaced dni", `"4567 8901"`, "45678901", ConfidenceMedium},
		{"ruc", `"20100047218"`, "20100047218", ConfidenceMedium},
		{"dni", `"45678901"`, "45678901", ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := `{"ruc":` + tt.ruc + `,"sector_rubro":"Minería","razon_social":null}`
			res := NewSearchCompany(&textModel{text: answer}).Execute(context.Background(), gateway.Params{"nombre_empresa": "Acme"})
			if !res.Success {
				t.Fatalf("search failed: %s", res.Error)
			}
			if res.Payload["ruc"] != tt.wantRUC {
				t.Errorf("ruc = %v, want %v", res.Payload["ruc"], tt.wantRUC)
			}
			if res.Payload["confianza"] != tt.wantConfidence {
				t.Errorf("confianza = %v, want %s", res.Payload["confianza"], tt.wantConfidence)
			}
		})
	}
}

func TestSearchCompanyRequest(t *testing.T) {
	m := &textModel{text: `{"ruc":null}`}
	NewSearchCompany(m).Execute(context.Background(), gateway.Params{
		"nombre_empresa": "Pesquera Diamante",
		"departamento":   "Lima",
		"contexto":       "RUC conocido: 20100000001",
	})
	req := m.requests[0]
	if !req.WebSearch {
		t.Error("search must enable web search")
	}
	if req.Generation != SearchGeneration {
		t.Errorf("Generation = %+v", req.Generation)
	}
	prompt := req.Turns[0].Text()
	for _, want := range []string{`"Pesquera Diamante"`, "ubicada en Lima, Perú", "Contexto adicional: RUC conocido: 20100000001"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSearchCompanyFailures(t *testing.T) {
	tests := []struct {
		name  string
		model model.Client
		company string
	}{
		{"blank name", &textModel{}, " "},
		{"no model", nil, "ACME"},
		{"model error", &textModel{err: errors.New("503")}, "ACME"},
		{"garbage", &textModel{text: "lo siento"}, "ACME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewSearchCompany(tt.model).Execute(context.Background(), gateway.Params{"nombre_empresa": tt.company})
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Payload["fuente"] != SourceNotFound || res.Payload["ruc"] != nil {
				t.Errorf("payload = %v", res.Payload)
			}
		})
	}
}

func TestConfidenceRank(t *testing.T) {
	if !(ConfidenceRank(ConfidenceHigh) > ConfidenceRank(ConfidenceMedium) &&
		ConfidenceRank(ConfidenceMedium) > ConfidenceRank(ConfidenceLow) &&
		ConfidenceRank(ConfidenceLow) > ConfidenceRank("")) {
		t.Error("confidence ranks out of order")
	}
}
