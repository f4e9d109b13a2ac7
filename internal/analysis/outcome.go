package analysis

import (
	"github.com/opentalon/leadgate/internal/gateway"
	"github.com/opentalon/leadgate/internal/gateway/leads"
	"github.com/opentalon/leadgate/internal/orchestrator"
	"github.com/opentalon/leadgate/internal/siek"
)

// Source says where the company fields of an outcome came from.
type Source string

const (
	SourceRegistry  Source = "registry"
	SourceInference Source = "inference"
	SourceNone      Source = "none"
)

// Outcome is the business result of analyzing one lead.
type Outcome struct {
	LeadID          int64  `json:"lead_id"`
	RunID           string `json:"run_id,omitempty"`
	Success         bool   `json:"success"`
	MatchedSource   Source `json:"matched_source"`
	TaxID           string `json:"tax_id,omitempty"`
	Sector          string `json:"sector,omitempty"`
	LegalName       string `json:"legal_name,omitempty"`
	RequirementType string `json:"requirement_type,omitempty"`
	Confidence      string `json:"confidence,omitempty"`
	ModelText       string `json:"model_text,omitempty"`
	Error           string `json:"error,omitempty"`
}

// MatchLevel is 2 for a registry match, 1 for an inferred company and 0 otherwise.
func (o Outcome) MatchLevel() int {
	switch o.MatchedSource {
	case SourceRegistry:
		return 2
	case SourceInference:
		return 1
	default:
		return 0
	}
}

// Interpret extracts the business fields from a run's calls, walking them in
// order. A registry match is never replaced by an inference result, an
// inference result only replaces another with strictly higher confidence, and
// the same rule applies to requirement classifications. Confidence is the
// company-level confidence when there is one, otherwise the classification's.
func Interpret(calls []orchestrator.CallRecord) Outcome {
	out := Outcome{MatchedSource: SourceNone}
	var companyConf, reqConf string
	haveReq := false

	for _, rec := range calls {
		r := rec.Result
		p := gateway.Params(r.Payload)
		switch rec.Call.Name {
		case leads.CapLookup:
			found, _ := r.Payload["encontrado"].(bool)
			if !r.Success || !found || out.MatchedSource == SourceRegistry {
				continue
			}
			data, _ := r.Payload["data"].(map[string]any)
			d := gateway.Params(data)
			out.MatchedSource = SourceRegistry
			out.TaxID = d.String("NumeroDocumento")
			if out.TaxID == "" {
				out.TaxID = document(gateway.Params(rec.Call.Args).String("ruc"))
			}
			out.Sector = d.String("Segmento")
			out.LegalName = d.String("RazonSocial")
			companyConf = leads.ConfidenceHigh

		case leads.CapSearch:
			if !r.Success || out.MatchedSource == SourceRegistry {
				continue
			}
			ruc, sector := document(p.String("ruc")), p.String("sector_rubro")
			if ruc == "" && sector == "" {
				continue
			}
			conf := p.String("confianza")
			if out.MatchedSource == SourceInference && leads.ConfidenceRank(conf) <= leads.ConfidenceRank(companyConf) {
				continue
			}
			out.MatchedSource = SourceInference
			out.TaxID = ruc
			out.Sector = sector
			out.LegalName = p.String("razon_social_completa")
			companyConf = conf

		case leads.CapClassify:
			if !r.Success {
				continue
			}
			conf := p.String("confianza")
			if haveReq && leads.ConfidenceRank(conf) <= leads.ConfidenceRank(reqConf) {
				continue
			}
			haveReq = true
			out.RequirementType = p.String("tipo_requerimiento")
			reqConf = conf
		}
	}

	out.Confidence = companyConf
	if out.Confidence == "" {
		out.Confidence = reqConf
	}
	return out
}

// document normalizes a RUC/DNI, returning "" when it is not a valid document.
func document(s string) string {
	doc, err := siek.NormalizeDocument(s)
	if err != nil {
		return ""
	}
	return doc
}
