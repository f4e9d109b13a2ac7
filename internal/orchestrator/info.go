package orchestrator

import "github.com/opentalon/leadgate/internal/gateway"

type Info struct {
	Orchestrator  string         `json:"orchestrator"`
	TotalGateways int            `json:"total_gateways"`
	Gateways      []gateway.Info `json:"gateways"`
	Model         string         `json:"model"`
	MaxIterations int            `json:"max_iterations"`
}

type Health struct {
	Status        string `json:"status"`
	TotalGateways int    `json:"total_gateways"`
	Model         string `json:"model"`
}

func (o *Orchestrator) Info() Info {
	gws := o.registry.Gateways()
	infos := make([]gateway.Info, 0, len(gws))
	for _, g := range gws {
		infos = append(infos, gateway.Describe(g))
	}
	return Info{
		Orchestrator:  "leadgate",
		TotalGateways: len(infos),
		Gateways:      infos,
		Model:         o.modelName,
		MaxIterations: o.maxIterations,
	}
}

// Health reports healthy as long as at least one gateway is registered.
func (o *Orchestrator) Health() Health {
	n := o.registry.Len()
	status := "unhealthy"
	if n > 0 {
		status = "healthy"
	}
	return Health{Status: status, TotalGateways: n, Model: o.modelName}
}

func (o *Orchestrator) ListGateways() []string {
	return o.registry.Names()
}
