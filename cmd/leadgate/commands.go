package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/analysis"
	"github.com/opentalon/leadgate/internal/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP intake server and scheduled jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	analyzeLeadID      int64
	analyzeCompany     string
	analyzeTaxID       string
	analyzeRequirement string
	analyzeChannel     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a stored lead or an ad-hoc one",
	Long: `Analyze runs one lead through the orchestrator and prints the outcome as JSON.

Examples:
  # Re-analyze a stored lead and persist the result
  leadgate analyze --lead-id 42

  # Try an ad-hoc lead without storing anything
  leadgate analyze --company "Acme SAC" --tax-id 20123456789 --requirement "cotizar balanzas"`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var invokeParams string

var invokeCmd = &cobra.Command{
	Use:   "invoke <capability>",
	Short: "Call one capability directly, bypassing the model",
	Long: `Invoke executes a single gateway capability with JSON parameters.

Examples:
  leadgate invoke buscar_en_siek --params '{"ruc":"20123456789"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the orchestrator configuration and gateway manifest",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	f := analyzeCmd.Flags()
	f.Int64Var(&analyzeLeadID, "lead-id", 0, "id of a stored lead")
	f.StringVar(&analyzeCompany, "company", "", "company name")
	f.StringVar(&analyzeTaxID, "tax-id", "", "RUC or DNI given by the lead")
	f.StringVar(&analyzeRequirement, "requirement", "", "free-text requirement")
	f.StringVar(&analyzeChannel, "channel", "CLI", "intake channel")

	invokeCmd.Flags().StringVar(&invokeParams, "params", "{}", "capability parameters as a JSON object")
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sched := a.scheduler()
		if err := sched.Start(a.cfg.Scheduler.Jobs); err != nil {
			return err
		}
		defer sched.Stop()
		a.logger.Info("leadgate starting",
			zap.String("addr", a.cfg.Server.Addr),
			zap.String("store", a.db.Driver()),
			zap.Strings("gateways", a.orch.ListGateways()),
			zap.Int("jobs", len(a.cfg.Scheduler.Jobs)))
		return a.server().Run(ctx, a.cfg.Server.Addr)
	})
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if analyzeLeadID > 0 {
			rec, err := a.leads.GetLead(ctx, analyzeLeadID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.service.Analyze(ctx, rec.Lead(), rec.ID))
		}
		// Ad-hoc leads have no row to attach a result to.
		svc := analysis.NewService(a.orch,
			analysis.WithLogger(a.logger.Named("analysis")),
			analysis.WithMaxIterations(a.cfg.Orchestrator.MaxIterations),
			analysis.WithSystemInstruction(a.cfg.Orchestrator.SystemInstruction))
		out := svc.Analyze(ctx, analysis.Lead{
			Company:     analyzeCompany,
			TaxID:       analyzeTaxID,
			Requirement: analyzeRequirement,
			Channel:     analyzeChannel,
		}, 0)
		return printJSON(cmd.OutOrStdout(), out)
	})
}

func runInvoke(cmd *cobra.Command, args []string) error {
	var params gateway.Params
	if err := json.Unmarshal([]byte(invokeParams), &params); err != nil {
		return fmt.Errorf("--params: %w", err)
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := a.orch.Invoke(ctx, args[0], params)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}

func runInfo(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(_ context.Context, a *app) error {
		return printJSON(cmd.OutOrStdout(), a.orch.Info())
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
