package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/services/features"
	"SellerGuard/internal/services/risk"
	pkghttp "SellerGuard/pkg/http"

	"github.com/spf13/cobra"
)

type alertsOutput struct {
	Score  models.RiskScoreResult `json:"score"`
	Alerts []models.RankedAlert   `json:"alerts"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "riskctl",
		Short:         "Score seller metrics snapshots offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScoreCmd(), newAlertsCmd(), newPriorityCmd(), newExplainCmd())
	return root
}

func newScoreCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the risk score of a RiskFactors JSON document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := readFactors(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), risk.ComputeRiskScore(f))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "factors JSON file, - for stdin")
	return cmd
}

func newAlertsCmd() *cobra.Command {
	var file, previousFile string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Raise and rank alerts for a snapshot, optionally against a previous one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := readFactors(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			var previous *models.RiskFactors
			if previousFile != "" {
				p, err := readFactors(cmd.InOrStdin(), previousFile)
				if err != nil {
					return err
				}
				previous = &p
			}
			score := risk.ComputeRiskScore(current)
			raised := risk.GenerateAlerts(current, previous, score)
			return writeJSON(cmd.OutOrStdout(), alertsOutput{Score: score, Alerts: risk.RankAlerts(raised, nil)})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "current factors JSON file, - for stdin")
	cmd.Flags().StringVarP(&previousFile, "previous", "p", "", "previous factors JSON file")
	return cmd
}

func newPriorityCmd() *cobra.Command {
	var (
		alert   models.AlertConfig
		typ     string
		sev     string
		ignored int
	)
	cmd := &cobra.Command{
		Use:   "priority",
		Short: "Compute the 0-100 priority of one alert",
		RunE: func(cmd *cobra.Command, _ []string) error {
			alert.Type = models.AlertType(typ)
			alert.Severity = models.Severity(sev)
			if err := pkghttp.Validator().Struct(alert); err != nil {
				return fmt.Errorf("invalid alert: %w", err)
			}
			if ignored < 0 {
				return fmt.Errorf("--ignored must be >= 0")
			}
			p := risk.ComputeAlertPriority(alert, &models.UserHistory{IgnoredSimilarAlerts: ignored})
			return writeJSON(cmd.OutOrStdout(), map[string]int{"priority": p})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(models.AlertCancellationSpike), "alert type")
	cmd.Flags().StringVar(&sev, "severity", "", "low, medium, high or critical")
	cmd.Flags().Float64Var(&alert.Threshold, "threshold", 0, "rule threshold")
	cmd.Flags().Float64Var(&alert.CurrentValue, "current", 0, "current value")
	cmd.Flags().IntVar(&ignored, "ignored", 0, "similar alerts the seller ignored before")
	_ = cmd.MarkFlagRequired("severity")
	return cmd
}

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <rule>",
		Short: "Explain a marketplace penalty rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"type":        args[0],
				"known":       risk.IsKnownRule(args[0]),
				"explanation": risk.ExplainRule(args[0]),
			})
		},
	}
}

func readFactors(stdin io.Reader, path string) (models.RiskFactors, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.RiskFactors{}, err
		}
		defer f.Close()
		r = f
	}
	var out models.RiskFactors
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := features.ValidateFactors(out); err != nil {
		return out, err
	}
	return out, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
