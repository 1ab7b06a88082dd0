package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrichOrgID string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Merge pending learning events into an organization's knowledge base",
	Long: `Merge pending learning events into an organization's knowledge base.

Events whose decayed confidence is below the apply threshold stay pending.
Events that map to no knowledge base field are consumed without changing it.
The merge result is printed as JSON.`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringVar(&enrichOrgID, "org", "", "Organization ID (UUID)")
	_ = enrichCmd.MarkFlagRequired("org")
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	orgID, err := uuid.Parse(enrichOrgID)
	if err != nil {
		return fmt.Errorf("invalid --org %q: %w", enrichOrgID, err)
	}

	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	c, err := newCore(rt)
	if err != nil {
		return err
	}

	result, err := c.enrichment.ApplyNow(cmd.Context(), orgID)
	if err != nil {
		return fmt.Errorf("failed to apply learning events: %w", err)
	}
	rt.logger.Info("Applied learning events",
		zap.String("organization_id", orgID.String()),
		zap.Int("applied", result.Applied),
		zap.Int("enrichment_version", result.EnrichmentVersion))

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
