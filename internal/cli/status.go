package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhollis/recollect/internal/config"
	"github.com/jhollis/recollect/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tier counts from a running instance",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + cfg.ListenAddr() + "/api/status")
	if err != nil {
		return fmt.Errorf("is recollect running? %w", err)
	}
	defer resp.Body.Close()

	var status map[string]engine.TierStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	tiers := make([]string, 0, len(status))
	for t := range status {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)

	for _, t := range tiers {
		st := status[t]
		fmt.Printf("%-12s %4d items  last updated %s\n",
			t, st.ItemCount, st.LastUpdated.Format(time.RFC3339))
	}
	return nil
}
