package runs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crucial707/a11y-monitor/cmd/cli/config"
	"github.com/crucial707/a11y-monitor/cmd/cli/output"
	"github.com/crucial707/a11y-monitor/internal/models"
	"github.com/spf13/cobra"
)

// InitRuns registers the runs command group on the root command.
func InitRuns(rootCmd *cobra.Command) {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect report run history",
	}
	runsCmd.AddCommand(listRunsCmd())
	rootCmd.AddCommand(runsCmd)
}

func listRunsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list [schedule-id]",
		Short: "List runs for a schedule, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Items []models.ReportRun `json:"items"`
				Total int                `json:"total"`
			}
			if err := apiGet("/v1/schedules/"+args[0]+"/runs", &resp); err != nil {
				return err
			}

			if asJSON {
				b, _ := json.MarshalIndent(resp.Items, "", "  ")
				fmt.Println(string(b))
				return nil
			}

			rows := make([][]interface{}, 0, len(resp.Items))
			for _, r := range resp.Items {
				score := "-"
				if r.Score != nil {
					score = fmt.Sprintf("%.1f", *r.Score)
				}
				rows = append(rows, []interface{}{
					r.ID, r.WindowKey, r.Status, score,
					r.StartedAt.Format(time.RFC3339), r.Error,
				})
			}
			output.RenderTable(
				[]string{"ID", "Window", "Status", "Score", "Started", "Error"},
				rows,
			)
			fmt.Printf("%d run(s) total\n", resp.Total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func apiGet(path string, out interface{}) error {
	token, err := config.ReadToken()
	if err != nil {
		return fmt.Errorf("not logged in: run 'a11y login' first")
	}

	req, err := http.NewRequest("GET", config.APIURL()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(bytes.TrimSpace(raw), out)
}
