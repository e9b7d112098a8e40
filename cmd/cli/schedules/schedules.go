package schedules

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

// InitSchedules registers the schedules command group on the root command.
func InitSchedules(rootCmd *cobra.Command) {
	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage scan-and-report schedules",
	}

	schedulesCmd.AddCommand(
		listSchedulesCmd(),
		createScheduleCmd(),
		getScheduleCmd(),
		deleteScheduleCmd(),
		actionCmd("enable", "Re-enable a schedule"),
		actionCmd("disable", "Pause a schedule"),
		actionCmd("reset", "Clear failures and re-enable (admin)"),
	)

	rootCmd.AddCommand(schedulesCmd)
}

func listSchedulesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Items []models.Schedule `json:"items"`
				Total int               `json:"total"`
			}
			if err := apiRequest("GET", "/v1/schedules", nil, &resp); err != nil {
				return err
			}

			if asJSON {
				b, _ := json.MarshalIndent(resp.Items, "", "  ")
				fmt.Println(string(b))
				return nil
			}

			rows := make([][]interface{}, 0, len(resp.Items))
			for _, s := range resp.Items {
				rows = append(rows, []interface{}{
					s.ID, s.TargetURL, s.Frequency, s.TimeOfDay, s.Timezone,
					s.Enabled, s.ConsecutiveFailures,
					s.NextRunAt.Format(time.RFC3339),
				})
			}
			output.RenderTable(
				[]string{"ID", "Target", "Frequency", "Time", "Timezone", "Enabled", "Failures", "Next Run"},
				rows,
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func createScheduleCmd() *cobra.Command {
	var (
		targetURL  string
		timezone   string
		frequency  string
		days       []int
		dayOfMonth int
		timeOfDay  string
		recipients []string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"target_url":    targetURL,
				"timezone":      timezone,
				"frequency":     strings.ToLower(frequency),
				"time_of_day":   timeOfDay,
				"recipients":    recipients,
				"report_format": format,
			}
			if len(days) > 0 {
				payload["days_of_week"] = days
			}
			if dayOfMonth > 0 {
				payload["day_of_month"] = dayOfMonth
			}

			var created models.Schedule
			if err := apiRequest("POST", "/v1/schedules", payload, &created); err != nil {
				return err
			}
			fmt.Printf("Schedule %d created. Next run at %s.\n",
				created.ID, created.NextRunAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "Target page URL")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone for the schedule")
	cmd.Flags().StringVar(&frequency, "frequency", "daily", "daily, weekly, or monthly")
	cmd.Flags().IntSliceVar(&days, "days", nil, "Days of week for weekly (0=Sunday)")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "Day of month for monthly (1-31)")
	cmd.Flags().StringVar(&timeOfDay, "time", "09:00", "Local time of day (HH:MM)")
	cmd.Flags().StringSliceVar(&recipients, "recipients", nil, "Report recipient email addresses")
	cmd.Flags().StringVar(&format, "format", "html", "Report format: html or pdf")

	return cmd
}

func getScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s models.Schedule
			if err := apiRequest("GET", "/v1/schedules/"+args[0], nil, &s); err != nil {
				return err
			}
			b, _ := json.MarshalIndent(s, "", "  ")
			fmt.Println(string(b))
			return nil
		},
	}
}

func deleteScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiRequest("DELETE", "/v1/schedules/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Println("Schedule deleted.")
			return nil
		},
	}
}

// actionCmd covers the enable/disable/reset lifecycle endpoints, which share
// the same shape: POST /v1/schedules/{id}/{action} and print the fresh row.
func actionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s models.Schedule
			if err := apiRequest("POST", "/v1/schedules/"+args[0]+"/"+action, nil, &s); err != nil {
				return err
			}
			state := "disabled"
			if s.Enabled {
				state = "enabled, next run at " + s.NextRunAt.Format(time.RFC3339)
			}
			fmt.Printf("Schedule %d %s.\n", s.ID, state)
			return nil
		},
	}
}

func apiRequest(method, path string, payload interface{}, out interface{}) error {
	token, err := config.ReadToken()
	if err != nil {
		return fmt.Errorf("not logged in: run 'a11y login' first")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, config.APIURL()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}
