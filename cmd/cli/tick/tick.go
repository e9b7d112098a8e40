package tick

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/crucial707/a11y-monitor/cmd/cli/config"
	"github.com/spf13/cobra"
)

// InitTick registers the tick command on the root command.
func InitTick(rootCmd *cobra.Command) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tick",
		Short: "Trigger one control loop pass (admin)",
		Long:  "Run one due-schedule selection pass synchronously. Safe to retry; occurrences are deduplicated server-side.",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.ReadToken()
			if err != nil {
				return fmt.Errorf("not logged in: run 'a11y login' first")
			}

			req, err := http.NewRequest("POST", config.APIURL()+"/v1/tick", nil)
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
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
			}
			fmt.Println("Tick completed.")
			return nil
		},
	})
}
