package main

import (
	"fmt"
	"os"

	"github.com/crucial707/a11y-monitor/cmd/cli/auth"
	"github.com/crucial707/a11y-monitor/cmd/cli/root"
	"github.com/crucial707/a11y-monitor/cmd/cli/runs"
	"github.com/crucial707/a11y-monitor/cmd/cli/schedules"
	"github.com/crucial707/a11y-monitor/cmd/cli/tick"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	schedules.InitSchedules(rootCmd)
	runs.InitRuns(rootCmd)
	tick.InitTick(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
