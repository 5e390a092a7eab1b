// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command genieverse is the terminal client for the Genieverse gateway.
//
// Usage:
//
//	genieverse ask "plot a bar chart of revenue by region"
//	genieverse chat
//	genieverse dashboards
//	genieverse --server http://analytics.internal:8080 ask "how many orders"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// serverURL holds the --server flag value.
var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "genieverse",
		Short: "Chat analytics client",
		Long:  "Genieverse turns natural-language questions into charts, tables, and dashboards.",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Genieverse server base URL")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Run:   runChatCommand,
	}

	dashboardsCmd := &cobra.Command{
		Use:   "dashboards",
		Short: "List saved dashboards",
		Run:   runDashboardsCommand,
	}

	rootCmd.AddCommand(askCmd, chatCmd, dashboardsCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
