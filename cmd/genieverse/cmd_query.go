// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// QueryResult mirrors the server's query response; only the fields the CLI
// renders are declared.
type QueryResult struct {
	Destination string `json:"destination"`
	Text        string `json:"text"`
	Truncated   bool   `json:"truncated"`
	Chart       *struct {
		Kind    string   `json:"kind"`
		Title   string   `json:"title"`
		XField  string   `json:"x_field"`
		YFields []string `json:"y_fields"`
		Rows    []map[string]any
	} `json:"chart,omitempty"`
	Dashboard *struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Charts []struct {
			Title string `json:"title"`
			Query string `json:"query"`
		} `json:"charts"`
	} `json:"dashboard,omitempty"`
}

// DashboardList mirrors GET /v1/genieverse/dashboards.
type DashboardList struct {
	Dashboards []struct {
		ID      string    `json:"id"`
		Title   string    `json:"title"`
		Query   string    `json:"query"`
		Created time.Time `json:"created"`
	} `json:"dashboards"`
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n---\n", question)

	result, err := sendQuery(question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	printResult(result)
}

func runChatCommand(_ *cobra.Command, _ []string) {
	fmt.Println("Genieverse chat. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := sendQuery(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func runDashboardsCommand(_ *cobra.Command, _ []string) {
	resp, err := http.Get(serverURL + "/v1/genieverse/dashboards")
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server returned %d: %s", resp.StatusCode, body)
	}

	var list DashboardList
	if err := json.Unmarshal(body, &list); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}
	if len(list.Dashboards) == 0 {
		fmt.Println("No saved dashboards.")
		return
	}
	for i, d := range list.Dashboards {
		fmt.Printf("%d. %s (%s)\n   created %s\n   query: %s\n",
			i+1, d.Title, d.ID, d.Created.Format(time.RFC3339), d.Query)
	}
}

// sendQuery posts one query to the server, animating a spinner while the
// request is in flight.
func sendQuery(query string) (*QueryResult, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	done := make(chan bool)
	go showSpinner("Thinking", done)

	resp, err := http.Post(serverURL+"/v1/genieverse/query", "application/json", bytes.NewReader(payload))
	done <- true
	fmt.Print("\r\033[K")

	if err != nil {
		return nil, fmt.Errorf("reaching server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}

	var result QueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// showSpinner animates a progress indicator until done receives.
func showSpinner(msg string, done chan bool) {
	chars := []string{"▖", "▘", "▝", "▗"}
	i := 0

	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h") // Restore cursor on exit

	for {
		select {
		case <-done:
			return
		default:
			fmt.Printf("\r%s  %s... \033[K", chars[i%len(chars)], msg)
			i++
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// printResult renders a query result for the terminal.
func printResult(r *QueryResult) {
	fmt.Println(r.Text)

	if r.Chart != nil {
		fmt.Printf("\n[%s] %s\n", r.Chart.Kind, r.Chart.Title)
		fmt.Printf("x: %s  y: %s  rows: %d\n",
			r.Chart.XField, strings.Join(r.Chart.YFields, ", "), len(r.Chart.Rows))
	}
	if r.Dashboard != nil {
		fmt.Printf("\nDashboard %s (%s)\n", r.Dashboard.Title, r.Dashboard.ID)
		for _, c := range r.Dashboard.Charts {
			fmt.Printf("  - %s\n", c.Title)
		}
	}
	if r.Truncated {
		fmt.Println("\n(note: the backend response was truncated; results show recovered records only)")
	}
}
