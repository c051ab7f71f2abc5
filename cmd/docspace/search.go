package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/docspace/internal/http"
)

func (c *cli) searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <workspace> <query...>",
		Short: "Semantic search over the embedded documents of a workspace",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httpserver.SearchRequest{
				Query: strings.Join(args[1:], " "),
				Limit: limit,
			}
			var resp httpserver.SearchResponse
			if _, err := c.client().do(cmd.Context(), http.MethodPost, workspacePath(args[0])+"/search", req, &resp); err != nil {
				return err
			}
			if c.json {
				return outputJSON(cmd.OutOrStdout(), resp)
			}

			out := cmd.OutOrStdout()
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results")
				return nil
			}
			for i, hit := range resp.Results {
				name := hit.Name
				if name == "" {
					name = hit.DocumentID
				}
				fmt.Fprintf(out, "%d. %s %s\n", i+1, name, dimStyle.Render(fmt.Sprintf("(%.3f)", hit.Score)))
				fmt.Fprintf(out, "   %s\n", truncate(strings.Join(strings.Fields(hit.Content), " "), 120))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum number of results")
	return cmd
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server and store health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpserver.HealthResponse
			_, err := c.client().do(cmd.Context(), http.MethodGet, "/health", nil, &resp)

			// A degraded server answers 503 with the same body.
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
				if jsonErr := json.Unmarshal([]byte(apiErr.Message), &resp); jsonErr != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			if c.json {
				if jsonErr := outputJSON(cmd.OutOrStdout(), resp); jsonErr != nil {
					return jsonErr
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Status: %s\n", styleStatus(resp.Status))
				names := make([]string, 0, len(resp.Services))
				for name := range resp.Services {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  %-10s %s\n", name, resp.Services[name])
				}
			}
			if resp.Status != "ok" {
				return fmt.Errorf("server is %s", resp.Status)
			}
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show workspace and document totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpserver.StatusResponse
			if _, err := c.client().do(cmd.Context(), http.MethodGet, "/api/v1/status", nil, &resp); err != nil {
				return err
			}
			if c.json {
				return outputJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:     %s (%s)\n", c.serverURL, resp.Version)
			fmt.Fprintf(out, "Status:     %s\n", styleStatus(resp.Status))
			fmt.Fprintf(out, "Workspaces: %d\n", resp.Counts.Workspaces)
			fmt.Fprintf(out, "Documents:  %d (%d embedded)\n", resp.Counts.Documents, resp.Counts.Embedded)
			if resp.Counts.VectorFailed > 0 {
				fmt.Fprintf(out, "%s %d workspace(s) need `docspace workspace retry-vector`\n",
					warnStyle.Render("warning:"), resp.Counts.VectorFailed)
			}
			return nil
		},
	}
}
