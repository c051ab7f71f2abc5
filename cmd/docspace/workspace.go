package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/docspace/internal/http"
	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

func workspacePath(id string) string {
	return "/api/v1/workspaces/" + url.PathEscape(id)
}

func (c *cli) workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}
	cmd.AddCommand(
		c.workspaceCreateCmd(),
		c.workspaceListCmd(),
		c.workspaceGetCmd(),
		c.workspaceUpdateCmd(),
		c.workspaceDeleteCmd(),
		c.workspaceRetryCmd(),
		c.workspaceRecountCmd(),
	)
	return cmd
}

func (c *cli) workspaceCreateCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ws workspace.Workspace
			_, err := c.client().do(cmd.Context(), http.MethodPost, "/api/v1/workspaces",
				httpserver.CreateWorkspaceRequest{Name: args[0], Description: description}, &ws)
			if err != nil {
				return err
			}
			return c.printWorkspace(cmd, &ws)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "workspace description")
	return cmd
}

func (c *cli) workspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List workspaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpserver.ListWorkspacesResponse
			if _, err := c.client().do(cmd.Context(), http.MethodGet, "/api/v1/workspaces", nil, &resp); err != nil {
				return err
			}
			if c.json {
				return outputJSON(cmd.OutOrStdout(), resp)
			}
			printWorkspaces(cmd.OutOrStdout(), resp.Workspaces)
			return nil
		},
	}
}

func (c *cli) workspaceGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ws workspace.Workspace
			if _, err := c.client().do(cmd.Context(), http.MethodGet, workspacePath(args[0]), nil, &ws); err != nil {
				return err
			}
			return c.printWorkspace(cmd, &ws)
		},
	}
}

func (c *cli) workspaceUpdateCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a workspace or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req httpserver.UpdateWorkspaceRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if req.Name == nil && req.Description == nil {
				return fmt.Errorf("nothing to update: set --name or --description")
			}
			var ws workspace.Workspace
			if _, err := c.client().do(cmd.Context(), http.MethodPatch, workspacePath(args[0]), req, &ws); err != nil {
				return err
			}
			return c.printWorkspace(cmd, &ws)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func (c *cli) workspaceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a workspace with all of its documents",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.DeleteResponse
			if _, err := c.client().do(cmd.Context(), http.MethodDelete, workspacePath(args[0]), nil, &resp); err != nil {
				return err
			}
			return c.printDeleted(cmd, "workspace", args[0], resp)
		},
	}
}

func (c *cli) workspaceRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-vector <id>",
		Short: "Retry creating the vector collection of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ws workspace.Workspace
			if _, err := c.client().do(cmd.Context(), http.MethodPost, workspacePath(args[0])+"/vector/retry", nil, &ws); err != nil {
				return err
			}
			return c.printWorkspace(cmd, &ws)
		},
	}
}

func (c *cli) workspaceRecountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount <id>",
		Short: "Recompute document counters from stored documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ws workspace.Workspace
			if _, err := c.client().do(cmd.Context(), http.MethodPost, workspacePath(args[0])+"/recount", nil, &ws); err != nil {
				return err
			}
			return c.printWorkspace(cmd, &ws)
		},
	}
}

func (c *cli) printWorkspace(cmd *cobra.Command, ws *workspace.Workspace) error {
	if c.json {
		return outputJSON(cmd.OutOrStdout(), ws)
	}
	printWorkspace(cmd.OutOrStdout(), ws)
	return nil
}

func (c *cli) printDeleted(cmd *cobra.Command, kind, id string, resp httpserver.DeleteResponse) error {
	if c.json {
		return outputJSON(cmd.OutOrStdout(), resp)
	}
	if resp.Deleted {
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kind, id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "No %s %s\n", kind, id)
	}
	return nil
}
