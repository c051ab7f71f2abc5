package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// styleStatus colors a health or vector status word.
func styleStatus(s string) string {
	switch s {
	case "ok", string(workspace.VectorReady), string(workspace.StatusEmbedded):
		return okStyle.Render(s)
	case "degraded", string(workspace.VectorPending), string(workspace.StatusUploaded), string(workspace.StatusProcessing):
		return warnStyle.Render(s)
	default:
		return errStyle.Render(s)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func printWorkspaces(w io.Writer, list []*workspace.Workspace) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No workspaces found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDOCS\tEMBEDDED\tVECTOR\tCREATED")
	for _, ws := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			ws.ID,
			truncate(ws.Name, 30),
			ws.DocumentCount,
			ws.EmbeddedCount,
			ws.Vector.Status,
			ws.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func printWorkspace(w io.Writer, ws *workspace.Workspace) {
	fmt.Fprintf(w, "ID:          %s\n", ws.ID)
	fmt.Fprintf(w, "Name:        %s\n", ws.Name)
	if ws.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", ws.Description)
	}
	fmt.Fprintf(w, "Documents:   %d (%d embedded)\n", ws.DocumentCount, ws.EmbeddedCount)
	fmt.Fprintf(w, "Vector:      %s\n", styleStatus(string(ws.Vector.Status)))
	if ws.Vector.Error != "" {
		fmt.Fprintf(w, "             %s\n", dimStyle.Render(ws.Vector.Error))
	}
	fmt.Fprintf(w, "Created:     %s\n", ws.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Updated:     %s\n", ws.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printDocuments(w io.Writer, docs []*workspace.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tSTATUS\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			d.ID,
			truncate(d.Name, 30),
			d.MimeType,
			d.FileSize,
			d.Status,
			d.UploadedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func printDocument(w io.Writer, d *workspace.Document) {
	fmt.Fprintf(w, "ID:        %s\n", d.ID)
	fmt.Fprintf(w, "Workspace: %s\n", d.WorkspaceID)
	fmt.Fprintf(w, "Name:      %s\n", d.Name)
	if d.OriginalName != "" && d.OriginalName != d.Name {
		fmt.Fprintf(w, "File:      %s\n", d.OriginalName)
	}
	fmt.Fprintf(w, "Type:      %s\n", d.MimeType)
	fmt.Fprintf(w, "Size:      %d bytes\n", d.FileSize)
	fmt.Fprintf(w, "Status:    %s\n", styleStatus(string(d.Status)))
	if d.EmbedError != "" {
		fmt.Fprintf(w, "Error:     %s\n", d.EmbedError)
	}
	if d.EmbeddedAt != nil {
		fmt.Fprintf(w, "Embedded:  %s (%s)\n", d.EmbeddedAt.Format("2006-01-02 15:04:05"), d.EmbeddingModel)
	}
}
