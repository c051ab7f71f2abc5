package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/docspace/internal/http"
	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

func documentPath(workspaceID, documentID string) string {
	return workspacePath(workspaceID) + "/documents/" + url.PathEscape(documentID)
}

func (c *cli) docCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doc",
		Aliases: []string{"document"},
		Short:   "Manage documents in a workspace",
	}
	cmd.AddCommand(
		c.docAddCmd(),
		c.docUploadCmd(),
		c.docListCmd(),
		c.docGetCmd(),
		c.docDeleteCmd(),
		c.docEmbedCmd(),
		c.docUpdateCmd(),
		c.docDownloadCmd(),
	)
	return cmd
}

func (c *cli) docAddCmd() *cobra.Command {
	var (
		name, text, mimeType, model string
		noEmbed                     bool
	)
	cmd := &cobra.Command{
		Use:   "add <workspace> [file]",
		Short: "Add a text document from --text or a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httpserver.CreateDocumentRequest{
				Name:     name,
				MimeType: mimeType,
				Content:  text,
				Model:    model,
			}
			if len(args) == 2 {
				if cmd.Flags().Changed("text") {
					return fmt.Errorf("use either a file or --text, not both")
				}
				data, err := os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", args[1], err)
				}
				req.Content = string(data)
				req.OriginalName = filepath.Base(args[1])
				if req.Name == "" {
					req.Name = req.OriginalName
				}
			}
			if req.Name == "" {
				return fmt.Errorf("--name is required with --text")
			}
			if noEmbed {
				embed := false
				req.Embed = &embed
			}

			var resp httpserver.DocumentResponse
			status, err := c.client().do(cmd.Context(), http.MethodPost, workspacePath(args[0])+"/documents", req, &resp)
			if err != nil {
				return err
			}
			return c.printCreated(cmd, status, resp)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "document name (default: file name)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "document content")
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "MIME type (default text/plain)")
	cmd.Flags().StringVar(&model, "model", "", "embedding model label")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "store without embedding")
	return cmd
}

func (c *cli) docUploadCmd() *cobra.Command {
	var (
		name, model string
		noEmbed     bool
	)
	cmd := &cobra.Command{
		Use:   "upload <workspace> <file>",
		Short: "Upload a file and extract its text",
		Long: `Upload sends a file as multipart form data. The server stores the
original bytes and extracts text from plain text, Markdown, JSON and PDF.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]string{"name": name, "model": model}
			if noEmbed {
				fields["embed"] = strconv.FormatBool(false)
			}
			var resp httpserver.DocumentResponse
			status, err := c.client().upload(cmd.Context(), workspacePath(args[0])+"/documents/upload", args[1], fields, &resp)
			if err != nil {
				return err
			}
			return c.printCreated(cmd, status, resp)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "document name (default: file name)")
	cmd.Flags().StringVar(&model, "model", "", "embedding model label")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "store without embedding")
	return cmd
}

func (c *cli) docListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list <workspace>",
		Aliases: []string{"ls"},
		Short:   "List documents in a workspace",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.ListDocumentsResponse
			if _, err := c.client().do(cmd.Context(), http.MethodGet, workspacePath(args[0])+"/documents", nil, &resp); err != nil {
				return err
			}
			if c.json {
				return outputJSON(cmd.OutOrStdout(), resp)
			}
			printDocuments(cmd.OutOrStdout(), resp.Documents)
			return nil
		},
	}
}

func (c *cli) docGetCmd() *cobra.Command {
	var showContent bool
	cmd := &cobra.Command{
		Use:   "get <workspace> <document>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc workspace.Document
			if _, err := c.client().do(cmd.Context(), http.MethodGet, documentPath(args[0], args[1]), nil, &doc); err != nil {
				return err
			}
			if c.json {
				return outputJSON(cmd.OutOrStdout(), doc)
			}
			printDocument(cmd.OutOrStdout(), &doc)
			if showContent {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", doc.Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showContent, "content", false, "print the document text")
	return cmd
}

func (c *cli) docDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <workspace> <document>",
		Aliases: []string{"rm"},
		Short:   "Delete a document",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpserver.DeleteResponse
			if _, err := c.client().do(cmd.Context(), http.MethodDelete, documentPath(args[0], args[1]), nil, &resp); err != nil {
				return err
			}
			return c.printDeleted(cmd, "document", args[1], resp)
		},
	}
}

func (c *cli) docEmbedCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "embed <workspace> <document>",
		Short: "Embed (or re-embed) a stored document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if model != "" {
				body = httpserver.EmbedRequest{Model: model}
			}
			var doc workspace.Document
			if _, err := c.client().do(cmd.Context(), http.MethodPost, documentPath(args[0], args[1])+"/embed", body, &doc); err != nil {
				return err
			}
			if c.json {
				return outputJSON(cmd.OutOrStdout(), doc)
			}
			printDocument(cmd.OutOrStdout(), &doc)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "embedding model label")
	return cmd
}

func (c *cli) docUpdateCmd() *cobra.Command {
	var text, model string
	cmd := &cobra.Command{
		Use:   "update <workspace> <document> [file]",
		Short: "Replace document content and re-embed if it changed",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := text
			if len(args) == 3 {
				data, err := os.ReadFile(args[2])
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", args[2], err)
				}
				content = string(data)
			} else if !cmd.Flags().Changed("text") {
				return fmt.Errorf("provide a file or --text")
			}

			var resp httpserver.UpdateContentResponse
			_, err := c.client().do(cmd.Context(), http.MethodPut, documentPath(args[0], args[1])+"/content",
				httpserver.UpdateContentRequest{Content: content, Model: model}, &resp)
			if err != nil {
				return err
			}
			if c.json {
				return outputJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			if !resp.Changed {
				fmt.Fprintln(out, "Content unchanged")
				return nil
			}
			if resp.Document != nil {
				printDocument(out, resp.Document)
			}
			if resp.EmbedError != "" {
				fmt.Fprintf(out, "%s content saved but not embedded: %s\n", warnStyle.Render("warning:"), resp.EmbedError)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "new content")
	cmd.Flags().StringVar(&model, "model", "", "embedding model label")
	return cmd
}

func (c *cli) docDownloadCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <workspace> <document>",
		Short: "Download the original uploaded file",
		Long: `Download writes the stored file to --output, or to its original name in
the current directory. Use --output - to write to stdout.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "-" {
				_, err := c.client().download(cmd.Context(), documentPath(args[0], args[1])+"/file", cmd.OutOrStdout())
				return err
			}

			var buf bytes.Buffer
			name, err := c.client().download(cmd.Context(), documentPath(args[0], args[1])+"/file", &buf)
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				dest = name
			}
			if dest == "" || dest == "." || dest == string(filepath.Separator) {
				dest = args[1]
			}
			if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", dest, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", dest, buf.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default: original name)")
	return cmd
}

// printCreated reports a new document. 202 means it was stored but embedding
// failed.
func (c *cli) printCreated(cmd *cobra.Command, status int, resp httpserver.DocumentResponse) error {
	if c.json {
		return outputJSON(cmd.OutOrStdout(), resp)
	}
	out := cmd.OutOrStdout()
	if resp.Document != nil {
		printDocument(out, resp.Document)
	}
	if status == http.StatusAccepted {
		fmt.Fprintf(out, "%s document stored but not embedded: %s\n", warnStyle.Render("warning:"), resp.EmbedError)
	}
	return nil
}
