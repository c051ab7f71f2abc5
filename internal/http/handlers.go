package http

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

func (s *Server) handleCreateWorkspace(c echo.Context) error {
	var req CreateWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ws, err := s.coord.CreateWorkspace(c.Request().Context(), workspace.CreateWorkspaceRequest{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, ws)
}

func (s *Server) handleListWorkspaces(c echo.Context) error {
	list, err := s.coord.ListWorkspaces(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	if list == nil {
		list = []*workspace.Workspace{}
	}
	return c.JSON(http.StatusOK, ListWorkspacesResponse{Workspaces: list})
}

func (s *Server) handleGetWorkspace(c echo.Context) error {
	ws, err := s.coord.GetWorkspace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if ws == nil {
		return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
	}
	return c.JSON(http.StatusOK, ws)
}

func (s *Server) handleUpdateWorkspace(c echo.Context) error {
	var req UpdateWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ws, err := s.coord.UpdateWorkspace(c.Request().Context(), c.Param("id"), workspace.UpdateWorkspaceRequest{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ws)
}

func (s *Server) handleDeleteWorkspace(c echo.Context) error {
	deleted, err := s.coord.DeleteWorkspace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (s *Server) handleRetryVector(c echo.Context) error {
	ws, err := s.coord.RetryVectorCollection(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ws)
}

func (s *Server) handleRecount(c echo.Context) error {
	ws, err := s.coord.RecountDocuments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ws)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	hits, err := s.coord.Search(c.Request().Context(), c.Param("id"), req.Query, req.Limit)
	if err != nil {
		return s.fail(c, err)
	}
	if hits == nil {
		hits = []workspace.SearchHit{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: hits})
}

func (s *Server) handleCreateDocument(c echo.Context) error {
	var req CreateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	opts := workspace.EmbedOptions{
		Model:         req.Model,
		RecordFailure: s.config.RecordEmbedFailure,
		SkipEmbed:     req.Embed != nil && !*req.Embed,
	}
	doc, err := s.coord.CreateAndEmbedDocument(c.Request().Context(), c.Param("id"), workspace.CreateDocumentRequest{
		Name:         req.Name,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		Content:      req.Content,
		Metadata:     req.Metadata,
	}, opts)
	return s.respondCreated(c, doc, err)
}

func (s *Server) handleUploadDocument(c echo.Context) error {
	r := c.Request()
	r.Body = http.MaxBytesReader(c.Response(), r.Body, s.config.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
				"upload exceeds "+strconv.FormatInt(s.config.MaxUploadBytes, 10)+" bytes")
		}
		return echo.NewHTTPError(http.StatusBadRequest, `multipart field "file" is required`)
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer f.Close()

	embed := true
	if v := c.FormValue("embed"); v != "" {
		if embed, err = strconv.ParseBool(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "embed must be a boolean")
		}
	}

	doc, err := s.coord.UploadDocument(r.Context(), c.Param("id"), workspace.UploadRequest{
		Name:     c.FormValue("name"),
		FileName: fh.Filename,
		MimeType: fh.Header.Get(echo.HeaderContentType),
	}, f, workspace.EmbedOptions{
		Model:         c.FormValue("model"),
		RecordFailure: s.config.RecordEmbedFailure,
		SkipEmbed:     !embed,
	})
	return s.respondCreated(c, doc, err)
}

// respondCreated answers 201 for a stored document. A document that was
// stored but failed to embed is answered with 202 and the embed error.
func (s *Server) respondCreated(c echo.Context, doc *workspace.Document, err error) error {
	if err != nil && doc == nil {
		return s.fail(c, err)
	}
	if err != nil {
		s.logger.Warn(c.Request().Context(), "document stored without embedding",
			zap.String("workspace_id", doc.WorkspaceID),
			zap.String("document_id", doc.ID),
			zap.Error(err))
		return c.JSON(http.StatusAccepted, DocumentResponse{Document: doc, EmbedError: err.Error()})
	}
	return c.JSON(http.StatusCreated, DocumentResponse{Document: doc})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.coord.ListDocuments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if docs == nil {
		docs = []*workspace.Document{}
	}
	return c.JSON(http.StatusOK, ListDocumentsResponse{Documents: docs})
}

func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.coord.GetDocument(c.Request().Context(), c.Param("id"), c.Param("docId"))
	if err != nil {
		return s.fail(c, err)
	}
	if doc == nil {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.JSON(http.StatusOK, doc)
}

// handleDownloadDocument streams the original uploaded file.
func (s *Server) handleDownloadDocument(c echo.Context) error {
	doc, rc, err := s.coord.OpenDocumentFile(c.Request().Context(), c.Param("id"), c.Param("docId"))
	if err != nil {
		return s.fail(c, err)
	}
	defer rc.Close()

	name := doc.OriginalName
	if name == "" {
		name = doc.Name
	}
	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if doc.FileSize > 0 {
		h.Set(echo.HeaderContentLength, strconv.FormatInt(doc.FileSize, 10))
	}
	return c.Stream(http.StatusOK, doc.MimeType, rc)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	deleted, err := s.coord.DeleteDocument(c.Request().Context(), c.Param("id"), c.Param("docId"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (s *Server) handleEmbedDocument(c echo.Context) error {
	var req EmbedRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	doc, err := s.coord.EmbedDocument(c.Request().Context(), c.Param("id"), c.Param("docId"),
		workspace.EmbedOptions{Model: req.Model, RecordFailure: s.config.RecordEmbedFailure})
	if err != nil {
		return s.fail(c, err)
	}
	if doc == nil {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleUpdateContent(c echo.Context) error {
	var req UpdateContentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	wsID, docID := c.Param("id"), c.Param("docId")
	changed, err := s.coord.ReembedIfContentChanged(ctx, wsID, docID, req.Content,
		workspace.EmbedOptions{Model: req.Model, RecordFailure: s.config.RecordEmbedFailure})
	if err != nil && !changed {
		return s.fail(c, err)
	}

	resp := UpdateContentResponse{Changed: changed}
	status := http.StatusOK
	if err != nil {
		resp.EmbedError = err.Error()
		status = http.StatusAccepted
	}
	doc, getErr := s.coord.GetDocument(ctx, wsID, docID)
	if getErr != nil {
		s.logger.Warn(ctx, "reloading document failed", zap.Error(getErr))
	}
	resp.Document = doc
	return c.JSON(status, resp)
}
