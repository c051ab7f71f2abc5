// Package extract turns uploaded files into the plain text that gets embedded.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ErrUnsupportedType is returned for content we cannot turn into text.
var ErrUnsupportedType = errors.New("unsupported content type")

// DetectMIME resolves the effective content type from the declared type, the
// file extension and the leading bytes, in that order of trust.
func DetectMIME(declared, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if clean != "" && clean != "application/octet-stream" && clean != "application/zip" {
		return clean
	}

	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".md", ".markdown":
		return MIMEMarkdown
	case ".txt", ".text", ".log":
		return MIMEText
	case ".pdf":
		return MIMEPDF
	case ".docx":
		return MIMEDOCX
	case "":
	default:
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return strings.Split(byExt, ";")[0]
		}
	}

	if clean == "application/zip" && isDOCX(data) {
		return MIMEDOCX
	}
	return strings.Split(http.DetectContentType(data), ";")[0]
}

// Text extracts plain text from data according to its content type.
func Text(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	normalized := DetectMIME(mimeType, fileName, data)
	switch {
	case normalized == MIMEPDF:
		return extractPDF(data)
	case normalized == MIMEDOCX:
		return extractDOCX(data)
	case strings.HasPrefix(normalized, "text/"), normalized == "application/json":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedType, normalized)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, normalized)
	}
}

func extractPDF(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", errors.New("document.xml file not found")
}

// docxText keeps character data and breaks lines at paragraph ends.
func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func isDOCX(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
