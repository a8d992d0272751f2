// Package parser extracts plain text from files on disk. It is the
// default ingest.Extractor for file sources.
package parser

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gtext "github.com/yuin/goldmark/text"

	"document-intel/internal/ingest"
	"document-intel/internal/models"
)

// FileExtractor extracts text from local files based on extension.
type FileExtractor struct{}

var _ ingest.Extractor = (*FileExtractor)(nil)

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

func (e *FileExtractor) Extract(ctx context.Context, src ingest.Source) (string, models.DocumentMetadata, error) {
	if err := ctx.Err(); err != nil {
		return "", models.DocumentMetadata{}, err
	}

	ext := strings.ToLower(filepath.Ext(src.Path))
	var (
		text  string
		pages int
		err   error
	)
	switch ext {
	case ".pdf":
		text, pages, err = extractPDF(src.Path)
	case ".docx":
		text, pages, err = extractDOCX(src.Path)
	case ".pptx":
		text, pages, err = extractPPTX(src.Path)
	case ".xlsx":
		text, pages, err = extractXLSX(src.Path)
	case ".ods":
		text, pages, err = extractODS(src.Path)
	case ".md", ".markdown":
		text, pages, err = extractMarkdown(src.Path)
	case ".txt":
		text, pages, err = extractText(src.Path)
	default:
		return "", models.DocumentMetadata{}, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return "", models.DocumentMetadata{}, err
	}
	return text, models.DocumentMetadata{Pages: pages}, nil
}

func extractPDF(path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("reading page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteString("\n\n")
	}
	return b.String(), numPages, nil
}

func extractDOCX(path string) (string, int, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", 0, err
	}
	defer r.Close()

	doc := r.Editable()
	return doc.GetContent(), 1, nil
}

func extractPPTX(path string) (string, int, error) {
	f, err := zip.OpenReader(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	var b strings.Builder
	slides := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := extractDrawingText(string(data))
		if strings.TrimSpace(slideText) != "" {
			b.WriteString(slideText)
			b.WriteString("\n\n")
			slides++
		}
	}
	return b.String(), slides, nil
}

func extractXLSX(path string) (string, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		b.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				b.WriteString(cell.String() + "\t")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), len(f.Sheets), nil
}

func extractODS(path string) (string, int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	var b strings.Builder
	sheets := f.GetSheetList()
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		b.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				b.WriteString(cell + "\t")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), len(sheets), nil
}

// extractMarkdown walks the parsed document tree and flattens it to
// text, keeping heading markers so downstream sectioning still works.
func extractMarkdown(path string) (string, int, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gtext.NewReader(source))

	var b strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			b.WriteString("\n\n")
			b.WriteString(strings.Repeat("#", node.Level))
			b.WriteString(" ")
		case *ast.Paragraph, *ast.ListItem:
			b.WriteString("\n")
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			b.WriteString(" ")
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", 0, err
	}
	return b.String(), 1, nil
}

func extractText(path string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	return string(data), 1, nil
}

// extractDrawingText pulls run text out of DrawingML without a full
// XML parse. Good enough for slide bodies.
func extractDrawingText(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
