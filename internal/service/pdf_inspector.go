package service

import (
	"bytes"
	"fmt"

	"resume-anonymizer/internal/domain"

	"github.com/gen2brain/go-fitz"
)

var pdfMagic = []byte("%PDF-")

// PDFMetadata is what an upload is checked against before it is sent for detection.
type PDFMetadata struct {
	PageCount  int    `json:"page_count"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Encryption string `json:"encryption,omitempty"`
}

// PDFInspector opens an uploaded PDF locally.
type PDFInspector interface {
	Inspect(pdfBytes []byte) (PDFMetadata, error)
}

// FitzInspector reads PDFs with MuPDF.
type FitzInspector struct {
	logger domain.Logger
}

func NewFitzInspector(logger domain.Logger) *FitzInspector {
	return &FitzInspector{logger: logger}
}

// Inspect rejects anything MuPDF cannot open or that has no pages.
func (p *FitzInspector) Inspect(pdfBytes []byte) (PDFMetadata, error) {
	if !bytes.HasPrefix(pdfBytes, pdfMagic) {
		return PDFMetadata{}, fmt.Errorf("%w: not a PDF document", domain.ErrInvalidFile)
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return PDFMetadata{}, fmt.Errorf("%w: failed to open PDF: %v", domain.ErrInvalidFile, err)
	}
	defer doc.Close()

	docMetadata := doc.Metadata()
	metadata := PDFMetadata{
		PageCount:  doc.NumPage(),
		Title:      docMetadata["title"],
		Author:     docMetadata["author"],
		Encryption: docMetadata["encryption"],
	}
	if metadata.PageCount == 0 {
		return PDFMetadata{}, fmt.Errorf("%w: PDF has no pages", domain.ErrInvalidFile)
	}

	p.logger.Debug("PDF inspected", "page_count", metadata.PageCount, "encryption", metadata.Encryption)
	return metadata, nil
}
