package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"app/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
)

// pdfDocument is the subset of the generated payload the PDF export
// understands. Unknown payload fields are ignored; a payload with none of
// these fields still renders as a raw-text document.
type pdfDocument struct {
	Title     string       `json:"title"`
	Summary   string       `json:"summary"`
	KeyPoints []string     `json:"key_points"`
	Sections  []pdfSection `json:"sections"`
	Quiz      []pdfQuiz    `json:"quiz"`
	Raw       string       `json:"raw"`
}

type pdfSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type pdfQuiz struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type PDFService interface {
	// RenderLearningContent renders the stored payload as a PDF document.
	RenderLearningContent(content *model.LearningContent) ([]byte, error)
}

type pdfService struct {
	logger zerolog.Logger
}

func NewPDFService(logger zerolog.Logger) PDFService {
	return &pdfService{logger: logger.With().Str("service", "PDFService").Logger()}
}

func (s *pdfService) RenderLearningContent(content *model.LearningContent) ([]byte, error) {
	var doc pdfDocument
	if err := json.Unmarshal(content.Payload, &doc); err != nil {
		// Payload is valid JSON by construction but may not be an object.
		doc = pdfDocument{Raw: string(content.Payload)}
	}
	if doc.Title == "" {
		doc.Title = "Learning Content"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(doc.Title), "", "L", false)
	pdf.Ln(4)

	if doc.Summary != "" {
		s.heading(pdf, tr, "Summary")
		s.paragraph(pdf, tr, doc.Summary)
	}

	if len(doc.KeyPoints) > 0 {
		s.heading(pdf, tr, "Key Points")
		pdf.SetFont("Helvetica", "", 11)
		for _, point := range doc.KeyPoints {
			pdf.MultiCell(0, 6, tr("- "+point), "", "L", false)
		}
		pdf.Ln(3)
	}

	for _, section := range doc.Sections {
		if section.Heading != "" {
			s.heading(pdf, tr, section.Heading)
		}
		if section.Body != "" {
			s.paragraph(pdf, tr, section.Body)
		}
	}

	if len(doc.Quiz) > 0 {
		s.heading(pdf, tr, "Quiz")
		for i, q := range doc.Quiz {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, q.Question)), "", "L", false)
			pdf.SetFont("Helvetica", "I", 11)
			pdf.MultiCell(0, 6, tr("Answer: "+q.Answer), "", "L", false)
			pdf.Ln(2)
		}
	}

	if doc.Raw != "" {
		s.paragraph(pdf, tr, doc.Raw)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *pdfService) heading(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.MultiCell(0, 7, tr(text), "", "L", false)
	pdf.Ln(1)
}

func (s *pdfService) paragraph(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(text), "", "L", false)
	pdf.Ln(3)
}
