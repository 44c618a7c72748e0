// Package export renders patient summaries and quotes as PDF documents for
// consultation decks and proposals.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/graftline/clinic-crm/internal/patients"
	"github.com/graftline/clinic-crm/internal/quotes"
)

// ClinicBranding is the letterhead printed on every document.
type ClinicBranding struct {
	Name         string
	Tagline      string
	ContactLines []string
}

// Renderer renders domain objects to PDF.
type Renderer struct {
	branding ClinicBranding
}

// NewRenderer creates a PDF renderer.
func NewRenderer(branding ClinicBranding) *Renderer {
	if branding.Name == "" {
		branding.Name = "Graftline Clinic"
	}
	return &Renderer{branding: branding}
}

const (
	marginMM     = 18.0
	lineHeightMM = 6.0
)

// PatientSummary writes a one-patient overview: demographics, treatment
// milestones, and quote history.
func (r *Renderer) PatientSummary(w io.Writer, p *patients.Patient, quoteList []*quotes.Quote) error {
	pdf := r.newDocument()
	pdf.AddPage()
	r.header(pdf, "Patient Summary")

	r.sectionTitle(pdf, "Patient")
	r.keyValue(pdf, "Name", p.Name)
	r.keyValue(pdf, "Email", valueOr(p.Email, "—"))
	r.keyValue(pdf, "Phone", valueOr(p.Phone, "—"))
	if p.DateOfBirth != nil {
		r.keyValue(pdf, "Date of birth", p.DateOfBirth.Format("Jan 2, 2006"))
	}
	r.keyValue(pdf, "Status", string(p.Status))
	if p.MedicalNotes != "" {
		r.sectionTitle(pdf, "Medical notes")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, lineHeightMM-1, p.MedicalNotes, "", "L", false)
	}

	r.sectionTitle(pdf, "Treatment milestones")
	r.milestoneRow(pdf, "Consultation", p.Milestones.ConsultDate)
	r.milestoneRow(pdf, "Proposal sent", p.Milestones.ProposalSentDate)
	r.milestoneRow(pdf, "Surgery", p.Milestones.SurgeryDate)
	r.milestoneRow(pdf, "Follow-up", p.Milestones.FollowUpDate)

	if len(quoteList) > 0 {
		r.sectionTitle(pdf, "Quotes")
		for _, q := range quoteList {
			title := q.Title
			if title == "" {
				title = "Quote " + shortID(q.ID)
			}
			line := fmt.Sprintf("%s — %s %s (%s)", title, q.Currency, formatCents(q.TotalCents), q.Status)
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(0, lineHeightMM, line, "", 1, "L", false, 0, "")
		}
	}

	r.footer(pdf)
	return pdf.Output(w)
}

// Quote writes a single proposal with its line items and totals.
func (r *Renderer) Quote(w io.Writer, p *patients.Patient, q *quotes.Quote) error {
	pdf := r.newDocument()
	pdf.AddPage()
	r.header(pdf, "Treatment Proposal")

	r.keyValue(pdf, "Patient", p.Name)
	if q.Title != "" {
		r.keyValue(pdf, "Proposal", q.Title)
	}
	r.keyValue(pdf, "Date", q.CreatedAt.Format("Jan 2, 2006"))
	r.keyValue(pdf, "Status", string(q.Status))
	pdf.Ln(4)

	// Line item table.
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(95, lineHeightMM+1, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, lineHeightMM+1, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, lineHeightMM+1, "Unit", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, lineHeightMM+1, "Total", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, li := range q.LineItems {
		pdf.CellFormat(95, lineHeightMM, li.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, lineHeightMM, fmt.Sprintf("%d", li.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, lineHeightMM, formatCents(li.UnitPriceCents), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, lineHeightMM, formatCents(li.TotalCents()), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	r.totalRow(pdf, "Subtotal", q.Currency, q.SubtotalCents, false)
	if q.DiscountCents > 0 {
		r.totalRow(pdf, "Discount", q.Currency, -q.DiscountCents, false)
	}
	r.totalRow(pdf, "Total", q.Currency, q.TotalCents, true)

	r.footer(pdf)
	return pdf.Output(w)
}

func (r *Renderer) newDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	return pdf
}

func (r *Renderer) header(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 9, r.branding.Name, "", 1, "L", false, 0, "")
	if r.branding.Tagline != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 5, r.branding.Tagline, "", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 7, title, "B", 1, "L", false, 0, "")
	pdf.Ln(3)
}

func (r *Renderer) footer(pdf *fpdf.Fpdf) {
	contact := strings.Join(append([]string{r.branding.Name}, r.branding.ContactLines...), " | ")
	pdf.SetY(-marginMM)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, contact, "T", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func (r *Renderer) sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, lineHeightMM, title, "", 1, "L", false, 0, "")
}

func (r *Renderer) keyValue(pdf *fpdf.Fpdf, key, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(40, lineHeightMM, key, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeightMM, value, "", 1, "L", false, 0, "")
}

func (r *Renderer) milestoneRow(pdf *fpdf.Fpdf, label string, date *time.Time) {
	value := "not scheduled"
	if date != nil {
		value = date.Format("Monday, Jan 2, 2006")
	}
	r.keyValue(pdf, label, value)
}

func (r *Renderer) totalRow(pdf *fpdf.Fpdf, label, currency string, cents int64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.CellFormat(145, lineHeightMM, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(30, lineHeightMM, currency+" "+formatCents(cents), "", 1, "R", false, 0, "")
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
