// internal/workers/change-order/render-spreadsheet/handler.go
package renderspreadsheet

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/models"
)

const (
	TaskType = "render-spreadsheet"
)

// Column layout of every section table.
const (
	colNumber = iota + 1
	colDescription
	colQuantity
	colUnit
	colUnitCost
	colExtended
)

var sectionHeaders = []string{"#", "Description", "Quantity", "Unit", "Unit Cost", "Extended Cost"}

var columnWidths = []struct {
	col   string
	width float64
}{
	{"A", 6}, {"B", 48}, {"C", 10}, {"D", 8}, {"E", 14}, {"F", 16},
}

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute renders the breakdown to xlsx bytes. It touches neither network
// nor disk, and leaves workbook properties at the library defaults so the
// same breakdown yields the same workbook.
func (h *Handler) Execute(ctx context.Context, b *models.CostBreakdown) ([]byte, error) {
	if b == nil {
		return nil, apperrors.NewRenderFailedError(fmt.Errorf("breakdown is nil"))
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewRenderFailedError(err)
	}
	if !b.Finite() {
		return nil, apperrors.NewRenderFailedError(fmt.Errorf("breakdown contains a non-finite amount"))
	}

	data, err := h.render(b)
	if err != nil {
		h.logger.Error("render failed", map[string]interface{}{"error": err})
		return nil, apperrors.NewRenderFailedError(err)
	}

	h.logger.Info("spreadsheet rendered", map[string]interface{}{
		"lineItems": b.LineItemCount(),
		"bytes":     len(data),
	})
	return data, nil
}

func (h *Handler) render(b *models.CostBreakdown) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), h.config.SheetName); err != nil {
		return nil, fmt.Errorf("sheet name: %w", err)
	}

	st, err := newStyles(f, h.config.CurrencyFormat)
	if err != nil {
		return nil, fmt.Errorf("styles: %w", err)
	}

	w := &sheetWriter{f: f, sheet: h.config.SheetName, styles: st, row: 1}
	for _, cw := range columnWidths {
		if err := f.SetColWidth(w.sheet, cw.col, cw.col, cw.width); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	title := b.Title
	if title == "" {
		title = h.config.DefaultTitle
	}
	w.writeBanner(title, st.title)
	if b.Summary != "" {
		w.writeBanner(b.Summary, st.summary)
	}
	w.row++

	for _, c := range models.Categories {
		if items := b.Items(c); len(items) > 0 {
			w.writeSection(c, items, b.Subtotal(c))
		}
	}

	w.writeSummary(b)
	if h.config.Markups.Enabled {
		m := ComputeMarkups(b, h.config.Markups)
		if math.IsInf(m.GrandTotal, 0) {
			return nil, fmt.Errorf("grand total overflows")
		}
		w.writeMarkups(m, h.config.Markups)
	}
	if w.err != nil {
		return nil, w.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ==========================
// Styles
// ==========================

type styles struct {
	title         int
	summary       int
	label         int
	header        int
	cell          int
	money         int
	subtotal      int
	subtotalMoney int
	total         int
	totalMoney    int
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

func solidFill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}

func newStyles(f *excelize.File, currencyFormat string) (styles, error) {
	var (
		st     styles
		err    error
		numFmt = currencyFormat
		bold   = &excelize.Font{Bold: true}
	)
	add := func(target *int, s *excelize.Style) {
		if err == nil {
			*target, err = f.NewStyle(s)
		}
	}

	add(&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	add(&st.summary, &excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	add(&st.label, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}})
	add(&st.header, &excelize.Style{
		Font:      bold,
		Fill:      solidFill("D3D3D3"),
		Border:    thinBorder,
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	add(&st.cell, &excelize.Style{Border: thinBorder})
	add(&st.money, &excelize.Style{Border: thinBorder, CustomNumFmt: &numFmt})
	add(&st.subtotal, &excelize.Style{Font: bold, Fill: solidFill("FFD699"), Border: thinBorder})
	add(&st.subtotalMoney, &excelize.Style{Font: bold, Fill: solidFill("FFD699"), Border: thinBorder, CustomNumFmt: &numFmt})
	add(&st.total, &excelize.Style{Font: bold, Fill: solidFill("C4D79B"), Border: thinBorder})
	add(&st.totalMoney, &excelize.Style{Font: bold, Fill: solidFill("C4D79B"), Border: thinBorder, CustomNumFmt: &numFmt})

	return st, err
}

// ==========================
// Sheet Writer
// ==========================

// sheetWriter appends rows top to bottom and keeps the first error.
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	styles styles
	row    int
	err    error
}

func (w *sheetWriter) cell(col int) string {
	name, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

func (w *sheetWriter) set(col int, value interface{}) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellValue(w.sheet, w.cell(col), value)
}

func (w *sheetWriter) style(from, to, id int) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, w.cell(from), w.cell(to), id)
}

// styleRow applies plain to the text columns and money to the amount columns.
func (w *sheetWriter) styleRow(plain, money int) {
	w.style(colNumber, colUnit, plain)
	w.style(colUnitCost, colExtended, money)
}

func (w *sheetWriter) writeBanner(text string, style int) {
	w.set(colNumber, text)
	if w.err == nil {
		w.err = w.f.MergeCell(w.sheet, w.cell(colNumber), w.cell(colExtended))
	}
	w.style(colNumber, colExtended, style)
	w.row++
}

func (w *sheetWriter) writeSection(c models.Category, items []models.LineItem, subtotal float64) {
	w.set(colNumber, c.Label())
	w.style(colNumber, colNumber, w.styles.label)
	w.row++

	for i, header := range sectionHeaders {
		w.set(colNumber+i, header)
	}
	w.style(colNumber, colExtended, w.styles.header)
	w.row++

	for i, item := range items {
		w.set(colNumber, i+1)
		w.set(colDescription, item.Description)
		w.set(colQuantity, item.Quantity)
		w.set(colUnit, item.Unit)
		w.set(colUnitCost, item.UnitCost)
		w.set(colExtended, item.ExtendedCost)
		w.styleRow(w.styles.cell, w.styles.money)
		w.row++
	}

	w.set(colDescription, fmt.Sprintf("Total Direct Cost (%s)", c.Label()))
	w.set(colExtended, subtotal)
	w.styleRow(w.styles.subtotal, w.styles.subtotalMoney)
	w.row += 2
}

func (w *sheetWriter) writeSummary(b *models.CostBreakdown) {
	w.set(colNumber, "SUMMARY")
	w.style(colNumber, colNumber, w.styles.label)
	w.row++

	w.set(colDescription, "Category")
	w.set(colExtended, "Amount")
	w.style(colNumber, colExtended, w.styles.header)
	w.row++

	for _, c := range models.Categories {
		w.set(colDescription, c.Label())
		w.set(colExtended, b.Subtotal(c))
		w.styleRow(w.styles.cell, w.styles.money)
		w.row++
	}

	w.set(colDescription, "Total")
	w.set(colExtended, b.Total)
	w.styleRow(w.styles.total, w.styles.totalMoney)
	w.row++
}

func (w *sheetWriter) writeMarkups(m Markups, cfg MarkupConfig) {
	w.row++
	w.set(colDescription, "Overhead @ "+percent(cfg.OverheadRate))
	w.set(colExtended, m.Overhead)
	w.styleRow(w.styles.cell, w.styles.money)
	w.row++

	w.set(colDescription, "Profit @ "+percent(cfg.ProfitRate))
	w.set(colExtended, m.Profit)
	w.styleRow(w.styles.cell, w.styles.money)
	w.row++

	if m.SubcontractorOHP > 0 {
		w.set(colDescription, "GC's OH&P on Subcontractor Work")
		w.set(colExtended, m.SubcontractorOHP)
		w.styleRow(w.styles.cell, w.styles.money)
		w.row++
	}

	w.set(colDescription, "Grand Total")
	w.set(colExtended, m.GrandTotal)
	w.styleRow(w.styles.total, w.styles.totalMoney)
	w.row++
}

func percent(rate float64) string {
	return strconv.FormatFloat(math.Round(rate*10000)/100, 'f', -1, 64) + "%"
}
