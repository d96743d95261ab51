package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"rfpdesk/internal"
)

// BuildComparisonWorkbook renders a comparison as an XLSX workbook:
// one header row, one row per scored proposal, and the summary block
// underneath.
func BuildComparisonWorkbook(rfp internal.Rfp, result internal.ComparisonResult) *excelize.File {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"proposal_id", "vendor", "price_score", "delivery_score",
		"warranty_score", "overall_score", "highlights",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, score := range result.Scores {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		set(1, score.ProposalID)
		set(2, score.VendorName)
		set(3, score.PriceScore)
		set(4, score.DeliveryScore)
		set(5, score.WarrantyScore)
		set(6, score.OverallScore)
		set(7, score.Highlights)
	}

	metaRow := len(result.Scores) + 3
	setMeta := func(row int, key string, value any) {
		keyCell, _ := excelize.CoordinatesToCellName(1, row)
		valCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheet, keyCell, key)
		_ = f.SetCellValue(sheet, valCell, value)
	}
	setMeta(metaRow, "rfp", rfp.Title)
	setMeta(metaRow+1, "summary", result.Summary)
	setMeta(metaRow+2, "using_fallback", result.UsingFallback)
	if result.Recommendation != nil {
		setMeta(metaRow+3, "recommended_vendor", result.Recommendation.VendorName)
	}

	return f
}

func ExportComparisonXLSX(rfp internal.Rfp, result internal.ComparisonResult, outputPath string) error {
	f := BuildComparisonWorkbook(rfp, result)
	defer f.Close()
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func WriteComparisonXLSX(rfp internal.Rfp, result internal.ComparisonResult, w io.Writer) error {
	f := BuildComparisonWorkbook(rfp, result)
	defer f.Close()
	return f.Write(w)
}
