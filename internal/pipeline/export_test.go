package pipeline

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfpdesk/internal"
)

func exportFixture() (internal.Rfp, internal.ComparisonResult) {
	rfp := internal.Rfp{ID: "r1", Title: "Office chairs"}
	result := internal.ComparisonResult{
		Summary: "Acme wins.",
		Recommendation: &internal.Recommendation{
			VendorName: "Acme", ProposalID: "p1", Reason: "best score",
		},
		Scores: []internal.ProposalScore{
			{ProposalID: "p1", VendorName: "Acme", PriceScore: 9, DeliveryScore: 7,
				WarrantyScore: 8, OverallScore: 8.3, Highlights: "Price: 1000"},
			{ProposalID: "p2", VendorName: "Globex", PriceScore: 4, DeliveryScore: 9,
				WarrantyScore: 5, OverallScore: 5.3, Highlights: "Delivery: 5 days"},
		},
		UsingFallback: true,
	}
	return rfp, result
}

func TestBuildComparisonWorkbook(t *testing.T) {
	rfp, result := exportFixture()
	f := BuildComparisonWorkbook(rfp, result)
	defer f.Close()

	sheet := f.GetSheetName(0)

	header, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "proposal_id", header)

	vendor, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Acme", vendor)

	overall, err := f.GetCellValue(sheet, "F3")
	require.NoError(t, err)
	assert.Equal(t, "5.3", overall)

	metaKey, err := f.GetCellValue(sheet, "A5")
	require.NoError(t, err)
	assert.Equal(t, "rfp", metaKey)
	metaVal, err := f.GetCellValue(sheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, "Office chairs", metaVal)

	recommended, err := f.GetCellValue(sheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "Acme", recommended)
}

func TestExportComparisonXLSX(t *testing.T) {
	rfp, result := exportFixture()
	out := filepath.Join(t.TempDir(), "nested", "comparison.xlsx")

	require.NoError(t, ExportComparisonXLSX(rfp, result, out))
	assert.FileExists(t, out)
}

func TestWriteComparisonXLSX(t *testing.T) {
	rfp, result := exportFixture()
	var buf bytes.Buffer

	require.NoError(t, WriteComparisonXLSX(rfp, result, &buf))
	assert.Greater(t, buf.Len(), 0)
}
