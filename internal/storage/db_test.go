package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfpdesk/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestVendorRoundTrip(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateVendor(internal.Vendor{
		Name:  "Acme",
		Email: "sales@acme.test",
		Phone: internal.StringPtr("+1 555 0100"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.CreatedAt)

	byID, err := db.VendorByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byEmail, err := db.VendorByEmail("sales@acme.test")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	vendors, err := db.ListVendors()
	require.NoError(t, err)
	assert.Len(t, vendors, 1)
}

func TestVendorEmailUnique(t *testing.T) {
	db := openTestDB(t)

	_, err := db.CreateVendor(internal.Vendor{Name: "Acme", Email: "dup@acme.test"})
	require.NoError(t, err)
	_, err = db.CreateVendor(internal.Vendor{Name: "Acme 2", Email: "dup@acme.test"})
	require.Error(t, err)
}

func TestVendorNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.VendorByID("missing")
	var notFound *internal.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "vendor", notFound.Entity)

	_, err = db.VendorByEmail("nobody@nowhere.test")
	require.True(t, errors.As(err, &notFound))
}

func TestRfpRoundTripWithVendors(t *testing.T) {
	db := openTestDB(t)

	v1, err := db.CreateVendor(internal.Vendor{Name: "Acme", Email: "a@acme.test"})
	require.NoError(t, err)
	v2, err := db.CreateVendor(internal.Vendor{Name: "Globex", Email: "g@globex.test"})
	require.NoError(t, err)

	created, err := db.CreateRfp(internal.Rfp{
		Title:                "Office chairs",
		DescriptionRaw:       "we need 50 chairs",
		Budget:               internal.Float64Ptr(10000),
		Currency:             internal.StringPtr("USD"),
		DeliveryDeadlineDays: internal.IntPtr(30),
		Items: []internal.RfpItem{
			{Name: "Chair", Quantity: 50, Specs: map[string]any{"color": "black"}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, db.AttachVendors(created.ID, []string{v1.ID, v2.ID}))

	got, err := db.RfpByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Office chairs", got.Title)
	require.NotNil(t, got.Budget)
	assert.Equal(t, 10000.0, *got.Budget)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 50.0, got.Items[0].Quantity)
	assert.ElementsMatch(t, []string{v1.ID, v2.ID}, got.VendorIDs)
	assert.Len(t, got.Vendors, 2)
}

func TestAttachVendorsReplacesSet(t *testing.T) {
	db := openTestDB(t)

	v1, err := db.CreateVendor(internal.Vendor{Name: "Acme", Email: "a@acme.test"})
	require.NoError(t, err)
	v2, err := db.CreateVendor(internal.Vendor{Name: "Globex", Email: "g@globex.test"})
	require.NoError(t, err)
	rfp, err := db.CreateRfp(internal.Rfp{Title: "T", DescriptionRaw: "d"})
	require.NoError(t, err)

	require.NoError(t, db.AttachVendors(rfp.ID, []string{v1.ID}))
	require.NoError(t, db.AttachVendors(rfp.ID, []string{v2.ID}))

	vendors, err := db.VendorsForRfp(rfp.ID)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, v2.ID, vendors[0].ID)
}

func TestAttachVendorsUnknownRfp(t *testing.T) {
	db := openTestDB(t)

	err := db.AttachVendors("missing", nil)
	var notFound *internal.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestListRfpsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	_, err := db.CreateRfp(internal.Rfp{Title: "first", DescriptionRaw: "d"})
	require.NoError(t, err)
	_, err = db.CreateRfp(internal.Rfp{Title: "second", DescriptionRaw: "d"})
	require.NoError(t, err)

	rfps, err := db.ListRfps()
	require.NoError(t, err)
	require.Len(t, rfps, 2)
}

func TestCreateProposalIdempotentOnEmailID(t *testing.T) {
	db := openTestDB(t)

	vendor, err := db.CreateVendor(internal.Vendor{Name: "Acme", Email: "a@acme.test"})
	require.NoError(t, err)
	rfp, err := db.CreateRfp(internal.Rfp{Title: "T", DescriptionRaw: "d"})
	require.NoError(t, err)

	emailID := "<msg-1@mail.test>"
	first, err := db.CreateProposal(internal.Proposal{
		RfpID:      rfp.ID,
		VendorID:   vendor.ID,
		RawEmailID: &emailID,
		ParsedData: internal.ParsedData{TotalPrice: internal.Float64Ptr(100), LineItems: []internal.LineItem{}},
	})
	require.NoError(t, err)

	second, err := db.CreateProposal(internal.Proposal{
		RfpID:      rfp.ID,
		VendorID:   vendor.ID,
		RawEmailID: &emailID,
		ParsedData: internal.ParsedData{TotalPrice: internal.Float64Ptr(150), LineItems: []internal.LineItem{}},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	proposals, err := db.ProposalsForRfp(rfp.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	require.NotNil(t, proposals[0].ParsedData.TotalPrice)
	assert.Equal(t, 150.0, *proposals[0].ParsedData.TotalPrice)
}

func TestProposalsForRfpPopulatesVendor(t *testing.T) {
	db := openTestDB(t)

	vendor, err := db.CreateVendor(internal.Vendor{Name: "Acme", Email: "a@acme.test"})
	require.NoError(t, err)
	rfp, err := db.CreateRfp(internal.Rfp{Title: "T", DescriptionRaw: "d"})
	require.NoError(t, err)

	_, err = db.CreateProposal(internal.Proposal{
		RfpID:           rfp.ID,
		VendorID:        vendor.ID,
		RawEmailSubject: "Re: RFP",
		RawEmailFrom:    "a@acme.test",
		RawEmailBody:    "our offer",
		ParsedData:      internal.ParsedData{LineItems: []internal.LineItem{}},
	})
	require.NoError(t, err)

	proposals, err := db.ProposalsForRfp(rfp.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	require.NotNil(t, proposals[0].Vendor)
	assert.Equal(t, "Acme", proposals[0].Vendor.Name)
	assert.Equal(t, "Re: RFP", proposals[0].RawEmailSubject)
}

func TestUpdateProposalScore(t *testing.T) {
	db := openTestDB(t)

	vendor, err := db.CreateVendor(internal.Vendor{Name: "Acme", Email: "a@acme.test"})
	require.NoError(t, err)
	rfp, err := db.CreateRfp(internal.Rfp{Title: "T", DescriptionRaw: "d"})
	require.NoError(t, err)
	p, err := db.CreateProposal(internal.Proposal{
		RfpID:    rfp.ID,
		VendorID: vendor.ID,
		ParsedData: internal.ParsedData{
			LineItems: []internal.LineItem{},
		},
	})
	require.NoError(t, err)

	require.NoError(t, db.UpdateProposalScore(p.ID, 8.3, "best weighted score"))

	proposals, err := db.ProposalsForRfp(rfp.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	require.NotNil(t, proposals[0].Score)
	assert.Equal(t, 8.3, *proposals[0].Score)
	require.NotNil(t, proposals[0].Explanation)
	assert.Equal(t, "best weighted score", *proposals[0].Explanation)
}
