package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rfpdesk/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS vendors (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  phone TEXT,
  notes TEXT,
  createdAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vendors_email ON vendors(email);

CREATE TABLE IF NOT EXISTS rfps (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  descriptionRaw TEXT NOT NULL,
  budget REAL,
  currency TEXT,
  deliveryDeadlineDays INTEGER,
  paymentTerms TEXT,
  warrantyTerms TEXT,
  itemsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rfp_vendors (
  rfpId TEXT NOT NULL,
  vendorId TEXT NOT NULL,
  PRIMARY KEY(rfpId, vendorId),
  FOREIGN KEY(rfpId) REFERENCES rfps(id),
  FOREIGN KEY(vendorId) REFERENCES vendors(id)
);

CREATE TABLE IF NOT EXISTS proposals (
  id TEXT PRIMARY KEY,
  rfpId TEXT NOT NULL,
  vendorId TEXT NOT NULL,
  rawEmailId TEXT,
  rawEmailSubject TEXT NOT NULL DEFAULT '',
  rawEmailFrom TEXT NOT NULL DEFAULT '',
  rawEmailBody TEXT NOT NULL DEFAULT '',
  parsedJson TEXT NOT NULL,
  score REAL,
  explanation TEXT,
  createdAt TEXT NOT NULL,
  FOREIGN KEY(rfpId) REFERENCES rfps(id),
  FOREIGN KEY(vendorId) REFERENCES vendors(id)
);
CREATE INDEX IF NOT EXISTS idx_proposals_rfp ON proposals(rfpId);
CREATE UNIQUE INDEX IF NOT EXISTS idx_proposals_rfp_email
  ON proposals(rfpId, rawEmailId) WHERE rawEmailId IS NOT NULL;
`

	_, err := d.conn.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// --- vendors ---

func (d *DB) CreateVendor(v internal.Vendor) (internal.Vendor, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = now()
	_, err := d.conn.Exec(`
INSERT INTO vendors (id, name, email, phone, notes, createdAt)
VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Email, v.Phone, v.Notes, v.CreatedAt)
	if err != nil {
		return internal.Vendor{}, err
	}
	return v, nil
}

func (d *DB) ListVendors() ([]internal.Vendor, error) {
	rows, err := d.conn.Query(`
SELECT id, name, email, phone, notes, createdAt
FROM vendors ORDER BY createdAt DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (d *DB) VendorByID(id string) (internal.Vendor, error) {
	row := d.conn.QueryRow(`
SELECT id, name, email, phone, notes, createdAt
FROM vendors WHERE id = ?`, id)
	v, err := scanVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Vendor{}, &internal.NotFoundError{Entity: "vendor", ID: id}
	}
	return v, err
}

func (d *DB) VendorByEmail(email string) (internal.Vendor, error) {
	row := d.conn.QueryRow(`
SELECT id, name, email, phone, notes, createdAt
FROM vendors WHERE email = ?`, email)
	v, err := scanVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Vendor{}, &internal.NotFoundError{Entity: "vendor", ID: email}
	}
	return v, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVendor(row rowScanner) (internal.Vendor, error) {
	var v internal.Vendor
	var phone, notes sql.NullString
	if err := row.Scan(&v.ID, &v.Name, &v.Email, &phone, &notes, &v.CreatedAt); err != nil {
		return internal.Vendor{}, err
	}
	if phone.Valid {
		v.Phone = &phone.String
	}
	if notes.Valid {
		v.Notes = &notes.String
	}
	return v, nil
}

// --- rfps ---

func (d *DB) CreateRfp(r internal.Rfp) (internal.Rfp, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now()
	if r.Items == nil {
		r.Items = []internal.RfpItem{}
	}
	itemsJSON, err := json.Marshal(r.Items)
	if err != nil {
		return internal.Rfp{}, err
	}

	_, err = d.conn.Exec(`
INSERT INTO rfps (id, title, descriptionRaw, budget, currency, deliveryDeadlineDays,
                  paymentTerms, warrantyTerms, itemsJson, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.DescriptionRaw, r.Budget, r.Currency, r.DeliveryDeadlineDays,
		r.PaymentTerms, r.WarrantyTerms, string(itemsJSON), r.CreatedAt)
	if err != nil {
		return internal.Rfp{}, err
	}
	return r, nil
}

func (d *DB) RfpByID(id string) (internal.Rfp, error) {
	row := d.conn.QueryRow(`
SELECT id, title, descriptionRaw, budget, currency, deliveryDeadlineDays,
       paymentTerms, warrantyTerms, itemsJson, createdAt
FROM rfps WHERE id = ?`, id)
	r, err := scanRfp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Rfp{}, &internal.NotFoundError{Entity: "rfp", ID: id}
	}
	if err != nil {
		return internal.Rfp{}, err
	}

	vendors, err := d.VendorsForRfp(id)
	if err != nil {
		return internal.Rfp{}, err
	}
	r.Vendors = vendors
	for _, v := range vendors {
		r.VendorIDs = append(r.VendorIDs, v.ID)
	}
	return r, nil
}

func (d *DB) ListRfps() ([]internal.Rfp, error) {
	rows, err := d.conn.Query(`
SELECT id, title, descriptionRaw, budget, currency, deliveryDeadlineDays,
       paymentTerms, warrantyTerms, itemsJson, createdAt
FROM rfps ORDER BY createdAt DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Rfp{}
	for rows.Next() {
		r, err := scanRfp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		vendors, err := d.VendorsForRfp(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Vendors = vendors
		for _, v := range vendors {
			out[i].VendorIDs = append(out[i].VendorIDs, v.ID)
		}
	}
	return out, nil
}

func scanRfp(row rowScanner) (internal.Rfp, error) {
	var r internal.Rfp
	var budget sql.NullFloat64
	var currency, paymentTerms, warrantyTerms sql.NullString
	var deadline sql.NullInt64
	var itemsJSON string
	err := row.Scan(&r.ID, &r.Title, &r.DescriptionRaw, &budget, &currency, &deadline,
		&paymentTerms, &warrantyTerms, &itemsJSON, &r.CreatedAt)
	if err != nil {
		return internal.Rfp{}, err
	}
	if budget.Valid {
		r.Budget = &budget.Float64
	}
	if currency.Valid {
		r.Currency = &currency.String
	}
	if deadline.Valid {
		days := int(deadline.Int64)
		r.DeliveryDeadlineDays = &days
	}
	if paymentTerms.Valid {
		r.PaymentTerms = &paymentTerms.String
	}
	if warrantyTerms.Valid {
		r.WarrantyTerms = &warrantyTerms.String
	}
	if err := json.Unmarshal([]byte(itemsJSON), &r.Items); err != nil {
		return internal.Rfp{}, err
	}
	return r, nil
}

// AttachVendors replaces the invited-vendor set of an RFP.
func (d *DB) AttachVendors(rfpID string, vendorIDs []string) error {
	if _, err := d.RfpByID(rfpID); err != nil {
		return err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM rfp_vendors WHERE rfpId = ?`, rfpID); err != nil {
		return err
	}
	for _, vendorID := range vendorIDs {
		if _, err := tx.Exec(`
INSERT INTO rfp_vendors (rfpId, vendorId) VALUES (?, ?)`, rfpID, vendorID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) VendorsForRfp(rfpID string) ([]internal.Vendor, error) {
	rows, err := d.conn.Query(`
SELECT v.id, v.name, v.email, v.phone, v.notes, v.createdAt
FROM vendors v
JOIN rfp_vendors rv ON rv.vendorId = v.id
WHERE rv.rfpId = ?
ORDER BY v.createdAt`, rfpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- proposals ---

// CreateProposal inserts a proposal. When rawEmailId is set and a
// proposal for the same (rfp, rawEmailId) already exists, the parsed
// data and raw provenance are updated in place so re-processing the
// same message stays idempotent.
func (d *DB) CreateProposal(p internal.Proposal) (internal.Proposal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now()
	parsedJSON, err := json.Marshal(p.ParsedData)
	if err != nil {
		return internal.Proposal{}, err
	}

	if p.RawEmailID != nil && *p.RawEmailID != "" {
		var existingID string
		err := d.conn.QueryRow(`
SELECT id FROM proposals WHERE rfpId = ? AND rawEmailId = ?`,
			p.RfpID, *p.RawEmailID).Scan(&existingID)
		if err == nil {
			_, err = d.conn.Exec(`
UPDATE proposals
SET vendorId = ?, rawEmailSubject = ?, rawEmailFrom = ?, rawEmailBody = ?, parsedJson = ?
WHERE id = ?`,
				p.VendorID, p.RawEmailSubject, p.RawEmailFrom, p.RawEmailBody,
				string(parsedJSON), existingID)
			if err != nil {
				return internal.Proposal{}, err
			}
			p.ID = existingID
			return p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return internal.Proposal{}, err
		}
	}

	_, err = d.conn.Exec(`
INSERT INTO proposals (id, rfpId, vendorId, rawEmailId, rawEmailSubject,
                       rawEmailFrom, rawEmailBody, parsedJson, score, explanation, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.RfpID, p.VendorID, p.RawEmailID, p.RawEmailSubject,
		p.RawEmailFrom, p.RawEmailBody, string(parsedJSON), p.Score, p.Explanation, p.CreatedAt)
	if err != nil {
		return internal.Proposal{}, err
	}
	return p, nil
}

// ProposalsForRfp returns proposals in creation order with the vendor
// record populated.
func (d *DB) ProposalsForRfp(rfpID string) ([]internal.Proposal, error) {
	rows, err := d.conn.Query(`
SELECT p.id, p.rfpId, p.vendorId, p.rawEmailId, p.rawEmailSubject,
       p.rawEmailFrom, p.rawEmailBody, p.parsedJson, p.score, p.explanation, p.createdAt,
       v.id, v.name, v.email, v.phone, v.notes, v.createdAt
FROM proposals p
JOIN vendors v ON v.id = p.vendorId
WHERE p.rfpId = ?
ORDER BY p.createdAt, p.id`, rfpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Proposal{}
	for rows.Next() {
		var p internal.Proposal
		var rawEmailID, explanation sql.NullString
		var score sql.NullFloat64
		var parsedJSON string
		var v internal.Vendor
		var phone, notes sql.NullString
		err := rows.Scan(&p.ID, &p.RfpID, &p.VendorID, &rawEmailID, &p.RawEmailSubject,
			&p.RawEmailFrom, &p.RawEmailBody, &parsedJSON, &score, &explanation, &p.CreatedAt,
			&v.ID, &v.Name, &v.Email, &phone, &notes, &v.CreatedAt)
		if err != nil {
			return nil, err
		}
		if rawEmailID.Valid {
			p.RawEmailID = &rawEmailID.String
		}
		if score.Valid {
			p.Score = &score.Float64
		}
		if explanation.Valid {
			p.Explanation = &explanation.String
		}
		if phone.Valid {
			v.Phone = &phone.String
		}
		if notes.Valid {
			v.Notes = &notes.String
		}
		if err := json.Unmarshal([]byte(parsedJSON), &p.ParsedData); err != nil {
			return nil, err
		}
		p.Vendor = &v
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProposalScore attaches a comparison score and explanation to a
// stored proposal.
func (d *DB) UpdateProposalScore(id string, score float64, explanation string) error {
	_, err := d.conn.Exec(`
UPDATE proposals SET score = ?, explanation = ? WHERE id = ?`, score, explanation, id)
	return err
}
