// Package importer loads members, families and ministries from CSV exports.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"churchsite/internal/database"
	appLog "churchsite/internal/log"
	"churchsite/internal/metrics"
	"churchsite/internal/model"
)

const (
	KindMembers    = "members"
	KindFamilies   = "families"
	KindMinistries = "ministries"
)

type MemberStore interface {
	Create(ctx context.Context, m *model.Member) error
	FindByEmail(ctx context.Context, email string) (*model.Member, error)
}

type FamilyStore interface {
	FindByName(ctx context.Context, name string) (*model.Family, error)
	Create(ctx context.Context, f *model.Family) error
	Update(ctx context.Context, f *model.Family) error
	Delete(ctx context.Context, id uint) error
}

type MinistryStore interface {
	FindByName(ctx context.Context, name string) (*model.Ministry, error)
	Create(ctx context.Context, m *model.Ministry) error
	Update(ctx context.Context, m *model.Ministry) error
	AddLeader(ctx context.Context, ministryID, memberID uint, role string) error
}

// MemberResult is the summary of a member import.
type MemberResult struct {
	Total           int      `json:"total"`
	Created         int      `json:"created"`
	FamiliesCreated int      `json:"familiesCreated"`
	Errors          []string `json:"errors"`
}

// UpsertResult is the summary of a family or ministry import.
type UpsertResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

type Importer struct {
	members    MemberStore
	families   FamilyStore
	ministries MinistryStore
	metrics    *metrics.Metrics
}

func New(members MemberStore, families FamilyStore, ministries MinistryStore, m *metrics.Metrics) *Importer {
	return &Importer{members: members, families: families, ministries: ministries, metrics: m}
}

// row is one data line mapped onto fields.
type row struct {
	line   int
	values map[Field]string
}

func (r row) get(f Field) string { return r.values[f] }

// readRows parses a CSV with a header line. Blank lines are skipped.
// Cells failing their transform are reported per row.
func readRows(r io.Reader, table map[string]Column) ([]row, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, model.Invalid("file", "CSV is empty")
	}
	if err != nil {
		return nil, nil, model.Invalid("file", "unreadable CSV header: %v", err)
	}

	cols := make([]*Column, len(header))
	known := 0
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if c, ok := table[NormalizeHeader(h)]; ok {
			c := c
			cols[i] = &c
			known++
		}
	}
	if known == 0 {
		return nil, nil, model.Invalid("file", "no recognised columns in header")
	}

	var (
		rows    []row
		rowErrs []string
		parsed  int
		line    = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			} else {
				line++
			}
			rowErrs = append(rowErrs, fmt.Sprintf("row %d: malformed CSV", line))
			rows = append(rows, row{line: line})
			continue
		}
		line, _ = cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		parsed++
		rw := row{line: line, values: make(map[Field]string)}
		var cellErr error
		for i, cell := range rec {
			if i >= len(cols) || cols[i] == nil {
				continue
			}
			v := strings.TrimSpace(cell)
			if v == "" {
				continue
			}
			// First non-empty aliased column wins.
			if _, set := rw.values[cols[i].Field]; set {
				continue
			}
			if cols[i].Transform != nil {
				if v, err = cols[i].Transform(v); err != nil {
					cellErr = fmt.Errorf("row %d: %s: %w", line, cols[i].Field, err)
					break
				}
			}
			rw.values[cols[i].Field] = v
		}
		if cellErr != nil {
			rowErrs = append(rowErrs, cellErr.Error())
			rows = append(rows, row{line: line})
			continue
		}
		rows = append(rows, rw)
	}
	if parsed == 0 {
		return nil, rowErrs, model.Invalid("file", "CSV has no parseable data rows")
	}
	return rows, rowErrs, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ImportMembers creates one member per row, reusing or creating the named
// family.
func (im *Importer) ImportMembers(ctx context.Context, r io.Reader) (MemberResult, error) {
	rows, rowErrs, err := readRows(r, MemberColumns)
	if err != nil {
		return MemberResult{}, err
	}
	res := MemberResult{Total: len(rows), Errors: rowErrs}
	familyIDs := make(map[string]uint)

	for _, rw := range rows {
		if rw.values == nil {
			im.metrics.ImportRow(KindMembers, "error")
			continue
		}
		if err := im.importMember(ctx, rw, familyIDs, &res); err != nil {
			im.metrics.ImportRow(KindMembers, "error")
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		im.metrics.ImportRow(KindMembers, "created")
		res.Created++
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	appLog.Info("import: members completed", "total", res.Total, "created", res.Created, "families_created", res.FamiliesCreated, "errors", len(res.Errors))
	return res, nil
}

func (im *Importer) importMember(ctx context.Context, rw row, familyIDs map[string]uint, res *MemberResult) error {
	first, last := rw.get(FirstName), rw.get(LastName)
	if first == "" || last == "" {
		return fmt.Errorf("row %d: firstName and lastName are required", rw.line)
	}

	m := &model.Member{
		FirstName:  first,
		LastName:   last,
		Email:      rw.get(Email),
		Phone:      rw.get(Phone),
		Address:    rw.get(Address),
		FamilyRole: rw.get(FamilyRole),
		Notes:      rw.get(Notes),
		Status:     model.Status(rw.get(Status)),
		Birthday:   parseDay(rw.get(Birthday)),
		JoinedOn:   parseDay(rw.get(JoinedOn)),
	}

	if m.Email != "" {
		_, err := im.members.FindByEmail(ctx, m.Email)
		switch {
		case err == nil:
			return fmt.Errorf("row %d: a member with email %s already exists", rw.line, m.Email)
		case !errors.Is(err, database.ErrNotFound):
			return im.internal(rw.line, "find member", err)
		}
	}

	var created bool
	var familyKey string
	if name := rw.get(FamilyName); name != "" {
		id, fresh, err := im.familyID(ctx, name, m, familyIDs)
		if err != nil {
			return im.internal(rw.line, "resolve family", err)
		}
		m.FamilyID = &id
		created, familyKey = fresh, strings.ToLower(name)
	}

	if err := im.members.Create(ctx, m); err != nil {
		if created {
			// A family made for this row alone must not outlive it.
			if derr := im.families.Delete(ctx, *m.FamilyID); derr != nil {
				appLog.Error("import: failed to remove family after member error", derr, "row", rw.line, "family_id", *m.FamilyID)
			} else {
				delete(familyIDs, familyKey)
			}
		}
		return im.internal(rw.line, "create member", err)
	}
	if created {
		res.FamiliesCreated++
	}
	return nil
}

// familyID finds name case-insensitively, creating the family at most once.
// created reports whether this call inserted the row.
func (im *Importer) familyID(ctx context.Context, name string, m *model.Member, seen map[string]uint) (id uint, created bool, err error) {
	key := strings.ToLower(name)
	if id, ok := seen[key]; ok {
		return id, false, nil
	}
	f, err := im.families.FindByName(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		f = &model.Family{FamilyName: name, Address: m.Address, Phone: m.Phone, Email: m.Email}
		if err := im.families.Create(ctx, f); err != nil {
			return 0, false, err
		}
		created = true
	} else if err != nil {
		return 0, false, err
	}
	seen[key] = f.ID
	return f.ID, created, nil
}

// ImportFamilies creates or updates families by name.
func (im *Importer) ImportFamilies(ctx context.Context, r io.Reader) (UpsertResult, error) {
	rows, rowErrs, err := readRows(r, FamilyColumns)
	if err != nil {
		return UpsertResult{}, err
	}
	res := UpsertResult{Total: len(rows), Errors: rowErrs}

	for _, rw := range rows {
		if rw.values == nil {
			im.metrics.ImportRow(KindFamilies, "error")
			continue
		}
		name := rw.get(FamilyName)
		if name == "" {
			im.metrics.ImportRow(KindFamilies, "error")
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: familyName is required", rw.line))
			continue
		}

		f, err := im.families.FindByName(ctx, name)
		created := errors.Is(err, database.ErrNotFound)
		if err != nil && !created {
			res.Errors = append(res.Errors, im.internal(rw.line, "find family", err).Error())
			continue
		}
		if created {
			f = &model.Family{FamilyName: name}
		}
		setIf(&f.Address, rw.get(Address))
		setIf(&f.City, rw.get(City))
		setIf(&f.State, rw.get(State))
		setIf(&f.Zip, rw.get(Zip))
		setIf(&f.Phone, rw.get(Phone))
		setIf(&f.Email, rw.get(Email))

		if created {
			err = im.families.Create(ctx, f)
		} else {
			err = im.families.Update(ctx, f)
		}
		if err != nil {
			im.metrics.ImportRow(KindFamilies, "error")
			res.Errors = append(res.Errors, im.internal(rw.line, "save family", err).Error())
			continue
		}
		if created {
			im.metrics.ImportRow(KindFamilies, "created")
			res.Created++
		} else {
			im.metrics.ImportRow(KindFamilies, "updated")
			res.Updated++
		}
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	appLog.Info("import: families completed", "total", res.Total, "created", res.Created, "updated", res.Updated, "errors", len(res.Errors))
	return res, nil
}

// ImportMinistries creates or updates ministries by name. A leader email
// links an existing member as a leader.
func (im *Importer) ImportMinistries(ctx context.Context, r io.Reader) (UpsertResult, error) {
	rows, rowErrs, err := readRows(r, MinistryColumns)
	if err != nil {
		return UpsertResult{}, err
	}
	res := UpsertResult{Total: len(rows), Errors: rowErrs}

	for _, rw := range rows {
		if rw.values == nil {
			im.metrics.ImportRow(KindMinistries, "error")
			continue
		}
		name := rw.get(Name)
		if name == "" {
			im.metrics.ImportRow(KindMinistries, "error")
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: name is required", rw.line))
			continue
		}

		m, err := im.ministries.FindByName(ctx, name)
		created := errors.Is(err, database.ErrNotFound)
		if err != nil && !created {
			res.Errors = append(res.Errors, im.internal(rw.line, "find ministry", err).Error())
			continue
		}
		if created {
			m = &model.Ministry{Name: name}
		}
		setIf(&m.Description, rw.get(Description))
		setIf(&m.ImageURL, rw.get(ImageURL))
		setIf(&m.ContactName, rw.get(ContactName))
		setIf(&m.ContactEmail, rw.get(ContactMail))
		setIf(&m.MeetingInfo, rw.get(MeetingInfo))
		setIf(&m.Category, rw.get(Category))
		if s := rw.get(Status); s != "" {
			m.Status = model.Status(s)
		}

		if created {
			err = im.ministries.Create(ctx, m)
		} else {
			err = im.ministries.Update(ctx, m)
		}
		if err != nil {
			im.metrics.ImportRow(KindMinistries, "error")
			res.Errors = append(res.Errors, im.internal(rw.line, "save ministry", err).Error())
			continue
		}
		if created {
			im.metrics.ImportRow(KindMinistries, "created")
			res.Created++
		} else {
			im.metrics.ImportRow(KindMinistries, "updated")
			res.Updated++
		}

		if leader := rw.get(LeaderEmail); leader != "" {
			if err := im.linkLeader(ctx, m.ID, leader, rw.get(LeaderRole)); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", rw.line, err))
			}
		}
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	appLog.Info("import: ministries completed", "total", res.Total, "created", res.Created, "updated", res.Updated, "errors", len(res.Errors))
	return res, nil
}

func (im *Importer) linkLeader(ctx context.Context, ministryID uint, email, role string) error {
	member, err := im.members.FindByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no member with email %s", email)
	}
	if err != nil {
		appLog.Error("import: find leader failed", err, "email", email)
		return errors.New("leader could not be linked")
	}
	if role == "" {
		role = "leader"
	}
	if err := im.ministries.AddLeader(ctx, ministryID, member.ID, role); err != nil {
		appLog.Error("import: add leader failed", err, "ministry_id", ministryID, "member_id", member.ID)
		return errors.New("leader could not be linked")
	}
	return nil
}

// internal logs err and returns a row message without driver details.
func (im *Importer) internal(line int, op string, err error) error {
	appLog.Error("import: "+op+" failed", err, "row", line)
	return fmt.Errorf("row %d: could not %s", line, op)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseDay reads a value already normalised by the date transform.
func parseDay(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
