package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"leadline/internal/domain"
)

const contactColumns = `id,company_name,first_name,last_name,title,email,phone_work,phone_mobile,phone_corp,city,industry,keywords,website,segment_key,state,assigned_to_id,last_called_at,call_later_at,no_answer_at,call_note,no_answer_count,revive_at,created_at,updated_at`

// queueOrder puts never-called contacts first, then least recently called, then oldest.
const queueOrder = `ORDER BY CASE WHEN last_called_at IS NULL THEN 0 ELSE 1 END, last_called_at ASC, created_at ASC, id ASC`

func scanContact(row scanner) (domain.Contact, error) {
	var c domain.Contact
	var firstName, lastName, title, email, phoneWork, phoneMobile, phoneCorp, city, industry, keywords, website, segmentKey sql.NullString
	var assignedTo, lastCalled, callLater, noAnswer, callNote, reviveAt sql.NullString
	err := row.Scan(&c.ID, &c.CompanyName, &firstName, &lastName, &title, &email, &phoneWork, &phoneMobile, &phoneCorp,
		&city, &industry, &keywords, &website, &segmentKey, &c.State, &assignedTo, &lastCalled, &callLater, &noAnswer,
		&callNote, &c.NoAnswerCount, &reviveAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.FirstName = firstName.String
	c.LastName = lastName.String
	c.Title = title.String
	c.Email = email.String
	c.PhoneWork = phoneWork.String
	c.PhoneMobile = phoneMobile.String
	c.PhoneCorp = phoneCorp.String
	c.City = city.String
	c.Industry = industry.String
	c.Keywords = keywords.String
	c.Website = website.String
	c.SegmentKey = segmentKey.String
	c.AssignedToID = stringPtr(assignedTo)
	c.LastCalledAt = stringPtr(lastCalled)
	c.CallLaterAt = stringPtr(callLater)
	c.NoAnswerAt = stringPtr(noAnswer)
	c.CallNote = stringPtr(callNote)
	c.ReviveAt = stringPtr(reviveAt)
	return c, nil
}

func (r Repo) queryContacts(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]domain.Contact, error) {
	rows, err := r.on(tx).QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertContact(ctx context.Context, tx *sql.Tx, c domain.Contact) error {
	_, err := r.exec(ctx, tx, `INSERT INTO contacts(`+contactColumns+`) VALUES (`+placeholders(24)+`)`,
		c.ID, c.CompanyName, nullable(c.FirstName), nullable(c.LastName), nullable(c.Title), nullable(c.Email),
		nullable(c.PhoneWork), nullable(c.PhoneMobile), nullable(c.PhoneCorp), nullable(c.City), nullable(c.Industry),
		nullable(c.Keywords), nullable(c.Website), nullable(c.SegmentKey), c.State, nullableStringPtr(c.AssignedToID),
		nullableStringPtr(c.LastCalledAt), nullableStringPtr(c.CallLaterAt), nullableStringPtr(c.NoAnswerAt),
		nullableStringPtr(c.CallNote), c.NoAnswerCount, nullableStringPtr(c.ReviveAt), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetContact(ctx context.Context, tx *sql.Tx, id string) (domain.Contact, error) {
	return scanContact(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+contactColumns+` FROM contacts WHERE id=?`), id))
}

// UpdateContact overwrites every column of c.
func (r Repo) UpdateContact(ctx context.Context, tx *sql.Tx, c domain.Contact) error {
	n, err := r.exec(ctx, tx, `UPDATE contacts SET company_name=?, first_name=?, last_name=?, title=?, email=?, phone_work=?, phone_mobile=?, phone_corp=?, city=?, industry=?, keywords=?, website=?, segment_key=?,
state=?, assigned_to_id=?, last_called_at=?, call_later_at=?, no_answer_at=?, call_note=?, no_answer_count=?, revive_at=?, updated_at=? WHERE id=?`,
		c.CompanyName, nullable(c.FirstName), nullable(c.LastName), nullable(c.Title), nullable(c.Email),
		nullable(c.PhoneWork), nullable(c.PhoneMobile), nullable(c.PhoneCorp), nullable(c.City), nullable(c.Industry),
		nullable(c.Keywords), nullable(c.Website), nullable(c.SegmentKey), c.State, nullableStringPtr(c.AssignedToID),
		nullableStringPtr(c.LastCalledAt), nullableStringPtr(c.CallLaterAt), nullableStringPtr(c.NoAnswerAt),
		nullableStringPtr(c.CallNote), c.NoAnswerCount, nullableStringPtr(c.ReviveAt), c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateIfState writes the lifecycle columns of c only while the stored state
// still equals expectedState. It returns the number of rows changed.
func (r Repo) UpdateIfState(ctx context.Context, tx *sql.Tx, c domain.Contact, expectedState string) (int64, error) {
	return r.exec(ctx, tx, `UPDATE contacts SET state=?, assigned_to_id=?, last_called_at=?, call_later_at=?, no_answer_at=?, call_note=?, no_answer_count=?, revive_at=?, updated_at=?
WHERE id=? AND state=?`,
		c.State, nullableStringPtr(c.AssignedToID), nullableStringPtr(c.LastCalledAt), nullableStringPtr(c.CallLaterAt),
		nullableStringPtr(c.NoAnswerAt), nullableStringPtr(c.CallNote), c.NoAnswerCount, nullableStringPtr(c.ReviveAt),
		c.UpdatedAt, c.ID, expectedState)
}

// ReviveDue returns NO_ANSWER and SKIP contacts whose revive time has passed to
// NEW, clearing reviveAt and any assignment.
func (r Repo) ReviveDue(ctx context.Context, tx *sql.Tx, now string) (int64, error) {
	return r.exec(ctx, tx, `UPDATE contacts SET state=?, revive_at=NULL, assigned_to_id=NULL, updated_at=?
WHERE state IN (?,?) AND revive_at IS NOT NULL AND revive_at<=?`,
		domain.StateNew, now, domain.StateNoAnswer, domain.StateSkip, now)
}

// ReleaseClaims unassigns NEW contacts held by associateID.
func (r Repo) ReleaseClaims(ctx context.Context, tx *sql.Tx, associateID, now string) (int64, error) {
	return r.exec(ctx, tx, `UPDATE contacts SET assigned_to_id=NULL, updated_at=? WHERE state=? AND assigned_to_id=?`,
		now, domain.StateNew, associateID)
}

// EligibleFilter selects claimable contacts. An empty SegmentKey matches any segment.
type EligibleFilter struct {
	AssociateID string
	SegmentKey  string
	Now         string
}

// FindFirstEligible returns the next contact in queue order for f.
func (r Repo) FindFirstEligible(ctx context.Context, f EligibleFilter) (domain.Contact, error) {
	clauses := []string{"state=?", "(assigned_to_id IS NULL OR assigned_to_id=?)", "(revive_at IS NULL OR revive_at<=?)"}
	args := []any{domain.StateNew, f.AssociateID, f.Now}
	if f.SegmentKey != "" {
		clauses = append(clauses, "segment_key=?")
		args = append(args, f.SegmentKey)
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE ` + strings.Join(clauses, " AND ") + ` ` + queueOrder + ` LIMIT 1`
	return scanContact(r.DB.QueryRowContext(ctx, r.q(query), args...))
}

// ClaimContact assigns id to associateID if it is still NEW and unclaimed by
// anyone else. It reports whether this call won the row.
func (r Repo) ClaimContact(ctx context.Context, tx *sql.Tx, id, associateID, now string) (bool, error) {
	n, err := r.exec(ctx, tx, `UPDATE contacts SET assigned_to_id=?, last_called_at=?, updated_at=?
WHERE id=? AND state=? AND (assigned_to_id IS NULL OR assigned_to_id=?)`,
		associateID, now, now, id, domain.StateNew, associateID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetStates applies an administrative state change to ids.
func (r Repo) SetStates(ctx context.Context, tx *sql.Tx, ids []string, state, now string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	sets := []string{"state=?", "revive_at=NULL", "updated_at=?"}
	args := []any{state, now}
	switch state {
	case domain.StateCallLater:
		sets = append(sets, "call_later_at=?", "no_answer_at=NULL")
		args = append(args, now)
	case domain.StateNoAnswer:
		sets = append(sets, "no_answer_at=?", "call_later_at=NULL")
		args = append(args, now)
	default:
		sets = append(sets, "call_later_at=NULL", "no_answer_at=NULL")
	}
	if state == domain.StateNew {
		sets = append(sets, "assigned_to_id=NULL", "no_answer_count=0")
	}
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE contacts SET %s WHERE id IN (%s)`, strings.Join(sets, ", "), placeholders(len(ids)))
	return r.exec(ctx, tx, query, args...)
}

type ContactFilters struct {
	State        string
	SegmentKey   string
	AssignedToID string
	Query        string
	Limit        int
	Offset       int
}

func (f ContactFilters) where() (string, []any) {
	var clauses []string
	var args []any
	if f.State != "" {
		clauses = append(clauses, "state=?")
		args = append(args, f.State)
	}
	switch f.SegmentKey {
	case "":
	case domain.Unsegmented:
		clauses = append(clauses, "segment_key IS NULL")
	default:
		clauses = append(clauses, "segment_key=?")
		args = append(args, f.SegmentKey)
	}
	if f.AssignedToID != "" {
		clauses = append(clauses, "assigned_to_id=?")
		args = append(args, f.AssignedToID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		clauses = append(clauses, "(LOWER(company_name) LIKE ? OR LOWER(COALESCE(first_name,'')) LIKE ? OR LOWER(COALESCE(last_name,'')) LIKE ? OR LOWER(COALESCE(email,'')) LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// ListContacts returns one page of contacts, most recently updated first, and the total match count.
func (r Repo) ListContacts(ctx context.Context, f ContactFilters) ([]domain.Contact, int, error) {
	where, args := f.where()
	var total int
	if err := r.DB.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM contacts `+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + contactColumns + ` FROM contacts ` + where + ` ORDER BY updated_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	items, err := r.queryContacts(ctx, nil, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListCallbacks returns CALL_LATER contacts owned by associateID, latest callback first.
func (r Repo) ListCallbacks(ctx context.Context, associateID string) ([]domain.Contact, error) {
	return r.queryContacts(ctx, nil, `SELECT `+contactColumns+` FROM contacts WHERE state=? AND assigned_to_id=? ORDER BY call_later_at DESC, id ASC`,
		domain.StateCallLater, associateID)
}

func (r Repo) CountByState(ctx context.Context, segmentKey string) (map[string]int, error) {
	query := `SELECT state, COUNT(*) FROM contacts`
	var args []any
	if segmentKey != "" {
		query += ` WHERE segment_key=?`
		args = append(args, segmentKey)
	}
	query += ` GROUP BY state`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		res[state] = n
	}
	return res, rows.Err()
}

// SegmentSummary counts contacts per segment and state.
func (r Repo) SegmentSummary(ctx context.Context) ([]domain.SegmentCount, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT segment_key, state, COUNT(*) FROM contacts GROUP BY segment_key, state ORDER BY segment_key, state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SegmentCount
	for rows.Next() {
		var seg sql.NullString
		var sc domain.SegmentCount
		if err := rows.Scan(&seg, &sc.State, &sc.Count); err != nil {
			return nil, err
		}
		sc.SegmentKey = seg.String
		if sc.SegmentKey == "" {
			sc.SegmentKey = domain.Unsegmented
		}
		res = append(res, sc)
	}
	return res, rows.Err()
}

// CountBookings counts BOOKED contacts owned by associateID handled at or after since.
func (r Repo) CountBookings(ctx context.Context, associateID, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM contacts WHERE state=? AND assigned_to_id=? AND last_called_at>=?`),
		domain.StateBooked, associateID, since).Scan(&n)
	return n, err
}
