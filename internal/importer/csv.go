package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"leadline/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result is the outcome of parsing one CSV file.
type Result struct {
	Rows    []domain.Contact
	Read    int
	Skipped int
}

type field int

const (
	fieldCompany field = iota
	fieldFirstName
	fieldLastName
	fieldTitle
	fieldEmail
	fieldPhoneWork
	fieldPhoneMobile
	fieldPhoneCorp
	fieldCity
	fieldIndustry
	fieldKeywords
	fieldWebsite
	fieldSegment
)

// aliases maps lower-cased header names to contact fields.
var aliases = map[string]field{
	"business name":     fieldCompany,
	"company name":      fieldCompany,
	"company":           fieldCompany,
	"empresa":           fieldCompany,
	"first name":        fieldFirstName,
	"last name":         fieldLastName,
	"title":             fieldTitle,
	"email":             fieldEmail,
	"phone":             fieldPhoneWork,
	"work phone":        fieldPhoneWork,
	"work direct phone": fieldPhoneWork,
	"mobile phone":      fieldPhoneMobile,
	"corporate phone":   fieldPhoneCorp,
	"city":              fieldCity,
	"company city":      fieldCity,
	"industry":          fieldIndustry,
	"keywords":          fieldKeywords,
	"website":           fieldWebsite,
	"segment":           fieldSegment,
	"segmentkey":        fieldSegment,
}

// Parse reads contacts from CSV data. The delimiter is ';' when the header
// splits into more than one column on it, ',' otherwise. Rows without a
// company name are skipped. defaultSegment applies to rows with no segment.
func Parse(r io.Reader, defaultSegment string) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, errors.New("csv is empty")
	}
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	columns := map[field]int{}
	for i, name := range header {
		if f, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, seen := columns[f]; !seen {
				columns[f] = i
			}
		}
	}
	if _, ok := columns[fieldCompany]; !ok {
		return Result{}, errors.New("csv has no company name column")
	}

	var res Result
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv line %d: %w", res.Read+2, err)
		}
		if blank(record) {
			continue
		}
		res.Read++
		get := func(f field) string {
			i, ok := columns[f]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		c := domain.Contact{
			CompanyName: get(fieldCompany),
			FirstName:   get(fieldFirstName),
			LastName:    get(fieldLastName),
			Title:       get(fieldTitle),
			Email:       get(fieldEmail),
			PhoneWork:   get(fieldPhoneWork),
			PhoneMobile: get(fieldPhoneMobile),
			PhoneCorp:   get(fieldPhoneCorp),
			City:        get(fieldCity),
			Industry:    get(fieldIndustry),
			Keywords:    get(fieldKeywords),
			Website:     get(fieldWebsite),
			SegmentKey:  get(fieldSegment),
		}
		if c.CompanyName == "" {
			res.Skipped++
			continue
		}
		if c.SegmentKey == "" {
			c.SegmentKey = defaultSegment
		}
		res.Rows = append(res.Rows, c)
	}
	return res, nil
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		line = data[:i]
	}
	if len(bytes.Split(line, []byte(";"))) > 1 {
		return ';'
	}
	return ','
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
