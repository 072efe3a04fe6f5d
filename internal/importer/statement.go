package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"moneyviz/internal/core"
)

const (
	statementDateLayout = "2/1/2006"
	valueDateMarker     = "Value Date: "
	cardMarker          = "Card xx"
)

// ErrMalformedRow marks a statement line that could not be parsed.
var ErrMalformedRow = errors.New("malformed statement row")

// statementRow mirrors the headerless bank export: date, amount,
// description, balance.
type statementRow struct {
	Date        string `csv:"date"`
	Amount      string `csv:"amount"`
	Description string `csv:"description"`
	Balance     string `csv:"balance"`
}

// Entry is one parsed statement line.
type Entry struct {
	Line        int
	Date        core.Date
	ValueDate   core.Date
	Amount      decimal.Decimal
	Balance     decimal.Decimal
	Description string
	Original    string
}

// ParseStatement reads a headerless CSV export with exactly four columns
// per line. Blank lines are skipped.
func ParseStatement(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	var rows []*statementRow
	if err := gocsv.UnmarshalCSVWithoutHeaders(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("read statement: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		if row == nil || (row.Date == "" && row.Amount == "" && row.Description == "") {
			continue
		}
		e, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		e.Line = i + 1
		entries = append(entries, e)
	}
	return entries, nil
}

func parseRow(row *statementRow) (Entry, error) {
	date, err := parseStatementDate(row.Date)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: date %q", ErrMalformedRow, row.Date)
	}
	amount, err := core.ParseAmount(row.Amount)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: amount %q", ErrMalformedRow, row.Amount)
	}
	balance := decimal.Zero
	if strings.TrimSpace(row.Balance) != "" {
		if balance, err = core.ParseAmount(row.Balance); err != nil {
			return Entry{}, fmt.Errorf("%w: balance %q", ErrMalformedRow, row.Balance)
		}
	}

	desc, valueDate, err := CleanDescription(row.Description)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Date:        date,
		ValueDate:   valueDate,
		Amount:      amount,
		Balance:     balance,
		Description: desc,
		Original:    row.Description,
	}, nil
}

func parseStatementDate(s string) (core.Date, error) {
	t, err := time.Parse(statementDateLayout, strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, err
	}
	if t.Year() < core.MinYear {
		return core.Date{}, fmt.Errorf("date %q: %w", s, core.ErrInvalidDate)
	}
	return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// CleanDescription splits the "Value Date: dd/mm/yyyy" suffix off a raw
// description and drops the card number tail. The value date is zero when
// absent.
func CleanDescription(raw string) (string, core.Date, error) {
	desc := raw
	var valueDate core.Date

	if head, tail, found := strings.Cut(desc, valueDateMarker); found {
		desc = head
		fields := strings.Fields(tail)
		if len(fields) == 0 {
			return "", core.Date{}, fmt.Errorf("%w: empty value date in %q", ErrMalformedRow, raw)
		}
		d, err := parseStatementDate(fields[0])
		if err != nil {
			return "", core.Date{}, fmt.Errorf("%w: value date %q", ErrMalformedRow, fields[0])
		}
		valueDate = d
	}

	if head, _, found := strings.Cut(desc, cardMarker); found {
		desc = head
	}
	return strings.TrimSpace(desc), valueDate, nil
}
