package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/money"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

// ImportResult summarizes a catalog import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportCSV loads medicines from a CSV with the header
// name,category,price,stock,expiry_date,supplier. Malformed rows are skipped;
// the rest are inserted in one transaction.
func (l *Ledger) ImportCSV(ctx context.Context, actor session.Actor, r io.Reader) (ImportResult, error) {
	if err := actor.Require(session.RoleAdmin, session.RoleSystem); err != nil {
		return ImportResult{}, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		return ImportResult{}, fmt.Errorf("read catalog header: %w", err)
	}

	var res ImportResult
	err := l.db.InTx(ctx, func(tx dbx.Queryer) error {
		line := 1
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			line++
			if err != nil {
				log.Printf("catalog: line %d: %v", line, err)
				res.Skipped++
				continue
			}
			in, err := parseRecord(record)
			if err != nil {
				log.Printf("catalog: line %d: %v", line, err)
				res.Skipped++
				continue
			}
			if _, err := createMedicine(ctx, tx, in); err != nil {
				return fmt.Errorf("catalog line %d: %w", line, err)
			}
			res.Imported++
		}
	})
	if err != nil {
		return ImportResult{}, err
	}

	l.log.Record(ctx, activity.New(actor.UserID, activity.ActionMedicineCreated,
		"imported %d medicines, skipped %d", res.Imported, res.Skipped))
	return res, nil
}

func parseRecord(record []string) (NewMedicine, error) {
	if len(record) < 6 {
		return NewMedicine{}, fmt.Errorf("expected 6 fields, got %d", len(record))
	}
	name := strings.TrimSpace(record[0])
	if name == "" {
		return NewMedicine{}, errors.New("missing name")
	}
	price, err := money.Parse(strings.TrimSpace(record[2]))
	if err != nil {
		return NewMedicine{}, fmt.Errorf("price %q: %w", record[2], err)
	}
	if price < 0 {
		return NewMedicine{}, fmt.Errorf("negative price %q", record[2])
	}
	stock, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil || stock < 0 {
		return NewMedicine{}, fmt.Errorf("stock %q is not a non-negative integer", record[3])
	}
	in := NewMedicine{
		Name:       name,
		Category:   strings.TrimSpace(record[1]),
		PriceCents: price,
		Stock:      stock,
		Supplier:   strings.TrimSpace(record[5]),
	}
	if raw := strings.TrimSpace(record[4]); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return NewMedicine{}, fmt.Errorf("expiry %q: %w", raw, err)
		}
		in.ExpiryDate = &t
	}
	return in, nil
}
