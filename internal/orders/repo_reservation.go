package orders

import (
	"context"
	"sort"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/cart"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbx"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/inventory"
)

// mergeLines folds lines for the same medicine into one, summing quantities
// and keeping first-seen order.
func mergeLines(lines []cart.Line) []ItemQty {
	index := make(map[int64]int, len(lines))
	out := make([]ItemQty, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.MedicineID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.MedicineID] = len(out)
		out = append(out, ItemQty{MedicineID: l.MedicineID, Quantity: l.Quantity})
	}
	return out
}

// reserveAll locks every medicine row (FOR UPDATE on Postgres) in ascending id
// so concurrent checkouts over overlapping carts cannot deadlock. The first
// shortage aborts; the caller's transaction rolls back.
func reserveAll(ctx context.Context, q dbx.Queryer, ledger *inventory.Ledger, items []ItemQty) (map[int64]inventory.Medicine, error) {
	sorted := make([]ItemQty, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MedicineID < sorted[j].MedicineID })

	locked := make(map[int64]inventory.Medicine, len(sorted))
	for _, it := range sorted {
		m, err := ledger.Reserve(ctx, q, it.MedicineID, it.Quantity)
		if err != nil {
			return nil, err
		}
		locked[it.MedicineID] = m
	}
	return locked, nil
}

// releaseAll puts back the stock of every item.
func releaseAll(ctx context.Context, q dbx.Queryer, ledger *inventory.Ledger, items []Item) error {
	for _, it := range items {
		if err := ledger.Restore(ctx, q, it.MedicineID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}
