package core

import "github.com/shopspring/decimal"

// CategoryTotal represents a category with its derived total.
type CategoryTotal struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// Overview is a compact summary of the whole dataset.
type Overview struct {
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"itemCount"`
	Categories []CategoryTotal `json:"categories"`
}

// Overview builds the per-category totals for the dataset.
func (d Dataset) Overview() Overview {
	out := Overview{
		Total:      d.Total(),
		ItemCount:  d.ItemCount(),
		Categories: make([]CategoryTotal, len(d)),
	}
	for i, c := range d {
		out.Categories[i] = CategoryTotal{
			ID:        c.ID.String(),
			Name:      c.Name,
			Total:     c.Total(),
			ItemCount: len(c.Items),
		}
	}
	return out
}
