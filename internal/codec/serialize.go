package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Marshal serializes a dataset to its canonical wire form: a JSON array of
// category objects, each with id, name and items. Amounts are JSON numbers,
// dates ISO-8601 strings. The encoding is stable and versionless.
func Marshal(d core.Dataset) ([]byte, error) {
	if d == nil {
		d = core.Dataset{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return data, nil
}

// MarshalIndent serializes a dataset as pretty-printed JSON for the plain
// text interchange path.
func MarshalIndent(d core.Dataset) ([]byte, error) {
	if d == nil {
		d = core.Dataset{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return data, nil
}

// Wire types use pointers so that absent required fields are detectable.
// Unknown extra fields are ignored for forward compatibility.
type (
	wireItem struct {
		ID          *uuid.UUID       `json:"id"`
		Amount      *decimal.Decimal `json:"amount"`
		Description *string          `json:"description"`
		Date        *time.Time       `json:"date"`
	}

	wireCategory struct {
		ID    *uuid.UUID  `json:"id"`
		Name  *string     `json:"name"`
		Items *[]wireItem `json:"items"`
	}
)

// Unmarshal parses the canonical wire form back into a dataset.
//
// Required fields are id, name and items on categories and id, amount and
// date on items; a missing field or a wrong type fails with ErrMalformed.
// The description is optional and defaults to empty. Identifiers are
// preserved exactly as decoded.
func Unmarshal(data []byte) (core.Dataset, error) {
	var wire []wireCategory
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make(core.Dataset, 0, len(wire))
	for i, wc := range wire {
		if wc.ID == nil {
			return nil, fmt.Errorf("%w: category %d: missing id", ErrMalformed, i)
		}
		if wc.Name == nil {
			return nil, fmt.Errorf("%w: category %d: missing name", ErrMalformed, i)
		}
		if wc.Items == nil {
			return nil, fmt.Errorf("%w: category %d: missing items", ErrMalformed, i)
		}

		cat := core.Category{
			ID:    *wc.ID,
			Name:  *wc.Name,
			Items: make([]core.ExpenseItem, 0, len(*wc.Items)),
		}
		for j, wi := range *wc.Items {
			if wi.ID == nil {
				return nil, fmt.Errorf("%w: category %d item %d: missing id", ErrMalformed, i, j)
			}
			if wi.Amount == nil {
				return nil, fmt.Errorf("%w: category %d item %d: missing amount", ErrMalformed, i, j)
			}
			if wi.Date == nil {
				return nil, fmt.Errorf("%w: category %d item %d: missing date", ErrMalformed, i, j)
			}
			item := core.ExpenseItem{
				ID:     *wi.ID,
				Amount: *wi.Amount,
				Date:   *wi.Date,
			}
			if wi.Description != nil {
				item.Description = *wi.Description
			}
			cat.Items = append(cat.Items, item)
		}
		out = append(out, cat)
	}
	return out, nil
}
