package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type (
	// ExpenseItem is a single recorded expense inside a category.
	ExpenseItem struct {
		ID          uuid.UUID       `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
	}

	// Category groups expense items under a name. The total is always
	// derived from the items, never stored.
	Category struct {
		ID    uuid.UUID     `json:"id"`
		Name  string        `json:"name"`
		Items []ExpenseItem `json:"items"`
	}

	// Dataset is the whole tracked state and the unit of export/import.
	// Imports replace it atomically; there is no merge.
	Dataset []Category
)

var (
	ErrMissingID        = errors.New("missing id")
	ErrEmptyName        = errors.New("empty category name")
	ErrNameTooLong      = errors.New("category name too long (max 200 characters)")
	ErrZeroDate         = errors.New("item date cannot be zero")
	ErrCategoryNotFound = errors.New("category not found")
	ErrItemNotFound     = errors.New("expense item not found")
)

// NewCategory creates an empty category with a fresh id.
func NewCategory(name string) Category {
	return Category{
		ID:    uuid.New(),
		Name:  name,
		Items: []ExpenseItem{},
	}
}

// NewExpenseItem creates an item with a fresh id, dated now.
// Zero and negative amounts are allowed (refunds, corrections).
func NewExpenseItem(amount decimal.Decimal, description string) ExpenseItem {
	return ExpenseItem{
		ID:          uuid.New(),
		Amount:      amount,
		Description: description,
		Date:        time.Now().UTC(),
	}
}

func (i ExpenseItem) Validate() error {
	if i.ID == uuid.Nil {
		return ErrMissingID
	}
	if i.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (c Category) Validate() error {
	if c.ID == uuid.Nil {
		return ErrMissingID
	}
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return ErrNameTooLong
	}
	for _, item := range c.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d Dataset) Validate() error {
	for _, c := range d {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Total sums the item amounts of the category.
func (c Category) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// Total sums all item amounts across the dataset.
func (d Dataset) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range d {
		total = total.Add(c.Total())
	}
	return total
}

// ItemCount returns the number of items across all categories.
func (d Dataset) ItemCount() int {
	n := 0
	for _, c := range d {
		n += len(c.Items)
	}
	return n
}

// Category returns the category with the given id.
func (d Dataset) Category(id uuid.UUID) (Category, bool) {
	for _, c := range d {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Equal reports value equality. Amounts compare numerically (1.5 equals
// 1.50) and dates compare as instants, so a dataset equals itself after a
// serialization round-trip.
func (i ExpenseItem) Equal(other ExpenseItem) bool {
	return i.ID == other.ID &&
		i.Amount.Equal(other.Amount) &&
		i.Description == other.Description &&
		i.Date.Equal(other.Date)
}

func (c Category) Equal(other Category) bool {
	if c.ID != other.ID || c.Name != other.Name || len(c.Items) != len(other.Items) {
		return false
	}
	for idx, item := range c.Items {
		if !item.Equal(other.Items[idx]) {
			return false
		}
	}
	return true
}

func (d Dataset) Equal(other Dataset) bool {
	if len(d) != len(other) {
		return false
	}
	for idx, c := range d {
		if !c.Equal(other[idx]) {
			return false
		}
	}
	return true
}
