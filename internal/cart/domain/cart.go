package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Item is what the shopper picks from the menu.
type Item struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type CartLine struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty"`
}

// MarshalJSON writes the price as a JSON number.
func (l CartLine) MarshalJSON() ([]byte, error) {
	type line CartLine
	return json.Marshal(struct {
		line
		Price json.Number `json:"price"`
	}{line(l), json.Number(l.Price.String())})
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Cart is an immutable value: every transition returns a new Cart and leaves
// the receiver untouched, so a snapshot stays valid after later edits.
// Lines keep insertion order, ids are unique and every Qty is at least 1.
type Cart struct {
	lines []CartLine
}

func NewCart(lines ...CartLine) Cart {
	var c Cart
	for _, l := range lines {
		if l.Qty <= 0 || c.index(l.ID) >= 0 {
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

func (c Cart) index(id string) int {
	for i, l := range c.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// AddItem bumps the quantity of an existing line or appends a new one.
func (c Cart) AddItem(item Item) Cart {
	lines := c.Lines()
	if i := c.index(item.ID); i >= 0 {
		lines[i].Qty++
		return Cart{lines: lines}
	}
	return Cart{lines: append(lines, CartLine{
		ID:    item.ID,
		Name:  item.Name,
		Price: item.Price,
		Qty:   1,
	})}
}

// SetQuantity removes the line when qty <= 0. Unknown ids are ignored.
func (c Cart) SetQuantity(id string, qty int) Cart {
	if qty < 0 {
		qty = 0
	}
	i := c.index(id)
	if i < 0 {
		return c
	}
	lines := c.Lines()
	if qty == 0 {
		return Cart{lines: append(lines[:i], lines[i+1:]...)}
	}
	lines[i].Qty = qty
	return Cart{lines: lines}
}

func (c Cart) Clear() Cart {
	return Cart{}
}

// Lines returns a copy of the cart lines.
func (c Cart) Lines() []CartLine {
	if len(c.lines) == 0 {
		return nil
	}
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c Cart) Line(id string) (CartLine, bool) {
	if i := c.index(id); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

func (c Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Count is the number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Qty
	}
	return n
}
