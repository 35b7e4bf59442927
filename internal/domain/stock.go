package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrStockInsufficient indicates the requested quantity exceeds what is available.
	ErrStockInsufficient = errors.New("stock: insufficient")
	// ErrStockInvalidQuantity indicates a zero or negative quantity.
	ErrStockInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrStockNegative indicates a stock level below zero was supplied.
	ErrStockNegative = errors.New("stock: negative stock level")
)

// ParseSizes decodes the stored size breakdown. Empty or malformed input yields an empty list.
func ParseSizes(raw string) []SizeStock {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	var sizes []SizeStock
	if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
		return nil
	}
	return sizes
}

// EncodeSizes serialises the size breakdown for storage.
func EncodeSizes(sizes []SizeStock) (string, error) {
	if len(sizes) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(sizes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EffectiveStock is the colour-level sum when colours exist, else the size's own stock.
func (s SizeStock) EffectiveStock() int {
	if len(s.Colors) == 0 {
		return s.Stock
	}
	total := 0
	for _, c := range s.Colors {
		total += c.Stock
	}
	return total
}

// SumSizes totals the effective stock of every size.
func SumSizes(sizes []SizeStock) int {
	total := 0
	for _, s := range sizes {
		total += s.EffectiveStock()
	}
	return total
}

// Available returns the quantity that can be reserved for the size and optional colour.
// Products without a size breakdown answer from the aggregate stock. Missing entries yield 0.
func (p Product) Available(size, color string) int {
	if len(p.Sizes) == 0 {
		return nonNegative(p.Stock)
	}
	idx := p.sizeIndex(size)
	if idx < 0 {
		return 0
	}
	entry := p.Sizes[idx]
	if len(entry.Colors) == 0 {
		return nonNegative(entry.Stock)
	}
	if color != "" {
		cidx := colorIndex(entry.Colors, color)
		if cidx < 0 {
			return 0
		}
		return nonNegative(entry.Colors[cidx].Stock)
	}
	// Uncoloured requests draw from the colours, so a size total above their sum is not sellable.
	drawable := 0
	for _, c := range entry.Colors {
		drawable += nonNegative(c.Stock)
	}
	return min(nonNegative(entry.Stock), drawable)
}

// Reserve takes qty units out of the matching size (and colour) entry and recomputes the aggregate.
// When the size is split by colour but no colour is requested, colours are drained in listed order.
func (p *Product) Reserve(size, color string, qty int) error {
	if qty <= 0 {
		return ErrStockInvalidQuantity
	}
	if p.Available(size, color) < qty {
		return ErrStockInsufficient
	}
	if len(p.Sizes) == 0 {
		p.Stock -= qty
		return nil
	}

	p.Sizes = cloneSizes(p.Sizes)
	entry := &p.Sizes[p.sizeIndex(size)]
	if len(entry.Colors) == 0 {
		entry.Stock -= qty
	} else {
		if color != "" {
			entry.Colors[colorIndex(entry.Colors, color)].Stock -= qty
		} else {
			remaining := qty
			for i := range entry.Colors {
				if remaining == 0 {
					break
				}
				take := min(nonNegative(entry.Colors[i].Stock), remaining)
				entry.Colors[i].Stock -= take
				remaining -= take
			}
		}
		entry.Stock = entry.EffectiveStock()
	}
	p.Stock = SumSizes(p.Sizes)
	return nil
}

// Release puts qty units back into the matching size (and colour) entry and recomputes the aggregate.
// It reports false when the product has a size breakdown but the size no longer exists; the
// breakdown is then left untouched.
func (p *Product) Release(size, color string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrStockInvalidQuantity
	}
	if len(p.Sizes) == 0 {
		p.Stock += qty
		return true, nil
	}

	idx := p.sizeIndex(size)
	if idx < 0 {
		p.Stock = SumSizes(p.Sizes)
		return false, nil
	}

	p.Sizes = cloneSizes(p.Sizes)
	entry := &p.Sizes[idx]
	if len(entry.Colors) == 0 {
		entry.Stock += qty
	} else {
		cidx := 0
		if color != "" {
			if found := colorIndex(entry.Colors, color); found >= 0 {
				cidx = found
			}
		}
		entry.Colors[cidx].Stock += qty
		entry.Stock = entry.EffectiveStock()
	}
	p.Stock = SumSizes(p.Sizes)
	return true, nil
}

// ReplaceStock overwrites the stock breakdown. With sizes the aggregate is derived, otherwise stock is taken as is.
func (p *Product) ReplaceStock(stock int, sizes []SizeStock) error {
	if len(sizes) == 0 {
		if stock < 0 {
			return ErrStockNegative
		}
		p.Sizes = nil
		p.Stock = stock
		return nil
	}

	normalised := cloneSizes(sizes)
	for i := range normalised {
		entry := &normalised[i]
		entry.Size = strings.TrimSpace(entry.Size)
		if entry.Stock < 0 {
			return ErrStockNegative
		}
		for j := range entry.Colors {
			entry.Colors[j].Color = strings.TrimSpace(entry.Colors[j].Color)
			if entry.Colors[j].Stock < 0 {
				return ErrStockNegative
			}
		}
		if len(entry.Colors) > 0 {
			entry.Stock = entry.EffectiveStock()
		}
	}
	p.Sizes = normalised
	p.Stock = SumSizes(normalised)
	return nil
}

func (p Product) sizeIndex(size string) int {
	size = strings.TrimSpace(size)
	for i, entry := range p.Sizes {
		if strings.TrimSpace(entry.Size) == size {
			return i
		}
	}
	return -1
}

func colorIndex(colors []ColorStock, color string) int {
	color = strings.TrimSpace(color)
	for i, c := range colors {
		if strings.EqualFold(strings.TrimSpace(c.Color), color) {
			return i
		}
	}
	return -1
}

func cloneSizes(sizes []SizeStock) []SizeStock {
	if sizes == nil {
		return nil
	}
	out := make([]SizeStock, len(sizes))
	for i, s := range sizes {
		out[i] = s
		if s.Colors != nil {
			out[i].Colors = append([]ColorStock(nil), s.Colors...)
		}
	}
	return out
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
