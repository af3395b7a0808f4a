package detail

// View is what the detail panel renders for the current selection.
type View struct {
	ID       string  `json:"id,omitempty"`
	Record   *Record `json:"record,omitempty"`
	Missing  bool    `json:"missing,omitempty" doc:"An ID is selected but has no record"`
	Unit     int     `json:"unit" doc:"Index of the active price option"`
	ShowMore bool    `json:"showMore" doc:"Additional transactions are expanded"`
}

// Open reports whether the panel has a record to show.
func (v View) Open() bool { return v.Record != nil }

// Price returns the active price option.
func (v View) Price() (PriceOption, bool) {
	if v.Record == nil || v.Unit >= len(v.Record.PriceSection.Options) {
		return PriceOption{}, false
	}
	return v.Record.PriceSection.Options[v.Unit], true
}

// Transactions returns the visible transactions: the recent ones, followed by
// the additional ones when expanded.
func (v View) Transactions() []Transaction {
	if v.Record == nil {
		return nil
	}
	out := append([]Transaction(nil), v.Record.RecentTransactions...)
	if v.ShowMore {
		out = append(out, v.Record.AdditionalTransactions...)
	}
	return out
}

// CanShowMore reports whether there are additional transactions to expand.
func (v View) CanShowMore() bool {
	return v.Record != nil && len(v.Record.AdditionalTransactions) > 0
}

// Binder projects the selected ID onto a record. Panel-local state (active
// price option, expanded transactions) belongs to the bound ID and resets
// whenever the ID changes. Not safe for concurrent use.
type Binder struct {
	src Source

	id       string
	record   *Record
	unit     int
	showMore bool
}

// NewBinder returns a binder reading from src.
func NewBinder(src Source) *Binder {
	return &Binder{src: src}
}

// Bind switches the panel to id and reports whether it changed. An empty id
// closes the panel.
func (b *Binder) Bind(id string) bool {
	if id == b.id {
		return false
	}
	b.id = id
	b.record = nil
	b.unit = 0
	b.showMore = false

	if id != "" {
		if r, ok := b.src.Lookup(id); ok {
			b.record = &r
		}
	}
	return true
}

// SelectUnit activates price option i. Out-of-range indexes are ignored.
func (b *Binder) SelectUnit(i int) bool {
	if b.record == nil || i < 0 || i >= len(b.record.PriceSection.Options) || i == b.unit {
		return false
	}
	b.unit = i
	return true
}

// ToggleShowMore expands or collapses the additional transactions.
func (b *Binder) ToggleShowMore() bool {
	if b.record == nil {
		return false
	}
	b.showMore = !b.showMore
	return true
}

// ID returns the bound ID.
func (b *Binder) ID() string { return b.id }

// View returns the current panel state.
func (b *Binder) View() View {
	return View{
		ID:       b.id,
		Record:   b.record,
		Missing:  b.id != "" && b.record == nil,
		Unit:     b.unit,
		ShowMore: b.showMore,
	}
}
