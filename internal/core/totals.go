package core

// Totals is the aggregate result for a filtered set of transactions.
// Immutable once produced; the aggregation cache stores it as-is.
type Totals struct {
	Income   Money
	Expense  Money
	Count    int64
	Complete bool // set by the aggregator when every group was summed
}

// Net returns income minus expense.
func (t Totals) Net() Money {
	return Money{Cents: t.Income.Cents - t.Expense.Cents}
}

// PageInfo describes a page's position without an exact total row count.
// HasNext comes from a pageSize+1 probe, not a second count query.
type PageInfo struct {
	Page     int // 1-based
	PageSize int
	HasNext  bool
	HasPrev  bool
}

// TransactionPage is one ordered page of the filtered ledger.
type TransactionPage struct {
	Items []Transaction
	Info  PageInfo
}
