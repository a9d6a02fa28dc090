package domain

type AssignRequest struct {
	StockItemID    int64
	AssigneeUserID int64
	Reason         string
	RequestID      string
}

func (r AssignRequest) Details() LogDetails {
	actor := r.AssigneeUserID
	return LogDetails{
		ItemID:    r.StockItemID,
		ActorID:   &actor,
		Reason:    r.Reason,
		RequestID: r.RequestID,
	}
}

type ReturnRequest struct {
	ItemID    int64
	Reason    string
	Condition string
	RequestID string
}

func (r ReturnRequest) Details() LogDetails {
	return LogDetails{
		ItemID:    r.ItemID,
		Reason:    r.Reason,
		Condition: r.Condition,
		RequestID: r.RequestID,
	}
}

// ItemFilter narrows item listings. Zero value matches everything.
type ItemFilter struct {
	DepartmentID int64
}

func (f ItemFilter) Match(item StockItem) bool {
	return f.DepartmentID == 0 || item.DepartmentID == f.DepartmentID
}

// LogFilter narrows log listings. Zero value matches everything.
type LogFilter struct {
	Action Action
	ItemID int64
}

func (f LogFilter) Match(entry LogEntry) bool {
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	return f.ItemID == 0 || entry.Details.ItemID == f.ItemID
}
