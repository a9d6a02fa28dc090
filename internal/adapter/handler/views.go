package handler

import (
	"time"

	"github.com/deptstock/stock-ledger/internal/core/domain"
)

// Wire shapes shared by the HTTP and gRPC transports.

type AssignMessage struct {
	StockItemID    int64  `json:"stock_item_id"`
	AssigneeUserID int64  `json:"assignee_user_id"`
	Reason         string `json:"reason,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

type ReturnMessage struct {
	ItemID    int64  `json:"item_id"`
	Reason    string `json:"reason"`
	Condition string `json:"condition,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type TransitionReply struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Item    *ItemView `json:"item,omitempty"`
	LogID   int64     `json:"log_id,omitempty"`
}

type ListItemsMessage struct {
	DepartmentID int64 `json:"department_id,omitempty"`
}

type ItemsReply struct {
	Items []ItemView `json:"items"`
}

type ListLogsMessage struct {
	Action string `json:"action,omitempty"`
	ItemID int64  `json:"item_id,omitempty"`
}

type LogsReply struct {
	Logs []LogView `json:"logs"`
}

type ItemView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	DepartmentID int64  `json:"department_id"`
	Status       string `json:"status"`
}

type LogView struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Details   domain.LogDetails `json:"details"`
}

type UserView struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	DepartmentID int64  `json:"department_id"`
	FullName     string `json:"full_name,omitempty"`
	Role         string `json:"role"`
}

type DepartmentView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newItemView(item domain.StockItem) ItemView {
	return ItemView{
		ID:           item.ID,
		Name:         item.Name,
		Quantity:     item.Quantity,
		DepartmentID: item.DepartmentID,
		Status:       string(item.Status),
	}
}

func newLogView(e domain.LogEntry) LogView {
	return LogView{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Action:    string(e.Action),
		Details:   e.Details,
	}
}

func (m AssignMessage) valid() bool {
	return m.StockItemID > 0 && m.AssigneeUserID > 0
}

func (m AssignMessage) toRequest() domain.AssignRequest {
	return domain.AssignRequest{
		StockItemID:    m.StockItemID,
		AssigneeUserID: m.AssigneeUserID,
		Reason:         m.Reason,
		RequestID:      m.RequestID,
	}
}

func (m ReturnMessage) valid() bool {
	return m.ItemID > 0 && m.Reason != ""
}

func (m ReturnMessage) toRequest() domain.ReturnRequest {
	return domain.ReturnRequest{
		ItemID:    m.ItemID,
		Reason:    m.Reason,
		Condition: m.Condition,
		RequestID: m.RequestID,
	}
}
