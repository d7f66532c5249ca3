package loan

import (
	"context"
	"sync"
	"time"

	xerrors "SwiftyBank/internal/errors"
)

// Status 表示已入账贷款的状态。
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusDisbursed Status = "DISBURSED"
	StatusClosed    Status = "CLOSED"
)

// Record 表示核心系统中一笔已落账的贷款。
type Record struct {
	ApplicationID string    `json:"application_id"`
	UserID        string    `json:"user_id"`
	ProductType   string    `json:"product_type"`
	Amount        float64   `json:"amount"`
	InterestRate  float64   `json:"interest_rate"`
	TenureMonths  int       `json:"tenure_months"`
	EMI           float64   `json:"emi"`
	Status        Status    `json:"status"`
	DisbursalDate time.Time `json:"disbursal_date"`
}

// ErrLoanNotFound 表示指定申请编号的贷款不存在。
var ErrLoanNotFound = xerrors.New(xerrors.CodeNotFound, "loan not found")

// Store 抽象贷款入账与查询。Book 必须按申请编号幂等。
type Store interface {
	Book(ctx context.Context, record Record) error
	Find(ctx context.Context, applicationID string) (*Record, error)
}

// MemoryStore 以内存方式保存贷款记录，主要用于开发与测试。
type MemoryStore struct {
	mu    sync.RWMutex
	loans map[string]Record
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{loans: make(map[string]Record)}
}

// Book 实现 Store 接口。已存在的申请编号直接跳过，防止重复入账。
func (m *MemoryStore) Book(_ context.Context, record Record) error {
	if record.ApplicationID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "申请编号不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[record.ApplicationID]; ok {
		return nil
	}
	if record.DisbursalDate.IsZero() {
		record.DisbursalDate = time.Now()
	}
	m.loans[record.ApplicationID] = record
	return nil
}

// Find 返回指定申请编号的贷款。
func (m *MemoryStore) Find(_ context.Context, applicationID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.loans[applicationID]
	if !ok {
		return nil, ErrLoanNotFound
	}
	clone := record
	return &clone, nil
}

var _ Store = (*MemoryStore)(nil)
