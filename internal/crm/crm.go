package crm

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Transaction 表示账户最近的一笔交易。
type Transaction struct {
	Amount float64 `json:"amount"`
	Desc   string  `json:"desc"`
}

// Profile 表示客户在 CRM 中的账户档案。
type Profile struct {
	CustomerID   string        `json:"customer_id"`
	AccountType  string        `json:"account_type"`
	AccountID    string        `json:"account_id"`
	Balance      float64       `json:"balance"`
	CardLast4    string        `json:"card_last4"`
	Transactions []Transaction `json:"recent_transactions"`
}

// Provider 定义客户档案查询的只读接口。
type Provider interface {
	Lookup(customerID string) (Profile, bool)
}

// StaticProvider 通过加载 JSON 文件提供静态档案查询能力。
type StaticProvider struct {
	profiles []Profile
}

// NewStaticProvider 创建静态档案实例。
func NewStaticProvider(profiles []Profile) *StaticProvider {
	return &StaticProvider{profiles: profiles}
}

// LoadStaticProvider 从 JSON 文件加载客户档案。
func LoadStaticProvider(path string) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("客户档案文件路径不能为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取客户档案失败: %w", err)
	}
	defer file.Close()

	var profiles []Profile
	if err := json.NewDecoder(file).Decode(&profiles); err != nil {
		return nil, fmt.Errorf("解析客户档案失败: %w", err)
	}
	return NewStaticProvider(profiles), nil
}

// Lookup 按客户编号查找档案。
func (p *StaticProvider) Lookup(customerID string) (Profile, bool) {
	if p == nil {
		return Profile{}, false
	}
	for _, profile := range p.profiles {
		if profile.CustomerID == customerID {
			return profile, true
		}
	}
	return Profile{}, false
}

// ProfileOr 返回客户档案；查询不到时返回演示用的默认账户，
// 保证支持流程不因缺档中断。
func ProfileOr(provider Provider, customerID string) Profile {
	if provider != nil {
		if profile, ok := provider.Lookup(customerID); ok {
			return profile
		}
	}
	return Profile{
		AccountType: "Savings",
		AccountID:   "XXXXXX1234",
		Balance:     245_000,
		CardLast4:   "8899",
		Transactions: []Transaction{
			{Amount: 1200, Desc: "Amazon"},
		},
	}
}

var _ Provider = (*StaticProvider)(nil)
