package bureau

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Record 表示征信局返回的一条信用档案。
type Record struct {
	PAN         string   `json:"pan"`
	Score       int      `json:"score"`
	LastUpdated string   `json:"last_updated"`
	History     []string `json:"history"`
}

// Provider 定义信用分查询的只读接口。
type Provider interface {
	Lookup(pan string) (Record, bool)
}

// 查询不到任何档案时使用的兜底分数。
const defaultScore = 750

// 对外接口上未知 PAN 的演示默认分。
const unknownPANScore = 720

// StaticProvider 通过加载 JSON 文件提供静态征信查询能力。
type StaticProvider struct {
	records []Record
}

// NewStaticProvider 创建静态征信档案实例。
func NewStaticProvider(records []Record) *StaticProvider {
	return &StaticProvider{records: records}
}

// LoadStaticProvider 从 JSON 文件加载征信档案。
func LoadStaticProvider(path string) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("征信档案文件路径不能为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取征信档案失败: %w", err)
	}
	defer file.Close()

	var records []Record
	if err := json.NewDecoder(file).Decode(&records); err != nil {
		return nil, fmt.Errorf("解析征信档案失败: %w", err)
	}
	return NewStaticProvider(records), nil
}

// Lookup 按 PAN 精确查找档案。
func (p *StaticProvider) Lookup(pan string) (Record, bool) {
	if p == nil {
		return Record{}, false
	}
	pan = strings.ToUpper(strings.TrimSpace(pan))
	for _, record := range p.records {
		if record.PAN == pan {
			return record, true
		}
	}
	return Record{}, false
}

// ScoreFor 返回授信决策使用的信用分：按 PAN 命中档案优先，
// 否则退回档案库首条，再退回兜底分数。
func ScoreFor(provider Provider, pan string) int {
	if provider == nil {
		return defaultScore
	}
	if record, ok := provider.Lookup(pan); ok {
		return record.Score
	}
	if static, ok := provider.(*StaticProvider); ok && len(static.records) > 0 {
		return static.records[0].Score
	}
	return defaultScore
}

// APIRecordFor 是对外查询接口的口径：未知 PAN 返回演示默认分，
// 保证前端流程不中断。
func APIRecordFor(provider Provider, pan string) Record {
	if provider != nil {
		if record, ok := provider.Lookup(pan); ok {
			return record
		}
	}
	return Record{PAN: strings.ToUpper(pan), Score: unknownPANScore, History: []string{}}
}

var _ Provider = (*StaticProvider)(nil)
