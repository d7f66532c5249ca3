package loan

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Product 描述一款贷款产品的定价与边界参数。
type Product struct {
	Code               string
	IDPrefix           string
	Name               string
	FloorRate          float64
	ListRate           float64
	DefaultTenure      int
	MinAmount          float64
	MaxAmount          float64
	RequiresCollateral bool
	Desc               string
}

// Catalog 是内置的贷款产品目录。
var Catalog = map[string]Product{
	"PERSONAL": {
		Code: "PERSONAL", IDPrefix: "PL", Name: "Flexi-Cash Personal Loan",
		FloorRate: 10.50, ListRate: 12.00, DefaultTenure: 48,
		MinAmount: 50_000, MaxAmount: 5_000_000,
		RequiresCollateral: false,
		Desc:               "Unsecured loan. No collateral needed.",
	},
	"CAR": {
		Code: "CAR", IDPrefix: "VL", Name: "Velocity Drive Car Loan",
		FloorRate: 8.50, ListRate: 9.50, DefaultTenure: 60,
		MinAmount: 100_000, MaxAmount: 10_000_000,
		RequiresCollateral: true,
		Desc:               "Secured car loan. Up to 100% on-road funding.",
	},
	"HOME": {
		Code: "HOME", IDPrefix: "HL", Name: "DreamNest Home Loan",
		FloorRate: 8.35, ListRate: 9.00, DefaultTenure: 240,
		MinAmount: 500_000, MaxAmount: 100_000_000,
		RequiresCollateral: true,
		Desc:               "Long-term financing. Tax benefits available.",
	},
}

// ProductOf 按产品代码查找产品，未知代码回落到 PERSONAL。
func ProductOf(code string) Product {
	if p, ok := Catalog[code]; ok {
		return p
	}
	return Catalog["PERSONAL"]
}

// NewApplicationID 生成 <产品前缀>-<6 位数字> 形式的申请编号。
func NewApplicationID(productCode string) string {
	prefix := "LN"
	if p, ok := Catalog[productCode]; ok {
		prefix = p.IDPrefix
	}
	return fmt.Sprintf("%s-%06d", prefix, 100_000+rand.Intn(900_000))
}

// FormatINR 将金额格式化为印度卢比展示形式（₹12,34,567）。
// 无效金额返回 "Unknown"。
func FormatINR(amount float64) string {
	if amount <= 0 {
		return "Unknown"
	}
	digits := strconv.FormatFloat(amount, 'f', 0, 64)

	// 印度数字分组：最后三位一组，其余两位一组。
	if len(digits) <= 3 {
		return "₹" + digits
	}
	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return "₹" + strings.Join(groups, ",") + "," + tail
}
