package loan

import "math"

// Summary 汇总一笔贷款的月供与利息构成。
// 金额在展示口径上取整到元，中间计算保留浮点精度。
type Summary struct {
	EMI           float64
	TotalPayable  float64
	TotalInterest float64
}

// EMI 计算等额本息月供。任一输入缺失或非正时返回 0，
// 避免除零错误向上冒泡。
func EMI(principal, annualRate float64, months int) float64 {
	if principal <= 0 || annualRate <= 0 || months <= 0 {
		return 0
	}
	r := annualRate / 12 / 100
	factor := math.Pow(1+r, float64(months))
	return math.Round(principal * r * factor / (factor - 1))
}

// Summarize 基于取整后的月供推导总还款与总利息，
// 保证 EMI × 月数 − 本金 == 总利息 恒等成立。
func Summarize(principal, annualRate float64, months int) Summary {
	emi := EMI(principal, annualRate, months)
	if emi == 0 {
		return Summary{}
	}
	totalPayable := emi * float64(months)
	return Summary{
		EMI:           emi,
		TotalPayable:  totalPayable,
		TotalInterest: totalPayable - principal,
	}
}

// MaxPrincipalForEMI 反推目标月供能支撑的最大本金，
// 与 EMI 使用同一公式的代数逆。
func MaxPrincipalForEMI(targetEMI, annualRate float64, months int) float64 {
	if targetEMI <= 0 || annualRate <= 0 || months <= 0 {
		return 0
	}
	r := annualRate / 12 / 100
	factor := math.Pow(1+r, float64(months))
	return math.Round(targetEMI * (factor - 1) / (r * factor))
}
