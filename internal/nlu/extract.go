package nlu

import (
	"regexp"
	"strconv"
	"strings"
)

// IntentRule 把一个关键词映射到产品类别，按表内顺序先匹配者胜出。
type IntentRule struct {
	Keyword  string
	Category string
}

// 口语化时长词到数值的映射，仅在与年份单位同现时生效。
var timeWords = []struct {
	word  string
	years int
}{
	{"half a decade", 5},
	{"couple", 2},
	{"few", 3},
	{"decade", 10},
	{"dozen", 12},
}

var (
	ratePattern      = regexp.MustCompile(`(\d+(\.\d+)?)%`)
	tenurePattern    = regexp.MustCompile(`(\d+)\s*(year|yr|month|mo)`)
	unitAmountRe     = regexp.MustCompile(`(?i)(?:^|[^\w-])(\d+(\.\d+)?)\s*(lakh|crore|cr|rupees|rs|k|l)\b`)
	plainAmountRe    = regexp.MustCompile(`(?:^|[^\w-])(\d{4,9})`)
	emiAmountRe      = regexp.MustCompile(`(?i)(?:^|[^\w-])(\d+(\.\d+)?)\s*(k|l)?`)
	numberPattern    = regexp.MustCompile(`\d+(\.\d+)?`)
	confirmPattern   = regexp.MustCompile(`\b(yes|ok|okay|sure|proceed|correct)\b`)
	lockPattern      = regexp.MustCompile(`\b(deal|lock|documentation|sign|submit)\b`)
	insultPattern    = regexp.MustCompile(`\b(dumb|stupid|bad|math|fail|wrong|idiot|crap)\b`)
	panPattern       = regexp.MustCompile(`[A-Z]{5}[0-9]{4}[A-Z]`)
	aadhaarPattern   = regexp.MustCompile(`\d{12}`)
	appRefPattern    = regexp.MustCompile(`(?i)[A-Z]{2,3}-?\d{6}`)
	emailPattern     = regexp.MustCompile(`[\w.-]+@[\w.-]+\.[a-zA-Z]{2,}`)
	currencyKeywords = []string{"usd", "dollar", "euro"}
)

// MatchIntent 按规则表顺序做首个关键词匹配，未命中返回空串。
func MatchIntent(text string, rules []IntentRule) string {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		if strings.Contains(lower, rule.Keyword) {
			return rule.Category
		}
	}
	return ""
}

// HasCurrencyMismatch 检测非本币词汇，命中时调用方应立即短路。
func HasCurrencyMismatch(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range currencyKeywords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// ParseRawNumber 解析带量级后缀的数字，例如 "5l" -> 500000。
func ParseRawNumber(token string) float64 {
	lower := strings.ToLower(token)
	match := numberPattern.FindString(lower)
	if match == "" {
		return 0
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	// 量级判定互斥，"lakh" 含字母 k，必须先于 k 判定。
	switch {
	case strings.Contains(lower, "c"):
		val *= 10_000_000
	case strings.Contains(lower, "l"):
		val *= 100_000
	case strings.Contains(lower, "k"):
		val *= 1_000
	}
	return val
}

// ExtractAmount 返回语句中最大的可信金额。带单位的数字优先；
// 没有单位时退回 4~9 位的纯数字。低于 minPlausible 的候选一律
// 丢弃，避免把电话号码尾数或百分比误当金额。
func ExtractAmount(text string, minPlausible float64) float64 {
	if minPlausible <= 0 {
		minPlausible = 100
	}

	var candidates []float64
	for _, match := range unitAmountRe.FindAllString(text, -1) {
		candidates = append(candidates, ParseRawNumber(match))
	}
	if len(candidates) == 0 {
		if m := plainAmountRe.FindStringSubmatch(text); m != nil {
			if val, err := strconv.ParseFloat(m[1], 64); err == nil {
				candidates = append(candidates, val)
			}
		}
	}

	best := 0.0
	for _, candidate := range candidates {
		if candidate > minPlausible && candidate > best {
			best = candidate
		}
	}
	return best
}

// ExtractTargetRate 提取目标利率。百分号数字只有在语句同时出现
// 利率语境词时才被接受。
func ExtractTargetRate(text string) float64 {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "interest") && !strings.Contains(lower, "rate") {
		return 0
	}
	m := ratePattern.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return val
}

// ExtractTargetEMI 在月供语境下提取目标月供金额，超过 50 万视为误判。
func ExtractTargetEMI(text string) float64 {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "month") && !strings.Contains(lower, "emi") {
		return 0
	}
	m := emiAmountRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[3]) {
	case "k":
		val *= 1_000
	case "l":
		val *= 100_000
	}
	if val >= 500_000 {
		return 0
	}
	return val
}

// ExtractTenureMonths 提取期限并换算为月。显式的 "<n> year/month"
// 优先；否则尝试口语化时长词（必须与年份单位同现）。
func ExtractTenureMonths(text string) int {
	lower := strings.ToLower(text)
	if m := tenurePattern.FindStringSubmatch(lower); m != nil {
		val, err := strconv.Atoi(m[1])
		if err == nil {
			if strings.HasPrefix(m[2], "y") {
				val *= 12
			}
			return val
		}
	}
	if strings.Contains(lower, "year") || strings.Contains(lower, "yr") {
		for _, tw := range timeWords {
			if strings.Contains(lower, tw.word) {
				return tw.years * 12
			}
		}
	}
	return 0
}

// HasConfirmation 检测肯定词。
func HasConfirmation(text string) bool {
	return confirmPattern.MatchString(strings.ToLower(text))
}

// HasLockSignal 检测明确的成交/签署意图。
func HasLockSignal(text string) bool {
	return lockPattern.MatchString(strings.ToLower(text))
}

// HasInsult 检测用户的抱怨或辱骂，用于触发重启话术。
func HasInsult(text string) bool {
	return insultPattern.MatchString(strings.ToLower(text))
}

// ExtractPAN 提取 PAN 号（5 字母 + 4 数字 + 1 字母）。
func ExtractPAN(text string) string {
	return panPattern.FindString(strings.ToUpper(text))
}

// ExtractAadhaar 提取 12 位 Aadhaar 号。
func ExtractAadhaar(text string) string {
	return aadhaarPattern.FindString(text)
}

// ExtractAppRef 提取贷款申请编号，如 PL-123456。
func ExtractAppRef(text string) string {
	ref := appRefPattern.FindString(text)
	return strings.ToUpper(ref)
}

// ExtractEmail 提取邮箱地址。
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}
