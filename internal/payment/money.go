package payment

import "github.com/shopspring/decimal"

// 2桁の通貨前提（usd/eurなど）
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
