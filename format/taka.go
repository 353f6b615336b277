package format

import (
	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

// Taka renders amount as Bangladeshi taka, e.g. ৳1,250.00.
func Taka(amount decimal.Decimal) string {
	ac := accounting.Accounting{Symbol: "৳", Precision: 2, Thousand: ",", Decimal: "."}
	return ac.FormatMoneyDecimal(amount)
}
