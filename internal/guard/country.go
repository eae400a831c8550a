package guard

import (
	"math"
	"strconv"
	"strings"
)

// Country holds the money settings for a market.
type Country struct {
	Code              string
	Name              string
	Currency          string
	Symbol            string
	MinBalanceForRide float64
}

var countries = map[string]Country{
	"NG": {Code: "NG", Name: "Nigeria", Currency: "NGN", Symbol: "₦", MinBalanceForRide: 500},
	"US": {Code: "US", Name: "United States", Currency: "USD", Symbol: "$", MinBalanceForRide: 5},
	"ZA": {Code: "ZA", Name: "South Africa", Currency: "ZAR", Symbol: "R", MinBalanceForRide: 50},
}

const fallbackCountry = "NG"

// CountryConfig returns the settings for a country code. Unknown codes get Nigeria's.
func CountryConfig(code string) Country {
	if c, ok := countries[strings.ToUpper(code)]; ok {
		return c
	}
	return countries[fallbackCountry]
}

// CurrencySymbol returns the symbol for an ISO currency code, or the code itself.
func CurrencySymbol(currency string) string {
	for _, c := range countries {
		if c.Currency == currency {
			return c.Symbol
		}
	}
	return currency
}

// FormatAmount renders amount with the currency symbol, thousands
// separators and two decimals, e.g. "₦1,234.50".
func FormatAmount(amount float64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := int64(math.Floor(amount*100 + 0.5))
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + CurrencySymbol(currency) + b.String() + "." + pad2(frac)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
