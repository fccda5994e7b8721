package utils

import (
	"math/big"
	"strings"
)

// AddressChars is the number of trailing characters kept by FormatAddress.
const AddressChars = 4

// FormatAddress shortens an address to its "0x" prefix plus chars characters,
// an ellipsis, and the last chars characters. Addresses already shorter than
// the formatted form are returned unchanged.
func FormatAddress(address string, chars int) string {
	if address == "" {
		return ""
	}
	if chars < 1 {
		chars = AddressChars
	}
	if len(address) <= 2*chars+2+3 {
		return address
	}
	return address[:chars+2] + "..." + address[len(address)-chars:]
}

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

// FormatPrice renders a listing price with thousands separators, "N/A" when unset.
func FormatPrice(price *big.Int) string {
	if price == nil || price.Sign() == 0 {
		return "N/A"
	}
	return AddCommas(price.String())
}
