// Package exchange holds the closed registry of supported exchange CSV
// formats and the filename convention that routes a file to one of them.
package exchange

import (
	"fmt"
	"strings"
	"time"
)

// FormatSpec describes one exchange's daily quote CSV layout: which
// columns must be present and which column feeds each canonical field.
// Supporting a new exchange means adding a FormatSpec value to the
// registry below; nothing else in the pipeline changes.
type FormatSpec struct {
	Exchange        string
	RequiredColumns []string

	SymbolColumn    string
	NameColumn      string
	GroupColumn     string
	OpenColumn      string
	HighColumn      string
	LowColumn       string
	CloseColumn     string
	PrevCloseColumn string
	TradesColumn    string
	SharesColumn    string
	TurnoverColumn  string

	// RowDateColumn names an in-row trade date that must agree with the
	// date encoded in the filename. Empty means the filename date stands
	// alone, as with BSE files.
	RowDateColumn string
	RowDateLayout string
}

// HasRowDate reports whether rows carry their own trade date column.
func (s FormatSpec) HasRowDate() bool {
	return s.RowDateColumn != ""
}

// ParseRowDate parses a value from the RowDateColumn. Month names are
// matched case-insensitively because NSE publishes them in uppercase
// (01-JAN-2025) while Go's reference layout is title case.
func (s FormatSpec) ParseRowDate(raw string) (time.Time, error) {
	if !s.HasRowDate() {
		return time.Time{}, fmt.Errorf("%s rows carry no date column", s.Exchange)
	}
	value := strings.TrimSpace(raw)
	if strings.Contains(s.RowDateLayout, "Jan") {
		parts := strings.Split(value, "-")
		if len(parts) == 3 && len(parts[1]) > 0 {
			month := strings.ToLower(parts[1])
			parts[1] = strings.ToUpper(month[:1]) + month[1:]
			value = strings.Join(parts, "-")
		}
	}
	return time.Parse(s.RowDateLayout, value)
}

var bseFormat = FormatSpec{
	Exchange: "BSE",
	RequiredColumns: []string{
		"SC_CODE", "SC_NAME", "SC_GROUP", "SC_TYPE",
		"OPEN", "HIGH", "LOW", "CLOSE", "LAST", "PREVCLOSE",
		"NO_TRADES", "NO_OF_SHRS", "NET_TURNOV", "TDCLOINDI",
	},
	SymbolColumn:    "SC_CODE",
	NameColumn:      "SC_NAME",
	GroupColumn:     "SC_GROUP",
	OpenColumn:      "OPEN",
	HighColumn:      "HIGH",
	LowColumn:       "LOW",
	CloseColumn:     "CLOSE",
	PrevCloseColumn: "PREVCLOSE",
	TradesColumn:    "NO_TRADES",
	SharesColumn:    "NO_OF_SHRS",
	TurnoverColumn:  "NET_TURNOV",
}

var nseFormat = FormatSpec{
	Exchange: "NSE",
	RequiredColumns: []string{
		"SYMBOL", "SERIES",
		"OPEN", "HIGH", "LOW", "CLOSE", "LAST", "PREVCLOSE",
		"TOTTRDQTY", "TOTTRDVAL", "TIMESTAMP", "TOTALTRADES", "ISIN",
	},
	SymbolColumn:    "SYMBOL",
	NameColumn:      "SYMBOL",
	GroupColumn:     "SERIES",
	OpenColumn:      "OPEN",
	HighColumn:      "HIGH",
	LowColumn:       "LOW",
	CloseColumn:     "CLOSE",
	PrevCloseColumn: "PREVCLOSE",
	TradesColumn:    "TOTALTRADES",
	SharesColumn:    "TOTTRDQTY",
	TurnoverColumn:  "TOTTRDVAL",
	RowDateColumn:   "TIMESTAMP",
	RowDateLayout:   "02-Jan-2006",
}

// supportedOrder keeps error messages and listings deterministic.
var supportedOrder = []string{"BSE", "NSE"}

var registry = map[string]FormatSpec{
	"BSE": bseFormat,
	"NSE": nseFormat,
}

// Lookup resolves an exchange token, case-insensitively.
func Lookup(token string) (FormatSpec, bool) {
	spec, ok := registry[strings.ToUpper(strings.TrimSpace(token))]
	return spec, ok
}

// Supported returns the registered exchange codes in stable order.
func Supported() []string {
	out := make([]string, len(supportedOrder))
	copy(out, supportedOrder)
	return out
}
