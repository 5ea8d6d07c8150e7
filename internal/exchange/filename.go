package exchange

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
)

// filenamePattern matches YYYYMMDD_EXCHANGE.csv. The exchange token and
// the extension are case-insensitive; the date must be exactly eight
// digits.
var filenamePattern = regexp.MustCompile(`^(\d{8})_([A-Za-z]+)\.(?i:csv)$`)

const filenameDateLayout = "20060102"

// ParseFilename validates a quote file name and resolves it to a format
// and trade date. Directory components are ignored; only the base name is
// inspected.
//
// Rejections, in order of checking: INVALID_FILENAME when the shape does
// not match at all, UNSUPPORTED_EXCHANGE when the exchange token is not
// registered, INVALID_DATE when the eight digits are not a real calendar
// date.
func ParseFilename(name string) (FormatSpec, time.Time, error) {
	base := filepath.Base(strings.TrimSpace(name))

	match := filenamePattern.FindStringSubmatch(base)
	if match == nil {
		return FormatSpec{}, time.Time{}, apperrors.NewInvalidFilename(base)
	}

	spec, ok := Lookup(match[2])
	if !ok {
		return FormatSpec{}, time.Time{}, apperrors.NewUnsupportedExchange(strings.ToUpper(match[2]), Supported())
	}

	date, err := time.Parse(filenameDateLayout, match[1])
	if err != nil {
		return FormatSpec{}, time.Time{}, apperrors.NewInvalidDate(match[1], err)
	}

	return spec, date, nil
}
