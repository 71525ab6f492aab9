package validation

import (
	"errors"
	"strconv"
	"strings"
)

// ErrLimitNotANumber is returned when the limit query parameter is not an integer.
var ErrLimitNotANumber = errors.New("limit must be an integer")

// ErrLimitTooSmall is returned when the limit is zero or negative.
var ErrLimitTooSmall = errors.New("limit must be positive")

// ErrLimitTooLarge is returned when the limit exceeds the configured maximum.
var ErrLimitTooLarge = errors.New("limit too large")

// ErrLatitudeOutOfRange is returned for latitudes outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned for longitudes outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ValidateLimit parses the limit query parameter, applying def when the input
// is empty and enforcing 1..max. Returns the resolved limit or an error
// suitable for 400 INVALID_LIMIT responses.
func ValidateLimit(input string, def, max int) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrLimitNotANumber
	}
	if n < 1 {
		return 0, ErrLimitTooSmall
	}
	if max > 0 && n > max {
		return 0, ErrLimitTooLarge
	}
	return n, nil
}

// ValidateCoordinates checks a latitude/longitude pair against the WGS84
// ranges. Used at startup so a bad coordinate fails fast instead of producing
// silent upstream 400s.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return ErrLatitudeOutOfRange
	}
	if lon < -180 || lon > 180 {
		return ErrLongitudeOutOfRange
	}
	return nil
}
