// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrIdentifierOutOfRange = errors.New("identifier outside signed 64-bit range")

// Features is the free-form param map of an offer, stored as jsonb.
type Features map[string]string

func (f Features) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *Features) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Features", value)
	}

	return json.Unmarshal(bytes, f)
}

var integerLiteral = regexp.MustCompile(`^[+-]?[0-9]+$`)

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// Identifier is a feed-supplied integer id of arbitrary width. It is persisted
// as bigint, so only values passing InInt64Range may reach the database.
type Identifier struct {
	decimal.Decimal
}

func NewIdentifier(v int64) Identifier {
	return Identifier{decimal.NewFromInt(v)}
}

// ParseIdentifier parses a plain integer literal of any width. Decimal points
// and exponents are rejected; anything else yields the zero identifier and false.
func ParseIdentifier(s string) (Identifier, bool) {
	if !integerLiteral.MatchString(s) {
		return Identifier{}, false
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return Identifier{}, false
	}
	return Identifier{d}, true
}

func (i Identifier) InInt64Range() bool {
	return i.Decimal.GreaterThanOrEqual(minInt64) && i.Decimal.LessThanOrEqual(maxInt64)
}

func (i Identifier) Int64() (int64, error) {
	if !i.InInt64Range() {
		return 0, fmt.Errorf("%s: %w", i.String(), ErrIdentifierOutOfRange)
	}
	return i.IntPart(), nil
}

func (i Identifier) Value() (driver.Value, error) {
	return i.Int64()
}

func (i *Identifier) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*i = Identifier{}
	case int64:
		*i = NewIdentifier(v)
	default:
		return i.Decimal.Scan(value)
	}
	return nil
}

// GormDataType keeps AutoMigrate from falling back to decimal's numeric type.
func (Identifier) GormDataType() string {
	return "bigint"
}
