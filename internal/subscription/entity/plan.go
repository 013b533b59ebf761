package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period units for custom plan periods.
const (
	UnitDay   = "day"
	UnitWeek  = "week"
	UnitMonth = "month"
	UnitYear  = "year"
)

// PeriodCustom is stored as the period name of plans defined by unit and count.
const PeriodCustom = "custom"

var namedPeriods = map[string]Period{
	"daily":      {Name: "daily", Unit: UnitDay, Count: 1},
	"weekly":     {Name: "weekly", Unit: UnitWeek, Count: 1},
	"monthly":    {Name: "monthly", Unit: UnitMonth, Count: 1},
	"quarterly":  {Name: "quarterly", Unit: UnitMonth, Count: 3},
	"semiannual": {Name: "semiannual", Unit: UnitMonth, Count: 6},
	"annual":     {Name: "annual", Unit: UnitYear, Count: 1},
}

// Period is a plan's billing period, either a named one or a custom
// {unit, count}.
type Period struct {
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Count int    `json:"count"`
}

// NamedPeriod looks up one of the predefined periods.
func NamedPeriod(name string) (Period, bool) {
	p, ok := namedPeriods[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// CustomPeriod validates a {unit, count} period.
func CustomPeriod(unit string, count int) (Period, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	switch unit {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
	default:
		return Period{}, fmt.Errorf("unknown period unit %q", unit)
	}
	if count < 1 {
		return Period{}, fmt.Errorf("period count must be positive, got %d", count)
	}
	return Period{Name: PeriodCustom, Unit: unit, Count: count}, nil
}

// AddTo returns t advanced by the period using calendar arithmetic.
func (p Period) AddTo(t time.Time) time.Time {
	switch p.Unit {
	case UnitDay:
		return t.AddDate(0, 0, p.Count)
	case UnitWeek:
		return t.AddDate(0, 0, 7*p.Count)
	case UnitMonth:
		return t.AddDate(0, p.Count, 0)
	case UnitYear:
		return t.AddDate(p.Count, 0, 0)
	default:
		return t
	}
}

// Benefits is stored as a JSON array in a text column.
type Benefits []string

func (b Benefits) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(b))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (b *Benefits) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*b = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("benefits: unsupported type %T", src)
	}
	return json.Unmarshal(raw, (*[]string)(b))
}

type Plan struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	PeriodName  string          `db:"period_name" json:"period_name"`
	PeriodUnit  string          `db:"period_unit" json:"period_unit"`
	PeriodCount int             `db:"period_count" json:"period_count"`
	Benefits    Benefits        `db:"benefits" json:"benefits"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

func (p *Plan) Period() Period {
	return Period{Name: p.PeriodName, Unit: p.PeriodUnit, Count: p.PeriodCount}
}

func (p *Plan) SetPeriod(period Period) {
	p.PeriodName, p.PeriodUnit, p.PeriodCount = period.Name, period.Unit, period.Count
}
