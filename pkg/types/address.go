package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the service location attached to a booking, persisted as JSONB.
type Address struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Validate checks the fields a booking address must carry.
func (a Address) Validate() error {
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if a.Lat < -90 || a.Lat > 90 {
		return fmt.Errorf("address: latitude out of range")
	}
	if a.Lng < -180 || a.Lng > 180 {
		return fmt.Errorf("address: longitude out of range")
	}
	return nil
}

// Value marshals the address into JSON for Postgres.
func (a Address) Value() (driver.Value, error) {
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the address.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address: unsupported scan type %T", value)
	}

	return json.Unmarshal(raw, a)
}
