package services

import (
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func timePtr(t time.Time) *time.Time { return &t }

var now = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
