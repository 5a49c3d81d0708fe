package shardindex

import "github.com/shopspring/decimal"

func decimalFromString(s string) (decimal.Decimal, error) { return decimal.NewFromString(s) }

func decimalFromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
