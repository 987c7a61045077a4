package domain

import "fmt"

// OEM is the counter backing generated product codes.
const OEM = "oem"

// CodeWidth is the minimum digit count of a formatted code.
const CodeWidth = 8

// Sequence is one named, monotonically increasing counter.
type Sequence struct {
	Name  string `gorm:"type:varchar(32);primaryKey"`
	Value int64  `gorm:"not null;default:0"`
}

func (Sequence) TableName() string { return "sequences" }

// FormatCode renders value left padded with zeros to CodeWidth digits.
// Wider values are returned in full.
func FormatCode(value int64) string {
	return fmt.Sprintf("%0*d", CodeWidth, value)
}
