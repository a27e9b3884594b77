package validate

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how strictly tax IDs are checked
type Mode string

const (
	ModeOff      Mode = "off"
	ModeLength   Mode = "length"   // Exactly 15 characters
	ModeChecksum Mode = "checksum" // Length, charset, state prefix and mod-36 check digit
)

// IDLength is the length of a GSTIN
const IDLength = 15

const idCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	ErrLength   = errors.New("tax id must be 15 characters")
	ErrCharset  = errors.New("tax id contains invalid characters")
	ErrState    = errors.New("tax id has no numeric state prefix")
	ErrChecksum = errors.New("tax id check digit mismatch")
)

// ParseMode converts a configured mode string to a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOff:
		return ModeOff, nil
	case "", ModeLength:
		return ModeLength, nil
	case ModeChecksum:
		return ModeChecksum, nil
	default:
		return "", fmt.Errorf("unknown id validation mode %q (want off, length or checksum)", s)
	}
}

// Validator checks taxpayer IDs while tables are decoded
type Validator struct {
	mode Mode
}

// NewValidator creates a validator for the given mode
func NewValidator(mode Mode) *Validator {
	if mode == "" {
		mode = ModeLength
	}
	return &Validator{mode: mode}
}

// Mode returns the active validation mode
func (v *Validator) Mode() Mode {
	return v.mode
}

// Check returns nil when id is acceptable under the active mode
func (v *Validator) Check(id string) error {
	switch v.mode {
	case ModeOff:
		return nil
	case ModeLength:
		if len(id) != IDLength {
			return ErrLength
		}
		return nil
	default:
		return checkFull(id)
	}
}

// Valid is Check without the reason
func (v *Validator) Valid(id string) bool {
	return v.Check(id) == nil
}

func checkFull(id string) error {
	if len(id) != IDLength {
		return ErrLength
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(idCharset, id[i]) < 0 {
			return ErrCharset
		}
	}
	if id[0] < '0' || id[0] > '9' || id[1] < '0' || id[1] > '9' {
		return ErrState
	}
	if CheckDigit(id[:IDLength-1]) != id[IDLength-1] {
		return ErrChecksum
	}
	return nil
}

// CheckDigit computes the mod-36 check character over the first 14 characters.
// Characters are weighted 1,2,1,2...; each product contributes quotient plus remainder base 36.
func CheckDigit(body string) byte {
	sum := 0
	for i := 0; i < len(body); i++ {
		val := strings.IndexByte(idCharset, body[i])
		if val < 0 {
			val = 0
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		p := val * factor
		sum += p/36 + p%36
	}
	return idCharset[(36-sum%36)%36]
}

// StateCode returns the 2-digit state prefix of a well-formed ID
func StateCode(id string) (string, bool) {
	if len(id) < 2 || id[0] < '0' || id[0] > '9' || id[1] < '0' || id[1] > '9' {
		return "", false
	}
	return id[:2], true
}
