package validate

import (
	"strconv"
	"strings"
)

// stateNames maps GST state codes to state or union territory names
var stateNames = map[string]string{
	"01": "Jammu and Kashmir",
	"02": "Himachal Pradesh",
	"03": "Punjab",
	"04": "Chandigarh",
	"05": "Uttarakhand",
	"06": "Haryana",
	"07": "Delhi",
	"08": "Rajasthan",
	"09": "Uttar Pradesh",
	"10": "Bihar",
	"11": "Sikkim",
	"12": "Arunachal Pradesh",
	"13": "Nagaland",
	"14": "Manipur",
	"15": "Mizoram",
	"16": "Tripura",
	"17": "Meghalaya",
	"18": "Assam",
	"19": "West Bengal",
	"20": "Jharkhand",
	"21": "Odisha",
	"22": "Chhattisgarh",
	"23": "Madhya Pradesh",
	"24": "Gujarat",
	"26": "Dadra and Nagar Haveli and Daman and Diu",
	"27": "Maharashtra",
	"29": "Karnataka",
	"30": "Goa",
	"31": "Lakshadweep",
	"32": "Kerala",
	"33": "Tamil Nadu",
	"34": "Puducherry",
	"35": "Andaman and Nicobar Islands",
	"36": "Telangana",
	"37": "Andhra Pradesh",
	"38": "Ladakh",
	"97": "Other Territory",
}

// JurisdictionRegistry resolves jurisdiction codes to display names
type JurisdictionRegistry struct {
	names map[string]string
}

// NewJurisdictionRegistry creates a registry seeded with the GST state codes.
// Extra entries override or extend the defaults.
func NewJurisdictionRegistry(extra map[string]string) *JurisdictionRegistry {
	names := make(map[string]string, len(stateNames)+len(extra))
	for code, name := range stateNames {
		names[code] = name
	}
	for code, name := range extra {
		names[NormalizeCode(code)] = name
	}
	return &JurisdictionRegistry{names: names}
}

// Name returns the display name for a code, or "" when unknown
func (r *JurisdictionRegistry) Name(code string) string {
	return r.names[NormalizeCode(code)]
}

// Known reports whether the code is registered
func (r *JurisdictionRegistry) Known(code string) bool {
	_, ok := r.names[NormalizeCode(code)]
	return ok
}

// NormalizeCode left-pads numeric codes to two digits ("7" -> "07", "7.0" -> "07")
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(code, 64); err == nil && f >= 0 && f == float64(int(f)) {
		n := int(f)
		if n < 10 {
			return "0" + strconv.Itoa(n)
		}
		return strconv.Itoa(n)
	}
	return code
}
