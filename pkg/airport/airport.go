// Package airport holds the fixed set of airports the gateway serves and
// validates codes against it.
package airport

import (
	"fmt"
	"strings"
)

// Airport describes one whitelisted airport.
type Airport struct {
	Code   string `json:"code"`
	NameZh string `json:"nameZh"`
	NameEn string `json:"nameEn"`
}

// Airports is the closed set of supported IATA codes, in display order.
var Airports = []Airport{
	{Code: "TPE", NameZh: "臺灣桃園國際機場", NameEn: "Taiwan Taoyuan International Airport"},
	{Code: "TSA", NameZh: "臺北松山機場", NameEn: "Taipei Songshan Airport"},
	{Code: "KHH", NameZh: "高雄國際機場", NameEn: "Kaohsiung International Airport"},
	{Code: "RMQ", NameZh: "臺中國際機場", NameEn: "Taichung International Airport"},
	{Code: "MZG", NameZh: "澎湖機場", NameEn: "Penghu Airport"},
	{Code: "HUN", NameZh: "花蓮機場", NameEn: "Hualien Airport"},
	{Code: "TTT", NameZh: "臺東機場", NameEn: "Taitung Airport"},
	{Code: "PIF", NameZh: "屏東機場", NameEn: "Pingtung Airport"},
	{Code: "KNH", NameZh: "金門機場", NameEn: "Kinmen Airport"},
	{Code: "MFK", NameZh: "馬祖北竿機場", NameEn: "Matsu Beigan Airport"},
}

var whitelist = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Airports))
	for _, a := range Airports {
		m[a.Code] = struct{}{}
	}
	return m
}()

// InvalidCodeError is returned when a code is not in the whitelist.
type InvalidCodeError struct {
	Code string
}

// Error implements the error interface.
func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s not in {%s}", e.Code, strings.Join(Codes(), ", "))
}

// Codes returns the whitelisted codes in display order.
func Codes() []string {
	codes := make([]string, len(Airports))
	for i, a := range Airports {
		codes[i] = a.Code
	}
	return codes
}

// Validate returns nil if code is whitelisted, an *InvalidCodeError otherwise.
// The comparison is exact; callers normalize case first.
func Validate(code string) error {
	if _, ok := whitelist[code]; !ok {
		return &InvalidCodeError{Code: code}
	}
	return nil
}

// Normalize trims and upper-cases user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the airport for code.
func Lookup(code string) (Airport, bool) {
	for _, a := range Airports {
		if a.Code == code {
			return a, true
		}
	}
	return Airport{}, false
}
