package ingest

import (
	"strings"
)

// Countries maps ISO3 entity codes to display names for the 54 African
// countries covered by the dataset.
var Countries = map[string]string{
	"DZA": "Algeria",
	"AGO": "Angola",
	"BEN": "Benin",
	"BWA": "Botswana",
	"BFA": "Burkina Faso",
	"BDI": "Burundi",
	"CMR": "Cameroon",
	"CPV": "Cape Verde",
	"CAF": "Central African Republic",
	"TCD": "Chad",
	"COM": "Comoros",
	"COG": "Congo",
	"COD": "Democratic Republic of Congo",
	"CIV": "Côte d'Ivoire",
	"DJI": "Djibouti",
	"EGY": "Egypt",
	"GNQ": "Equatorial Guinea",
	"ERI": "Eritrea",
	"SWZ": "Eswatini",
	"ETH": "Ethiopia",
	"GAB": "Gabon",
	"GMB": "Gambia",
	"GHA": "Ghana",
	"GIN": "Guinea",
	"GNB": "Guinea-Bissau",
	"KEN": "Kenya",
	"LSO": "Lesotho",
	"LBR": "Liberia",
	"LBY": "Libya",
	"MDG": "Madagascar",
	"MWI": "Malawi",
	"MLI": "Mali",
	"MRT": "Mauritania",
	"MUS": "Mauritius",
	"MAR": "Morocco",
	"MOZ": "Mozambique",
	"NAM": "Namibia",
	"NER": "Niger",
	"NGA": "Nigeria",
	"RWA": "Rwanda",
	"STP": "São Tomé and Príncipe",
	"SEN": "Senegal",
	"SYC": "Seychelles",
	"SLE": "Sierra Leone",
	"SOM": "Somalia",
	"ZAF": "South Africa",
	"SSD": "South Sudan",
	"SDN": "Sudan",
	"TZA": "Tanzania",
	"TGO": "Togo",
	"TUN": "Tunisia",
	"UGA": "Uganda",
	"ZMB": "Zambia",
	"ZWE": "Zimbabwe",
}

// nameToCode is the reverse lookup, keyed by lowercase country name
var nameToCode = func() map[string]string {
	m := make(map[string]string, len(Countries))
	for code, name := range Countries {
		m[strings.ToLower(name)] = code
	}
	return m
}()

// ResolveEntityID returns the ISO3 code for a country name. Unrecognized
// names fall back to the trimmed name itself so no record is dropped at the
// ingest boundary.
func ResolveEntityID(name string) string {
	trimmed := strings.TrimSpace(name)
	if code, ok := nameToCode[strings.ToLower(trimmed)]; ok {
		return code
	}
	if _, ok := Countries[strings.ToUpper(trimmed)]; ok {
		return strings.ToUpper(trimmed)
	}
	return trimmed
}

// EntityName returns the display name for an entity ID when known
func EntityName(entityID string) string {
	if name, ok := Countries[entityID]; ok {
		return name
	}
	return entityID
}
