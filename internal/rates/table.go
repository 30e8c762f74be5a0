package rates

// destinationRates maps international prefixes to tiers.
//
// Resolution is longest-prefix-wins: a narrower mobile range overrides the
// country-wide fixed-line entry (e.g. +346 ULTRA beats +34 STANDARD).
// Declaration order never matters.
var destinationRates = map[string]TierID{
	// North America
	"+1":    TierStandard, // USA & Canada
	"+52":   TierStandard, // Mexico
	"+1787": TierStandard, // Puerto Rico
	"+1939": TierStandard, // Puerto Rico
	"+1671": TierStandard, // Guam

	// Central & South America
	"+507":  TierStandard, // Panama
	"+5076": TierUltra,    // Panama mobile

	// Europe
	"+34":   TierStandard, // Spain fixed
	"+346":  TierUltra,    // Spain mobile
	"+347":  TierUltra,    // Spain mobile
	"+44":   TierStandard, // UK fixed
	"+447":  TierPremium,  // UK mobile
	"+33":   TierStandard, // France fixed
	"+336":  TierPremium,  // France mobile
	"+337":  TierPremium,  // France mobile
	"+49":   TierStandard, // Germany fixed
	"+491":  TierUltra,    // Germany mobile
	"+39":   TierStandard, // Italy fixed
	"+393":  TierUltra,    // Italy mobile
	"+351":  TierStandard, // Portugal fixed
	"+3519": TierPremium,  // Portugal mobile
	"+31":   TierStandard, // Netherlands fixed
	"+41":   TierStandard, // Switzerland fixed
	"+417":  TierUltra,    // Switzerland mobile
	"+45":   TierStandard, // Denmark
	"+30":   TierStandard, // Greece fixed
	"+306":  TierPremium,  // Greece mobile
	"+36":   TierStandard, // Hungary
	"+354":  TierStandard, // Iceland
	"+353":  TierStandard, // Ireland fixed
	"+3538": TierUltra,    // Ireland mobile
	"+352":  TierStandard, // Luxembourg
	"+377":  TierUltra,    // Monaco
	"+48":   TierStandard, // Poland
	"+40":   TierStandard, // Romania
	"+421":  TierStandard, // Slovakia
	"+46":   TierStandard, // Sweden
	"+376":  TierPremium,  // Andorra
	"+379":  TierStandard, // Vatican City
	"+47":   TierStandard, // Norway fixed
	"+474":  TierUltra,    // Norway mobile
	"+479":  TierUltra,    // Norway mobile

	// Asia / Oceania
	"+65":   TierStandard, // Singapore
	"+62":   TierStandard, // Indonesia
	"+880":  TierStandard, // Bangladesh
	"+852":  TierStandard, // Hong Kong
	"+972":  TierStandard, // Israel fixed
	"+9725": TierPremium,  // Israel mobile
	"+81":   TierPremium,  // Japan
	"+82":   TierStandard, // South Korea
	"+60":   TierStandard, // Malaysia
	"+90":   TierPremium,  // Turkey
	"+61":   TierStandard, // Australia fixed
	"+64":   TierStandard, // New Zealand

	// Africa
	"+27":  TierStandard, // South Africa fixed
	"+276": TierUltra,    // South Africa mobile
	"+277": TierUltra,    // South Africa mobile
	"+278": TierUltra,    // South Africa mobile
}
