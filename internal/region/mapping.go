package region

// The 16 canonical reporting regions. Every district in the concordance
// maps to exactly one of these; aggregated output never carries any
// other region name.
const (
	Northland   = "Northland"
	Auckland    = "Auckland"
	Waikato     = "Waikato"
	BayOfPlenty = "Bay of Plenty"
	Gisborne    = "Gisborne"
	HawkesBay   = "Hawke's Bay"
	Taranaki    = "Taranaki"
	Manawatu    = "Manawatu"
	Wanganui    = "Wanganui"
	Wellington  = "Wellington"
	Tasman      = "Tasman"
	Marlborough = "Marlborough"
	WestCoast   = "West Coast"
	Canterbury  = "Canterbury"
	Otago       = "Otago"
	Southland   = "Southland"
)

// canonicalRegions lists the closed region set in north-to-south order.
var canonicalRegions = []string{
	Northland, Auckland, Waikato, BayOfPlenty, Gisborne, HawkesBay,
	Taranaki, Manawatu, Wanganui, Wellington, Tasman, Marlborough,
	WestCoast, Canterbury, Otago, Southland,
}

// districtToRegion is the territorial-authority concordance used by the
// vehicle registration source. Keys are the upper-case district names as
// they appear in the register. Chatham Islands Territory is deliberately
// absent: it belongs to no reporting region and its rows are excluded.
var districtToRegion = map[string]string{
	"FAR NORTH DISTRICT": Northland,
	"KAIPARA DISTRICT":   Northland,
	"WHANGAREI DISTRICT": Northland,

	"AUCKLAND": Auckland,

	"HAMILTON CITY":              Waikato,
	"HAURAKI DISTRICT":           Waikato,
	"MATAMATA-PIAKO DISTRICT":    Waikato,
	"OTOROHANGA DISTRICT":        Waikato,
	"SOUTH WAIKATO DISTRICT":     Waikato,
	"THAMES-COROMANDEL DISTRICT": Waikato,
	"WAIKATO DISTRICT":           Waikato,
	"WAIPA DISTRICT":             Waikato,
	"WAITOMO DISTRICT":           Waikato,

	"KAWERAU DISTRICT":               BayOfPlenty,
	"OPOTIKI DISTRICT":               BayOfPlenty,
	"ROTORUA DISTRICT":               BayOfPlenty,
	"TAURANGA CITY":                  BayOfPlenty,
	"WESTERN BAY OF PLENTY DISTRICT": BayOfPlenty,
	"WHAKATANE DISTRICT":             BayOfPlenty,

	"GISBORNE DISTRICT": Gisborne,

	"CENTRAL HAWKE'S BAY DISTRICT": HawkesBay,
	"HASTINGS DISTRICT":            HawkesBay,
	"NAPIER CITY":                  HawkesBay,
	"WAIROA DISTRICT":              HawkesBay,

	"NEW PLYMOUTH DISTRICT":   Taranaki,
	"SOUTH TARANAKI DISTRICT": Taranaki,
	"STRATFORD DISTRICT":      Taranaki,

	"HOROWHENUA DISTRICT":   Manawatu,
	"MANAWATU DISTRICT":     Manawatu,
	"PALMERSTON NORTH CITY": Manawatu,
	"RANGITIKEI DISTRICT":   Manawatu,
	"RUAPEHU DISTRICT":      Manawatu,
	"TARARUA DISTRICT":      Manawatu,

	"WANGANUI DISTRICT": Wanganui,

	"CARTERTON DISTRICT":       Wellington,
	"KAPITI COAST DISTRICT":    Wellington,
	"LOWER HUTT CITY":          Wellington,
	"MASTERTON DISTRICT":       Wellington,
	"PORIRUA CITY":             Wellington,
	"SOUTH WAIRARAPA DISTRICT": Wellington,
	"UPPER HUTT CITY":          Wellington,
	"WELLINGTON CITY":          Wellington,

	"GOLDEN BAY DISTRICT": Tasman,
	"NELSON CITY":         Tasman,
	"TASMAN DISTRICT":     Tasman,

	"KAIKOURA DISTRICT":    Marlborough,
	"MARLBOROUGH DISTRICT": Marlborough,

	"BULLER DISTRICT":   WestCoast,
	"GREY DISTRICT":     WestCoast,
	"WESTLAND DISTRICT": WestCoast,

	"ASHBURTON DISTRICT":   Canterbury,
	"CHRISTCHURCH CITY":    Canterbury,
	"HURUNUI DISTRICT":     Canterbury,
	"MACKENZIE DISTRICT":   Canterbury,
	"SELWYN DISTRICT":      Canterbury,
	"TIMARU DISTRICT":      Canterbury,
	"WAIMAKARIRI DISTRICT": Canterbury,
	"WAIMATE DISTRICT":     Canterbury,

	"CENTRAL OTAGO DISTRICT":    Otago,
	"CLUTHA DISTRICT":           Otago,
	"DUNEDIN CITY":              Otago,
	"QUEENSTOWN-LAKES DISTRICT": Otago,
	"WAITAKI DISTRICT":          Otago,

	"GORE DISTRICT":      Southland,
	"INVERCARGILL CITY":  Southland,
	"SOUTHLAND DISTRICT": Southland,

	// Pre-amalgamation district still present in older register extracts.
	"RODNEY": Auckland,
}

// legacyRegionNames realigns region spellings found in the gas-gate
// concordance with the canonical set above.
var legacyRegionNames = map[string]string{
	"Hawkes Bay":         HawkesBay,
	"Manawatu-Whanganui": Manawatu,
	"Whanganui":          Wanganui,
}
