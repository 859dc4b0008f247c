package universe

import "github.com/aristath/allocator/internal/domain"

// Sector identifiers of the default catalog.
const (
	SectorSemiconductor = "semiconductor"
	SectorBanks         = "banks"
	SectorInternet      = "internet"
	SectorHealthcare    = "healthcare"
	SectorConsumer      = "consumer"
)

// DefaultCatalog lists the investable universe served by the API: five
// sectors of ten US-listed names each.
var DefaultCatalog = []domain.AssetRecord{
	{Ticker: "TSM", IssuerName: "Taiwan Semiconductor", Sector: SectorSemiconductor},
	{Ticker: "NVDA", IssuerName: "NVIDIA", Sector: SectorSemiconductor},
	{Ticker: "AMD", IssuerName: "Advanced Micro Devices", Sector: SectorSemiconductor},
	{Ticker: "INTC", IssuerName: "Intel", Sector: SectorSemiconductor},
	{Ticker: "ASML", IssuerName: "ASML Holding", Sector: SectorSemiconductor},
	{Ticker: "MU", IssuerName: "Micron Technology", Sector: SectorSemiconductor},
	{Ticker: "TXN", IssuerName: "Texas Instruments", Sector: SectorSemiconductor},
	{Ticker: "QCOM", IssuerName: "Qualcomm", Sector: SectorSemiconductor},
	{Ticker: "AVGO", IssuerName: "Broadcom", Sector: SectorSemiconductor},
	{Ticker: "AMAT", IssuerName: "Applied Materials", Sector: SectorSemiconductor},

	{Ticker: "JPM", IssuerName: "JPMorgan Chase", Sector: SectorBanks},
	{Ticker: "BAC", IssuerName: "Bank of America", Sector: SectorBanks},
	{Ticker: "WFC", IssuerName: "Wells Fargo", Sector: SectorBanks},
	{Ticker: "C", IssuerName: "Citigroup", Sector: SectorBanks},
	{Ticker: "GS", IssuerName: "Goldman Sachs", Sector: SectorBanks},
	{Ticker: "MS", IssuerName: "Morgan Stanley", Sector: SectorBanks},
	{Ticker: "USB", IssuerName: "U.S. Bancorp", Sector: SectorBanks},
	{Ticker: "PNC", IssuerName: "PNC Financial Services", Sector: SectorBanks},
	{Ticker: "TFC", IssuerName: "Truist Financial", Sector: SectorBanks},
	{Ticker: "BK", IssuerName: "BNY Mellon", Sector: SectorBanks},

	{Ticker: "GOOGL", IssuerName: "Alphabet", Sector: SectorInternet},
	{Ticker: "META", IssuerName: "Meta Platforms", Sector: SectorInternet},
	{Ticker: "AMZN", IssuerName: "Amazon", Sector: SectorInternet},
	{Ticker: "NFLX", IssuerName: "Netflix", Sector: SectorInternet},
	{Ticker: "BIDU", IssuerName: "Baidu", Sector: SectorInternet},
	{Ticker: "TWTR", IssuerName: "Twitter", Sector: SectorInternet},
	{Ticker: "SNAP", IssuerName: "Snap Inc.", Sector: SectorInternet},
	{Ticker: "PINS", IssuerName: "Pinterest", Sector: SectorInternet},
	{Ticker: "EBAY", IssuerName: "eBay", Sector: SectorInternet},
	{Ticker: "BKNG", IssuerName: "Booking Holdings", Sector: SectorInternet},

	{Ticker: "JNJ", IssuerName: "Johnson & Johnson", Sector: SectorHealthcare},
	{Ticker: "PFE", IssuerName: "Pfizer", Sector: SectorHealthcare},
	{Ticker: "MRK", IssuerName: "Merck", Sector: SectorHealthcare},
	{Ticker: "ABT", IssuerName: "Abbott Laboratories", Sector: SectorHealthcare},
	{Ticker: "TMO", IssuerName: "Thermo Fisher", Sector: SectorHealthcare},
	{Ticker: "UNH", IssuerName: "UnitedHealth Group", Sector: SectorHealthcare},
	{Ticker: "ABBV", IssuerName: "AbbVie", Sector: SectorHealthcare},
	{Ticker: "LLY", IssuerName: "Eli Lilly", Sector: SectorHealthcare},
	{Ticker: "AMGN", IssuerName: "Amgen", Sector: SectorHealthcare},
	{Ticker: "GILD", IssuerName: "Gilead Sciences", Sector: SectorHealthcare},

	{Ticker: "PG", IssuerName: "Procter & Gamble", Sector: SectorConsumer},
	{Ticker: "KO", IssuerName: "Coca-Cola", Sector: SectorConsumer},
	{Ticker: "PEP", IssuerName: "PepsiCo", Sector: SectorConsumer},
	{Ticker: "MCD", IssuerName: "McDonald's", Sector: SectorConsumer},
	{Ticker: "NKE", IssuerName: "Nike", Sector: SectorConsumer},
	{Ticker: "SBUX", IssuerName: "Starbucks", Sector: SectorConsumer},
	{Ticker: "TGT", IssuerName: "Target", Sector: SectorConsumer},
	{Ticker: "WMT", IssuerName: "Walmart", Sector: SectorConsumer},
	{Ticker: "COST", IssuerName: "Costco", Sector: SectorConsumer},
	{Ticker: "DIS", IssuerName: "Disney", Sector: SectorConsumer},
}

// NewDefaultRegistry builds the registry for DefaultCatalog.
func NewDefaultRegistry() *Registry {
	return MustNewRegistry(DefaultCatalog)
}
