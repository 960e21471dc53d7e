package model

// Profile is the venue account snapshot.
type Profile struct {
	ID          int64   `json:"id"`
	Nickname    string  `json:"nickname"`
	DemoBalance float64 `json:"demo_balance"`
	RealBalance float64 `json:"real_balance"`
	Currency    string  `json:"currency"`
	CountryID   int     `json:"country_id"`
}

// Asset is one tradable instrument as reported by the venue.
type Asset struct {
	ID             int     `json:"id"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	IsActive       int     `json:"is_active"`
	Profit         float64 `json:"profit"`
	ExpirationStep int     `json:"expiration_step"`
	PurchaseTime   int     `json:"purchase_time"`
}

// Active reports whether the asset is currently tradable with positive payout.
func (a Asset) Active() bool {
	return a.IsActive == 1 && a.Profit > 0
}

// Currency is one reference-table currency entry.
type Currency struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Country is one reference-table country entry.
type Country struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// TradersChoice is the venue's call/put sentiment split for one asset.
type TradersChoice struct {
	AssetID int     `json:"asset_id"`
	Put     float64 `json:"put"`
	Call    float64 `json:"call"`
}
