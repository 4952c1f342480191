package model

import "time"

// CredentialRecord is one issued guest Wi-Fi identity.
// JSON field names are the wire format of the stored batch files.
type CredentialRecord struct {
	GuestFirstName string    `json:"guestFirstName"`
	GuestLastName  string    `json:"guestLastName"`
	GuestEmail     string    `json:"guestEmail"`
	GuestPhone     string    `json:"guestPhone"`
	GuestID        string    `json:"guestId"`
	Password       string    `json:"password"`
	SponsorID      string    `json:"sponsorId"`
	SponsorName    string    `json:"sponsorName"`
	SponsorEmail   string    `json:"sponsorEmail"`
	SSID           string    `json:"ssid"`
	Expiration     string    `json:"expiration"`
	ExpiresAt      time.Time `json:"-"`
}

// ExpirationLayout renders expiration dates as DD/MM/YY.
const ExpirationLayout = "02/01/06"

// SplitColumns returns the first and second half of records, used as the
// left and right print columns. An odd record goes to the left column.
func SplitColumns(records []CredentialRecord) (left, right []CredentialRecord) {
	half := (len(records) + 1) / 2
	return records[:half], records[half:]
}
