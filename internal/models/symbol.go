package models

// Symbol identifies one cryptocurrency offered by the listing endpoint.
type Symbol struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}
