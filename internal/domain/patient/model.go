package patient

// Patient is one person registered at a branch. NationalID is the
// government-issued identity number used to match returning patients.
type Patient struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
}
