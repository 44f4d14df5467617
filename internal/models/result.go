package models

// ResultRecord is the structured affiliation record parsed from the
// portal's result page.
type ResultRecord struct {
	Success      bool          `json:"success"`
	BasicInfo    BasicInfo     `json:"basic_info"`
	Affiliations []Affiliation `json:"affiliations"`
	Metadata     Metadata      `json:"metadata"`
	Error        string        `json:"error,omitempty"`
}

// BasicInfo holds the identification block of the result page
type BasicInfo struct {
	DocumentType   string `json:"document_type" example:"CC"`
	DocumentNumber string `json:"document_number" example:"1006881471"`
	Names          string `json:"names" example:"JUAN CARLOS"`
	Surnames       string `json:"surnames" example:"PEREZ GOMEZ"`
	BirthDate      string `json:"birth_date" example:"**/**/**"`
	Department     string `json:"department" example:"ANTIOQUIA"`
	Municipality   string `json:"municipality" example:"MEDELLIN"`
}

// Affiliation is one row of the affiliation grid
type Affiliation struct {
	Status        string `json:"status" example:"ACTIVO"`
	Entity        string `json:"entity" example:"NUEVA EPS S.A."`
	Regime        string `json:"regime" example:"CONTRIBUTIVO"`
	StartDate     string `json:"start_date" example:"01/08/2019"`
	EndDate       string `json:"end_date" example:"31/12/2999"`
	AffiliateType string `json:"affiliate_type" example:"COTIZANTE"`
}

// Metadata holds the print footer of the result page
type Metadata struct {
	QueryDate string `json:"query_date" example:"10/19/2026 09:41:02"`
	Station   string `json:"station" example:"190.25.1.1"`
}

// Empty reports whether no basic field was extracted
func (b BasicInfo) Empty() bool {
	return b == BasicInfo{}
}
