// Package detail binds the map selection to the record shown in the detail
// panel, and provides the sources records are read from.
package detail

// Transaction is a recorded sale.
type Transaction struct {
	Date  string  `json:"date" doc:"Contract date (YY.MM.DD)" example:"25.07.16"`
	Area  float64 `json:"area" doc:"Supply area in square metres" example:"122"`
	Price string  `json:"price" doc:"Sale price" example:"28억 7,000"`
	Floor string  `json:"floor" doc:"Building and floor, or sale type"`
	Note  string  `json:"note,omitempty"`
}

// PriceOption is the average price for one unit size.
type PriceOption struct {
	Unit  string `json:"unit" doc:"Unit size" example:"37평"`
	Price string `json:"price" doc:"Average price" example:"28억 7,000"`
}

// PriceSection is the headline price block.
type PriceSection struct {
	AverageLabel string        `json:"averageLabel" doc:"What the average covers"`
	Options      []PriceOption `json:"options" doc:"Average price per unit size"`
}

// HouseholdType is one row of the planned household breakdown.
type HouseholdType struct {
	Type          string `json:"type"`
	ExclusiveArea string `json:"exclusiveArea"`
	SupplyArea    string `json:"supplyArea"`
	Combination   string `json:"combination" doc:"Households allotted to members"`
	General       string `json:"general" doc:"Households for general sale"`
}

// ArchitecturalPlan is the redevelopment building plan.
type ArchitecturalPlan struct {
	LandArea              string          `json:"landArea"`
	BuildingArea          string          `json:"buildingArea"`
	TotalFloorArea        string          `json:"totalFloorArea"`
	BuildingCoverageRatio string          `json:"buildingCoverageRatio"`
	NumberOfBuildings     string          `json:"numberOfBuildings"`
	FloorAreaRatio        string          `json:"floorAreaRatio"`
	Floors                string          `json:"floors"`
	ParkingSpaces         string          `json:"parkingSpaces"`
	TotalHouseholds       string          `json:"totalHouseholds"`
	HouseholdBreakdown    []HouseholdType `json:"householdBreakdown"`
}

// FeasibilityAnalysis summarises project economics, amounts in millions of won.
type FeasibilityAnalysis struct {
	PreAsset            string `json:"preAsset" doc:"Assets before the project (A)"`
	PostAsset           string `json:"postAsset" doc:"Assets after the project (B)"`
	TotalCost           string `json:"totalCost" doc:"Total project cost (C)"`
	ConstructionCost    string `json:"constructionCost"`
	OtherCost           string `json:"otherCost"`
	Profit              string `json:"profit" doc:"Project profit (D)"`
	ProportionalityRate string `json:"proportionalityRate" doc:"Proportionality rate (E)"`
}

// ContributionVariation is the contribution owed for one unit type.
type ContributionVariation struct {
	Type         string `json:"type"`
	SupplyArea   string `json:"supplyArea"`
	SalePrice    string `json:"salePrice" doc:"Sale price [B]"`
	Contribution string `json:"contribution" doc:"Contribution [C=B-A]"`
}

// ContributionComparison compares contributions for one household.
type ContributionComparison struct {
	HouseholdName string                  `json:"householdName"`
	PreAssetEval  string                  `json:"preAssetEval" doc:"Estimated appraisal of prior assets"`
	RightsValue   string                  `json:"rightsValue" doc:"Rights value [A]"`
	Variations    []ContributionVariation `json:"variations"`
}

// Record is everything the detail panel shows for one entity. Records are
// owned by their source and treated as read-only.
type Record struct {
	ID                      string                   `json:"id" doc:"Entity ID, matching the map catalogue" example:"samsung-lotte"`
	Title                   string                   `json:"title" doc:"Address or name"`
	SubTitle                string                   `json:"subTitle" doc:"Household count and age"`
	PriceSection            PriceSection             `json:"priceSection"`
	RecentTransactions      []Transaction            `json:"recentTransactions"`
	AdditionalTransactions  []Transaction            `json:"additionalTransactions,omitempty"`
	ArchitecturalPlan       *ArchitecturalPlan       `json:"architecturalPlan,omitempty"`
	FeasibilityAnalysis     *FeasibilityAnalysis     `json:"feasibilityAnalysis,omitempty"`
	ContributionComparisons []ContributionComparison `json:"contributionComparisons,omitempty"`
}
