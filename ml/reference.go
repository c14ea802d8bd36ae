package ml

// QualityReferenceRow is one line of the static quality reference table.
type QualityReferenceRow struct {
	Quality       QualityLabel `json:"quality"`
	Range         string       `json:"quality_range"`
	AverageRating float64      `json:"average_rating"`
}

func QualityReference() []QualityReferenceRow {
	return []QualityReferenceRow{
		{Quality: QualityLow, Range: "0-3", AverageRating: 2.5},
		{Quality: QualityMedium, Range: "4-6", AverageRating: 3.5},
		{Quality: QualityHigh, Range: "7-10", AverageRating: 4.5},
	}
}

// SampleWine is a decorative card shown next to the form.
type SampleWine struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Details     string `json:"details"`
}

func SampleWines() []SampleWine {
	return []SampleWine{
		{
			Name:        "Red Wine",
			Description: "A rich and full-bodied red wine with notes of dark fruit and spices.",
			Color:       "#8B0000",
			Details:     "Pairs well with steak, lamb, and hard cheeses. Region: Bordeaux, France. Fun fact: Red wine gets its color from grape skins!",
		},
		{
			Name:        "White Wine",
			Description: "A crisp and refreshing white wine with citrus and floral notes.",
			Color:       "#F5DEB3",
			Details:     "Pairs well with fish, chicken, and soft cheeses. Region: Marlborough, New Zealand. Fun fact: White wine is usually served chilled!",
		},
		{
			Name:        "Rosé Wine",
			Description: "A light and fruity rosé wine with hints of berries and melon.",
			Color:       "#FFC0CB",
			Details:     "Pairs well with salads, seafood, and light pasta. Region: Provence, France. Fun fact: Rosé is made by allowing red grape skins to touch wine for only a short time!",
		},
	}
}
