package classification

import "github.com/Veraticus/spice-insight/internal/model"

// KeywordSet maps one category to the vocabulary that selects it.
type KeywordSet struct {
	Category model.Category
	Keywords []string
}

// DefaultKeywordTable returns the ordered category table. Earlier sets win
// when a description matches more than one.
func DefaultKeywordTable() []KeywordSet {
	return []KeywordSet{
		{
			Category: model.CategoryGroceries,
			Keywords: []string{
				"grocery", "groceries", "supermarket", "whole foods", "trader joe", "kroger",
				"safeway", "publix", "aldi", "wegmans", "food lion", "costco", "sprouts",
				"instacart", "heb", "fresh market",
			},
		},
		{
			Category: model.CategoryDining,
			Keywords: []string{
				"restaurant", "cafe", "coffee", "starbucks", "dunkin", "mcdonald", "mcdonalds",
				"chipotle", "subway", "pizza", "burger", "taco", "sushi", "diner", "bistro",
				"grill", "doordash", "uber eats", "grubhub", "postmates", "seamless", "bakery",
			},
		},
		{
			Category: model.CategoryTransport,
			Keywords: []string{
				"uber", "lyft", "taxi", "parking", "toll", "transit", "metro", "shell", "exxon",
				"chevron", "mobil", "texaco", "fuel", "gas station", "amtrak", "bart", "mta",
			},
		},
		{
			Category: model.CategoryUtilities,
			Keywords: []string{
				"electric", "utility", "utilities", "water bill", "gas bill", "internet", "comcast",
				"xfinity", "verizon", "at&t", "t-mobile", "spectrum", "pg&e", "con edison",
				"sewer", "trash", "bill pay",
			},
		},
		{
			Category: model.CategoryEntertainment,
			Keywords: []string{
				"cinema", "movie", "theater", "theatre", "concert", "ticketmaster", "stubhub",
				"steam", "playstation", "xbox", "nintendo", "bowling", "museum",
			},
		},
		{
			Category: model.CategorySubscriptions,
			Keywords: []string{
				"netflix", "spotify", "hulu", "disney plus", "hbo", "youtube premium",
				"apple music", "audible", "patreon", "substack", "subscription", "membership",
				"icloud", "dropbox", "adobe",
			},
		},
		{
			Category: model.CategoryShopping,
			Keywords: []string{
				"amazon", "amzn", "ebay", "etsy", "walmart", "target", "best buy", "ikea",
				"home depot", "lowes", "nordstrom", "macys", "kohls", "tj maxx", "marshalls",
				"wayfair", "nike",
			},
		},
		{
			Category: model.CategoryHealthcare,
			Keywords: []string{
				"pharmacy", "cvs", "walgreens", "rite aid", "doctor", "hospital", "medical",
				"dental", "dentist", "clinic", "urgent care", "optometry", "therapy", "lab corp",
			},
		},
		{
			Category: model.CategoryInsurance,
			Keywords: []string{
				"insurance", "geico", "progressive", "state farm", "allstate", "liberty mutual",
				"premium", "aetna", "cigna",
			},
		},
		{
			Category: model.CategoryTravel,
			Keywords: []string{
				"hotel", "airbnb", "vrbo", "marriott", "hilton", "hyatt", "expedia", "booking com",
				"airline", "airlines", "delta air", "united air", "southwest", "flight",
				"hertz", "avis", "cruise",
			},
		},
		{
			Category: model.CategoryEducation,
			Keywords: []string{
				"tuition", "university", "college", "school", "coursera", "udemy", "textbook",
				"student loan",
			},
		},
		{
			Category: model.CategoryInvestments,
			Keywords: []string{
				"vanguard", "fidelity", "schwab", "robinhood", "etrade", "brokerage",
				"401k", "ira", "roth", "investment", "savings deposit", "coinbase",
			},
		},
		{
			Category: model.CategoryTransfers,
			Keywords: TransferKeywords(),
		},
	}
}

// TransferKeywords is the vocabulary that marks money moving between the
// user's own accounts or to a person.
func TransferKeywords() []string {
	return []string{
		"transfer", "xfer", "tfr", "move money", "account to account", "wire in", "wire out",
		"wire transfer", "to savings", "from savings", "zelle", "venmo", "paypal transfer",
		"cash app", "credit card payment", "card payment", "cc payment",
	}
}
