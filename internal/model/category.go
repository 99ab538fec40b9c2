package model

// Category is one member of the fixed spending taxonomy.
type Category string

// The category taxonomy. Every CategorizedTransaction carries one of these.
const (
	CategoryGroceries     Category = "Groceries & Food"
	CategoryDining        Category = "Dining & Restaurants"
	CategoryTransport     Category = "Transportation"
	CategoryUtilities     Category = "Utilities & Bills"
	CategoryEntertainment Category = "Entertainment & Recreation"
	CategoryShopping      Category = "Shopping & Retail"
	CategoryHealthcare    Category = "Healthcare & Medical"
	CategoryInsurance     Category = "Insurance"
	CategorySubscriptions Category = "Subscriptions & Services"
	CategoryTravel        Category = "Travel & Hotels"
	CategoryEducation     Category = "Education"
	CategoryInvestments   Category = "Investments & Savings"
	CategoryIncome        Category = "Income & Deposits"
	CategoryTransfers     Category = "Transfers"
	CategoryOther         Category = "Other"
)

// Labels produced by the amount and classifier fallbacks. They are aliases of
// taxonomy members so the taxonomy stays closed.
const (
	// CategoryFoodAndDining is the small-amount bucket.
	CategoryFoodAndDining = CategoryDining
	// CategoryBills is where strongly negative classifier signals land.
	CategoryBills = CategoryUtilities
	// CategoryMajorExpenses is the large-amount bucket.
	CategoryMajorExpenses = CategoryShopping
)

var taxonomy = []Category{
	CategoryGroceries,
	CategoryDining,
	CategoryTransport,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryShopping,
	CategoryHealthcare,
	CategoryInsurance,
	CategorySubscriptions,
	CategoryTravel,
	CategoryEducation,
	CategoryInvestments,
	CategoryIncome,
	CategoryTransfers,
	CategoryOther,
}

// Taxonomy returns every category in its canonical order.
func Taxonomy() []Category {
	out := make([]Category, len(taxonomy))
	copy(out, taxonomy)
	return out
}

// IsValid reports whether c is a taxonomy member.
func (c Category) IsValid() bool {
	for _, member := range taxonomy {
		if c == member {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}
