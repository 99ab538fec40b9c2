package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategory_IsValid(t *testing.T) {
	for _, c := range Taxonomy() {
		assert.True(t, c.IsValid(), c)
	}
	assert.Len(t, Taxonomy(), 15)
	assert.False(t, Category("Food & Dining").IsValid())
	assert.True(t, CategoryFoodAndDining.IsValid())
	assert.True(t, CategoryBills.IsValid())
	assert.True(t, CategoryMajorExpenses.IsValid())
}

func TestTaxonomy_ReturnsCopy(t *testing.T) {
	cats := Taxonomy()
	cats[0] = "mutated"
	assert.Equal(t, CategoryGroceries, Taxonomy()[0])
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 0.42, 0.42},
		{"negative", -1, 0},
		{"above one", 1.7, 1},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ClampConfidence(tt.in), 1e-9)
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	ok := Transaction{ID: "t1", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.NoError(t, ok.Validate())

	assert.Error(t, Transaction{Date: ok.Date}.Validate())
	assert.Error(t, Transaction{ID: "t2"}.Validate())
}

func TestHashText_NormalizesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, HashText("Netflix  Com"), HashText(" netflix com "))
	assert.NotEqual(t, HashText("netflix"), HashText("spotify"))
}

func TestMerchantCluster_Contains(t *testing.T) {
	c := MerchantCluster{Canonical: "UBER", Members: []string{"UBER", "UBER TRIP"}}
	assert.True(t, c.Contains("UBER TRIP"))
	assert.False(t, c.Contains("LYFT"))
}

func TestDataQualityScore_Grade(t *testing.T) {
	assert.Equal(t, "excellent", DataQualityScore{Score: 1}.Grade())
	assert.Equal(t, "good", DataQualityScore{Score: 0.75}.Grade())
	assert.Equal(t, "fair", DataQualityScore{Score: 0.5}.Grade())
	assert.Equal(t, "poor", DataQualityScore{Score: 0}.Grade())
}
