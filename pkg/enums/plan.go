package enums

import "slices"

// PlanCategory groups plans by member age bracket.
type PlanCategory string

const (
	PlanCategoryChildren PlanCategory = "children"
	PlanCategoryYouth    PlanCategory = "youth"
	PlanCategorySenior   PlanCategory = "senior"
	PlanCategorySpecial  PlanCategory = "special"
)

var validPlanCategories = []PlanCategory{
	PlanCategoryChildren,
	PlanCategoryYouth,
	PlanCategorySenior,
	PlanCategorySpecial,
}

// IsValid reports whether the value matches a known plan category.
func (c PlanCategory) IsValid() bool {
	return slices.Contains(validPlanCategories, c)
}

// ParsePlanCategory converts raw input into PlanCategory.
func ParsePlanCategory(value string) (PlanCategory, error) {
	return parse(validPlanCategories, "plan category", value)
}

// BillingModality is how often a plan is charged.
type BillingModality string

const (
	BillingModalityMonthly    BillingModality = "monthly"
	BillingModalityQuarterly  BillingModality = "quarterly"
	BillingModalitySemiannual BillingModality = "semiannual"
	BillingModalityAnnual     BillingModality = "annual"
)

var validBillingModalities = []BillingModality{
	BillingModalityMonthly,
	BillingModalityQuarterly,
	BillingModalitySemiannual,
	BillingModalityAnnual,
}

// IsValid reports whether the value matches a known billing modality.
func (m BillingModality) IsValid() bool {
	return slices.Contains(validBillingModalities, m)
}

// ParseBillingModality converts raw input into BillingModality.
func ParseBillingModality(value string) (BillingModality, error) {
	return parse(validBillingModalities, "billing modality", value)
}
