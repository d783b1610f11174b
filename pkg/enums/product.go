package enums

import "slices"

// ProductCategory maps to the products.category column.
type ProductCategory string

const (
	ProductCategoryUniform       ProductCategory = "uniform"
	ProductCategoryHoodie        ProductCategory = "hoodie"
	ProductCategoryShirt         ProductCategory = "shirt"
	ProductCategoryShorts        ProductCategory = "shorts"
	ProductCategorySocks         ProductCategory = "socks"
	ProductCategoryAccessories   ProductCategory = "accessories"
	ProductCategoryKeychains     ProductCategory = "keychains"
	ProductCategoryMerchandising ProductCategory = "merchandising"
	ProductCategoryEquipment     ProductCategory = "equipment"
	ProductCategoryOther         ProductCategory = "other"
)

var validProductCategories = []ProductCategory{
	ProductCategoryUniform,
	ProductCategoryHoodie,
	ProductCategoryShirt,
	ProductCategoryShorts,
	ProductCategorySocks,
	ProductCategoryAccessories,
	ProductCategoryKeychains,
	ProductCategoryMerchandising,
	ProductCategoryEquipment,
	ProductCategoryOther,
}

// ProductCategories returns every known category in display order.
func ProductCategories() []ProductCategory {
	out := make([]ProductCategory, len(validProductCategories))
	copy(out, validProductCategories)
	return out
}

// IsValid reports whether the value matches a known product category.
func (c ProductCategory) IsValid() bool {
	return slices.Contains(validProductCategories, c)
}

// ParseProductCategory converts raw input into ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	return parse(validProductCategories, "product category", value)
}

// MovementType maps to the stock_movements.type column.
type MovementType string

const (
	MovementTypeInbound    MovementType = "inbound"
	MovementTypeOutbound   MovementType = "outbound"
	MovementTypeAdjustment MovementType = "adjustment"
)

var validMovementTypes = []MovementType{
	MovementTypeInbound,
	MovementTypeOutbound,
	MovementTypeAdjustment,
}

// IsValid reports whether the value matches a known movement type.
func (m MovementType) IsValid() bool {
	return slices.Contains(validMovementTypes, m)
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	return parse(validMovementTypes, "movement type", value)
}
