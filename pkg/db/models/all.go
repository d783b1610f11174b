package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// SQLite mode and tests.
func All() []any {
	return []any{
		&User{},
		&Plan{},
		&Enrollment{},
		&PaymentProof{},
		&Product{},
		&StockMovement{},
		&Sale{},
		&SaleItem{},
		&OutboxEvent{},
	}
}
