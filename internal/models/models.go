// Package models holds the gorm models of the contract engine.
package models

// All returns every model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Company{},
		&Project{},
		&CostLineItem{},
		&ChangeOrderItem{},
		&Document{},
		&Milestone{},
		&SignatureEvent{},
	}
}
