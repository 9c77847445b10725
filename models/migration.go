package models

import "github.com/keyflowhq/keyflow_backend/config"

// MigrateTable creates/updates the schema. Called once at startup.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Dealership{},
		&User{},
		&Invite{},
		&Key{},
		&CheckoutSession{},
		&KeyHistory{},
		&RepairRequest{},
		&PdiAuditLog{},
	)
	if err != nil {
		panic(err)
	}
}
