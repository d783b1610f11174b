package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the caller did not provide one. Postgres
// also defaults ids via gen_random_uuid(); assigning here keeps the id known to
// the caller before commit and works on SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
