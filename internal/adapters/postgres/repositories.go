package postgres

import (
	"gorm.io/gorm"

	"github.com/keygate/license-service/internal/ports"
)

type Repositories struct {
	Licenses ports.LicenseRepository
	Outbox   ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Licenses: &licenseRepository{db: db},
		Outbox:   &outboxRepository{db: db},
	}
}
