package server

import (
	"database/sql"

	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/billing"
	"github.com/patissio/patissio/internal/catalog"
	"github.com/patissio/patissio/internal/media"
	"github.com/patissio/patissio/internal/notification"
	"github.com/patissio/patissio/internal/order"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/workshop"
)

// stores is one backend per domain package.
type stores struct {
	users         auth.Store
	tenants       tenant.Store
	catalog       catalog.Store
	orders        order.Store
	workshops     workshop.Store
	notifications notification.Store
	subscriptions billing.Store
	images        media.Store
}

func memoryStores() stores {
	return stores{
		users:         auth.NewMemoryStore(),
		tenants:       tenant.NewMemoryStore(),
		catalog:       catalog.NewMemoryStore(),
		orders:        order.NewMemoryStore(),
		workshops:     workshop.NewMemoryStore(),
		notifications: notification.NewMemoryStore(),
		subscriptions: billing.NewMemoryStore(),
		images:        media.NewMemoryStore(),
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		users:         auth.NewPostgresStore(db),
		tenants:       tenant.NewPostgresStore(db),
		catalog:       catalog.NewPostgresStore(db),
		orders:        order.NewPostgresStore(db),
		workshops:     workshop.NewPostgresStore(db),
		notifications: notification.NewPostgresStore(db),
		subscriptions: billing.NewPostgresStore(db),
		images:        media.NewPostgresStore(db),
	}
}
