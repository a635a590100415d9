// Package global holds process-wide state that is read-only after
// startup: the parsed configuration, the validator and the store handle
// registries keyed by tenant name.
package global

import (
	"database/sql"

	validator "github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/config"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/registry"

	_ "github.com/go-sql-driver/mysql"
)

// CollectionNames holds the MongoDB collection names used by the
// pipeline. Source collections are owned by the upstream messaging
// system and read-only here; report collections are owned by this
// process.
type CollectionNames struct {
	// Source collections (read-only)
	Transactions  string // raw outbound message transaction events
	Accounts      string // account metadata in the transactional store
	Conversations string // conversation records
	Orders        string // commerce orders
	DlrStatusCode string // delivery error code descriptions

	// Report collections (written by this process)
	ErrorsPerDay         string
	TransactionsPerType  string
	ConversationsByType  string
	ConversationInsights string
	OrdersByChannel      string
	ExternalPayments     string
}

// Process-wide read-only globals.
var (
	Validate     *validator.Validate
	ServerConfig *config.Configuration
	ColNames     CollectionNames
)

// Store handle registries, keyed by tenant name.
var (
	RegistryMongoClients = registry.NewRegistry[*mongo.Client]()
	RegistryBillingDBs   = registry.NewRegistry[*sql.DB]()
)
