// Package tenant defines the tenant registry: one descriptor per
// country/operator deployment, loaded from YAML at process start and
// immutable afterwards.
package tenant

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Descriptor describes one tenant deployment: where its transactional
// store and billing store live, where aggregates are written, and its
// tenant-specific exclusion rules.
type Descriptor struct {
	Name          string `koanf:"name" validate:"required"`
	MongoURI      string `koanf:"mongo_uri" validate:"required"`
	MongoDatabase string `koanf:"mongo_database" validate:"required"`

	// ReportDatabase is where aggregate collections are written. Empty
	// means the transactional database (the per-country layout); the
	// worldwide tenant keeps a separate reports database.
	ReportDatabase string `koanf:"report_database"`

	// MariaDSN is the billing store. Optional: tenants without billing
	// metadata enrich everything to the Unknown placeholder.
	MariaDSN string `koanf:"maria_dsn"`

	// OutputCollection is the SMS by-day aggregate collection name.
	OutputCollection string `koanf:"output_collection" validate:"required"`

	// UTCOffsetHours shifts the civil day boundary. All tenants in
	// scope share a fixed offset (UTC-6: civil day starts 06:00 UTC).
	UTCOffsetHours int `koanf:"utc_offset_hours"`

	// ExcludedAccounts are account ObjectIDs (hex) excluded from the
	// conversation and order rollups (internal/demo accounts).
	ExcludedAccounts []string `koanf:"excluded_accounts"`
}

// ExcludedObjectIDs parses the exclusion list into ObjectIDs. Invalid
// entries are a configuration error, caught by Validate at startup.
func (d *Descriptor) ExcludedObjectIDs() ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(d.ExcludedAccounts))
	for _, hex := range d.ExcludedAccounts {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: invalid excluded account id %q: %w", d.Name, hex, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReportDatabaseName returns the database aggregates are written to.
func (d *Descriptor) ReportDatabaseName() string {
	if d.ReportDatabase != "" {
		return d.ReportDatabase
	}
	return d.MongoDatabase
}

// Registry is the immutable set of tenant descriptors.
type Registry struct {
	Tenants []Descriptor `koanf:"tenants" validate:"required,min=1,dive"`
}

// Get returns the descriptor with the given name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	for i := range r.Tenants {
		if r.Tenants[i].Name == name {
			return &r.Tenants[i], true
		}
	}
	return nil, false
}
