// internal/config/database.go
package config

import (
	"fmt"
	"time"
)

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// QualifiedTable returns schema.table, both already validated as identifiers.
func (d *DatabaseConfig) QualifiedTable() string {
	return fmt.Sprintf("%s.%s", d.Schema, d.Table)
}

func (s *SearchConfig) BreakerOpenTimeout() time.Duration {
	return time.Duration(s.BreakerTimeout) * time.Second
}
