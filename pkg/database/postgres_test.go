package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/philong996/kindergarten-connect-sub000/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "kinder",
		Password: "p@ss",
		Name:     "attendance",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://kinder:p%40ss@db:5432/attendance?sslmode=disable", dsn)
}
