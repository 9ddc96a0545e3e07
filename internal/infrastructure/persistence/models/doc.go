// Package models maps invoicing aggregates onto GORM rows. Domain types never
// carry gorm tags; every model converts with ToDomain and FromDomain.
//
// Column tags must agree with migrations/000001_init_schema.up.sql. SQLite
// databases are created from these models with AutoMigrate.
package models
