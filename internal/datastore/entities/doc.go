// Package entities defines the GORM models persisted by the engine.
//
// # Tables
//
//   - ActivityEntry: ingested activity records and their processing status
//   - EmissionFactor: the reference corpus; ID order is corpus insertion order
//   - Calculation: append-only calculation results
//
// Entry IDs are scoped by tenant: two tenants may both own an "inv-001".
// Successful calculations carry SettledEntryID, unique per tenant. Failed
// attempts leave it NULL so they remain as audit rows and never block a
// later successful run for the same entry.
package entities
