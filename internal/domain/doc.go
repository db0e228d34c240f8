// Package domain define los tipos y contratos del core de autorización.
//
// Los colaboradores externos (persistencia de clients, autenticación de resource
// owners) se ven acá sólo como interfaces; las implementaciones viven en
// internal/store/pg, internal/clients (doble en memoria) e internal/owner.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de persistencia: ErrNotFound / ErrConflict (errors.go)
package domain
