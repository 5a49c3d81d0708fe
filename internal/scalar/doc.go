// Package scalar: see scalar.go for the Kind/Value tagged union, field.go
// for the SchemaField/FieldClass model, and record.go for the Record/Bit
// type that strings dimensions, tags, value and timestamp together.
//
// Design notes (spec.md §9):
//   - Scalar ∈ {INT, BIGINT, DECIMAL, VARCHAR} is a closed sum type with
//     one explicit path per variant in Compare/String/Float64 — never
//     runtime class reflection.
//   - Kind is persisted as the stable tag string, not a reflected class
//     name, so schema snapshots survive renames of the implementation.
package scalar
