// Package ingest defines the domain types, collaborator interfaces and error
// taxonomy shared by the listing pager, document extractor, date resolver,
// record store, enrichment fan-out and pipeline orchestrator.
package ingest
