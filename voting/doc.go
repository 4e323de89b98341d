// Package voting implements the masternode quorum voting core: the
// vote data model, stateless vote verification and the in memory pool
// that deduplicates, ages out and schedules relay of votes before
// their effect is committed on ledger.
package voting
