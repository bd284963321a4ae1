// Package postgres implements store.Store on PostgreSQL using pgx/v5
// with pgxpool connection pooling and embedded SQL migrations. Leader
// election uses a leader_until column with atomic UPDATEs rather than
// advisory locks, so leases survive connection churn.
package postgres
