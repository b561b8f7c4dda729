// Package database provides PostgreSQL connectivity and the rating store.
//
// Uses pgx for connection pooling. RatingRepo implements domain.RatingStore;
// aggregate updates are single-statement atomic increments, and the event
// append rides in the same transaction.
package database
