package redisx

import "time"

const (
	// Cache of a comanda's JSON representation: comanda:{order_id}
	KeyComanda = "comanda:%s"

	// Dedup for event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLComandaCache = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
