package redis

// Key prefixes for primary entity storage.
const (
	prefixKey      = "gh:key:"
	prefixWebhook  = "gh:wh:"
	prefixEvent    = "gh:evt:"
	prefixDelivery = "gh:del:"
	prefixCounter  = "gh:rl:"
)

// Key prefixes for unique indexes.
const (
	uniqueKeyHash = "gh:u:key:hash:" // + hash
)

// Key prefixes for sorted set indexes.
const (
	zKeyOwner     = "gh:z:key:owner:" // + owner ID
	zWebhookOwner = "gh:z:wh:owner:"  // + owner ID
	zEventAll     = "gh:z:evt:all"
	zDeliveryWh   = "gh:z:del:wh:"  // + webhook ID
	zDeliveryEvt  = "gh:z:del:evt:" // + event ID
	zDeliveryDue  = "gh:z:del:due"
	zLedger       = "gh:z:ledger"
)

// Key prefixes for set indexes.
const (
	sWebhookEvent = "gh:s:wh:evt:" // + event name, members are active webhook IDs
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
