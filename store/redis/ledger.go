package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/m3n3sx/gatehouse/ledger"
)

// Ledger entries are stored as JSON members of a single sorted set
// scored by occurrence time, so retention is two range removals.

func (s *Store) AppendLedger(ctx context.Context, e *ledger.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("gatehouse/redis: marshal ledger entry: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, zLedger, goredis.Z{
		Score:  scoreFromTime(e.OccurredAt),
		Member: raw,
	}).Err(); err != nil {
		return fmt.Errorf("gatehouse/redis: append ledger: %w", err)
	}
	return nil
}

func (s *Store) ListLedger(ctx context.Context, opts ledger.ListOpts) ([]*ledger.Entry, error) {
	// Newest first.
	raws, err := s.rdb.ZRevRange(ctx, zLedger, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("gatehouse/redis: list ledger: %w", err)
	}

	result := make([]*ledger.Entry, 0, len(raws))
	for _, raw := range raws {
		var e ledger.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("gatehouse/redis: decode ledger entry: %w", err)
		}
		if opts.Kind != nil && e.Kind != *opts.Kind {
			continue
		}
		if opts.WebhookID != nil && e.WebhookID.String() != opts.WebhookID.String() {
			continue
		}
		if opts.From != nil && e.OccurredAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.OccurredAt.After(*opts.To) {
			continue
		}
		result = append(result, &e)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountLedger(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zLedger).Result()
	if err != nil {
		return 0, fmt.Errorf("gatehouse/redis: count ledger: %w", err)
	}
	return count, nil
}

func (s *Store) PruneLedger(ctx context.Context, maxEntries int, before time.Time) (int64, error) {
	byAge, err := s.rdb.ZRemRangeByScore(ctx, zLedger,
		"-inf", fmt.Sprintf("(%f", scoreFromTime(before))).Result()
	if err != nil {
		return 0, fmt.Errorf("gatehouse/redis: prune ledger by age: %w", err)
	}

	var byCount int64
	if maxEntries > 0 {
		// Drop the lowest-scored (oldest) entries beyond the cap.
		byCount, err = s.rdb.ZRemRangeByRank(ctx, zLedger, 0, int64(-maxEntries-1)).Result()
		if err != nil {
			return byAge, fmt.Errorf("gatehouse/redis: prune ledger by count: %w", err)
		}
	}
	return byAge + byCount, nil
}
