// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danielhkuo/votegate/db"
)

// Tally counts votes per option. counts[i] is the count for option i+1;
// votes for options outside [1, options] are only included in total.
func Tally(ctx context.Context, q db.Querier, pollID string, options int) (counts []int, total int, err error) {
	rows, err := q.QueryContext(ctx, `
		SELECT option, COUNT(*) FROM vote
		WHERE poll_id = $1
		GROUP BY option
	`, pollID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tally: %w", err)
	}
	defer rows.Close()

	counts = make([]int, options)
	for rows.Next() {
		var option, n int
		if err := rows.Scan(&option, &n); err != nil {
			return nil, 0, fmt.Errorf("failed to scan tally: %w", err)
		}
		if option >= 1 && option <= options {
			counts[option-1] = n
		}
		total += n
	}
	return counts, total, rows.Err()
}

// HourCount is the number of votes cast in one hour of the day
type HourCount struct {
	Hour  int
	Count int
}

// VotesByHour buckets votes cast since the given time by UTC hour of day
func VotesByHour(ctx context.Context, q db.Querier, pollID string, since time.Time) ([]HourCount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT created_at FROM vote WHERE poll_id = $1
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	buckets := make(map[int]int)
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		if createdAt.Before(since) {
			continue
		}
		buckets[createdAt.UTC().Hour()]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]HourCount, 0, len(buckets))
	for h, n := range buckets {
		out = append(out, HourCount{Hour: h, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out, nil
}

// DeleteAll removes every vote of a poll
func DeleteAll(ctx context.Context, q db.Querier, pollID string) (int, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM vote WHERE poll_id = $1`, pollID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteByBinding removes the votes cast by one binding
func DeleteByBinding(ctx context.Context, q db.Querier, pollID, bindingID string) (int, error) {
	res, err := q.ExecContext(ctx, `
		DELETE FROM vote WHERE poll_id = $1 AND binding_id = $2
	`, pollID, bindingID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
