package billing

import (
	"context"
	"fmt"
)

// Bulk operations iterate ids sequentially and stop at the first
// failure: items already applied stay applied, the remainder is never
// attempted. Succeeded/Failed counts report how far the batch got.

// BulkApprove approves every listed bill in order.
func (s *Service) BulkApprove(ctx context.Context, ids []int64, actorID int64) (BulkResult, error) {
	return s.runBulk(ctx, ids, func(ctx context.Context, id int64) error {
		_, err := s.Approve(ctx, id, actorID)
		return err
	})
}

// BulkUnapprove returns bills to draft. The whole batch is refused,
// with no bill changed, when any selected bill carries a payment.
func (s *Service) BulkUnapprove(ctx context.Context, ids []int64, actorID int64) (BulkResult, error) {
	for _, id := range ids {
		b, err := s.repo.GetBill(ctx, id)
		if err != nil {
			return BulkResult{Failed: len(ids)}, fmt.Errorf("precheck bill %d: %w", id, err)
		}
		if b.Status == StatusPaid || b.PaidAmount > 0 {
			return BulkResult{Failed: len(ids)}, ErrCannotUnapprovePaid
		}
	}
	return s.runBulk(ctx, ids, func(ctx context.Context, id int64) error {
		_, err := s.Unapprove(ctx, id, actorID)
		return err
	})
}

// BulkCollect collects each bill's full remaining balance.
func (s *Service) BulkCollect(ctx context.Context, ids []int64, actorID int64) (BulkResult, error) {
	return s.runBulk(ctx, ids, func(ctx context.Context, id int64) error {
		b, err := s.repo.GetBill(ctx, id)
		if err != nil {
			return err
		}
		_, err = s.Collect(ctx, id, CollectInput{Amount: b.Remaining(), PaidAt: s.now(), ActorID: actorID})
		return err
	})
}

// BulkUncollect reverses every listed paid bill.
func (s *Service) BulkUncollect(ctx context.Context, ids []int64, actorID int64) (BulkResult, error) {
	return s.runBulk(ctx, ids, func(ctx context.Context, id int64) error {
		_, err := s.Uncollect(ctx, id, actorID)
		return err
	})
}

// BulkDelete removes every listed draft bill.
func (s *Service) BulkDelete(ctx context.Context, ids []int64, actorID int64) (BulkResult, error) {
	return s.runBulk(ctx, ids, func(ctx context.Context, id int64) error {
		return s.DeleteBill(ctx, id, actorID)
	})
}

func (s *Service) runBulk(ctx context.Context, ids []int64, op func(context.Context, int64) error) (BulkResult, error) {
	var res BulkResult
	for i, id := range ids {
		if err := op(ctx, id); err != nil {
			res.Failed = len(ids) - i
			return res, fmt.Errorf("bill %d: %w", id, err)
		}
		res.Succeeded++
	}
	return res, nil
}
