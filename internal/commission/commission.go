// Package commission credits task rewards and referral commissions. It is
// the only writer of user balances.
package commission

import (
	"context"
	"slices"

	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
)

// maxUplineDepth is how many referral levels earn commission.
const maxUplineDepth = 2

// Store is the ledger persistence the calculator needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	Credit(ctx context.Context, credit datastore.Credit) (*model.TransactionRecord, error)
}

// Calculator pays approvals and continuous check rewards.
type Calculator struct {
	log logger.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{log: GetLogger()}
}

// leg is one credit of a payout.
type leg struct {
	depth int
	kind  model.TransactionKind
	amt   int64
}

// PayApproval credits the task price to the submitter and the configured
// tier commissions to the parent and grandparent. A missing upline ends
// the payout without error. Zero amounts produce no record.
func (c *Calculator) PayApproval(ctx context.Context, st Store, task *model.ReviewTask, cfg *model.TaskConfig) ([]model.TransactionRecord, error) {
	return c.pay(ctx, st, task, []leg{
		{0, model.TxTaskReward, cfg.Price},
		{1, model.TxCommissionTier1, cfg.CommissionTier1},
		{2, model.TxCommissionTier2, cfg.CommissionTier2},
	})
}

// PayDaily credits one continuous check day: the daily reward to the
// submitter and tier commissions scaled by dailyReward/price, rounded down.
func (c *Calculator) PayDaily(ctx context.Context, st Store, task *model.ReviewTask, cfg *model.TaskConfig) ([]model.TransactionRecord, error) {
	return c.pay(ctx, st, task, []leg{
		{0, model.TxDailyReward, cfg.DailyRewardPoints},
		{1, model.TxDailyCommissionTier1, scaled(cfg.CommissionTier1, cfg.DailyRewardPoints, cfg.Price)},
		{2, model.TxDailyCommissionTier2, scaled(cfg.CommissionTier2, cfg.DailyRewardPoints, cfg.Price)},
	})
}

func scaled(amount, num, den int64) int64 {
	if den <= 0 || amount <= 0 || num <= 0 {
		return 0
	}
	return amount * num / den
}

func (c *Calculator) pay(ctx context.Context, st Store, task *model.ReviewTask, legs []leg) ([]model.TransactionRecord, error) {
	chain, err := c.upline(ctx, st, task.SubmitterID)
	if err != nil {
		return nil, err
	}

	var records []model.TransactionRecord
	for _, l := range legs {
		if l.depth >= len(chain) {
			break
		}
		if l.amt <= 0 {
			continue
		}
		rec, err := st.Credit(ctx, datastore.Credit{
			UserID:     chain[l.depth],
			TaskID:     task.ID,
			SourceUser: task.SubmitterID,
			Kind:       l.kind,
			Amount:     l.amt,
		})
		if err != nil {
			return nil, errors.New(err).
				Component("commission").
				Category(errors.CategoryLedger).
				Context("task_id", task.ID).
				Context("user_id", chain[l.depth]).
				Context("kind", string(l.kind)).
				Build()
		}
		records = append(records, *rec)
	}

	c.log.Debug("payout credited",
		logger.String("task_id", task.ID),
		logger.Int("records", len(records)),
		logger.Int("upline", len(chain)-1))
	return records, nil
}

// upline returns the submitter followed by up to maxUplineDepth ancestors.
// A parent reference to an unknown user ends the chain.
func (c *Calculator) upline(ctx context.Context, st Store, submitterID string) ([]string, error) {
	user, err := st.GetUser(ctx, submitterID)
	if err != nil {
		return nil, err
	}

	chain := []string{user.ID}
	for len(chain) <= maxUplineDepth && user.ParentID != nil && *user.ParentID != "" {
		parentID := *user.ParentID
		if slices.Contains(chain, parentID) {
			break
		}
		parent, err := st.GetUser(ctx, parentID)
		if err != nil {
			if errors.IsCategory(err, errors.CategoryNotFound) {
				c.log.Warn("referral parent not found",
					logger.String("user_id", user.ID),
					logger.String("parent_id", parentID))
				break
			}
			return nil, err
		}
		chain = append(chain, parent.ID)
		user = parent
	}
	return chain, nil
}
