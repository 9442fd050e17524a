package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/subscriber/entity"
)

// SubscriberRepo stores the subscriber -> channel graph.
type SubscriberRepo struct {
	db *sqlx.DB
}

func NewSubscriberRepo(db *sqlx.DB) *SubscriberRepo {
	return &SubscriberRepo{db: db}
}

// Subscribe records s. Subscribing twice is a no-op; the return value reports
// whether a new row was written.
func (r *SubscriberRepo) Subscribe(ctx context.Context, s *entity.Subscription) (bool, error) {
	const q = `INSERT INTO subscriptions (id, subscriber_id, channel_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, s.ID, s.SubscriberID, s.ChannelID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Unsubscribe removes the pair, reporting whether it existed.
func (r *SubscriberRepo) Unsubscribe(ctx context.Context, subscriberID, channelID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE subscriber_id=$1 AND channel_id=$2`, subscriberID, channelID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountSubscribers counts users subscribed to channelID.
func (r *SubscriberRepo) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM subscriptions WHERE channel_id=$1`, channelID)
	return n, err
}

// CountSubscribedTo counts channels subscriberID follows.
func (r *SubscriberRepo) CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id=$1`, subscriberID)
	return n, err
}

// IsSubscribed reports whether subscriberID follows channelID.
func (r *SubscriberRepo) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id=$1 AND channel_id=$2)`,
		subscriberID, channelID)
	return ok, err
}
