package services

import (
	"context"
	"testing"

	"content-unlock-service/metrics"
	"content-unlock-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referralsProcessed reads content_unlock_referrals_processed_total for one outcome.
func referralsProcessed(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "content_unlock_referrals_processed_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestStartNewUserWithInvite(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 0)

	res, err := e.Start(ctx, 2, "/start invite_1")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, models.ReferralRecorded, res.Referral.Outcome)
	assert.Zero(t, res.Account.CoinBalance)
	assert.Equal(t, models.SessionMenu, res.Session.State)
	assert.Equal(t, "https://t.me/test_bot?start=invite_2", res.ReferralLink)

	assert.Equal(t, int64(1), account(t, db, 1).InviteCount)
}

func TestStartExistingUserIgnoresInvite(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 0)
	fund(t, e, 2, 4)

	res, err := e.Start(ctx, 2, "invite_1")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, models.ReferralNone, res.Referral.Outcome)
	assert.Equal(t, int64(4), res.Account.CoinBalance)
	assert.Zero(t, account(t, db, 1).InviteCount)
}

func TestStartSelfInvite(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Start(context.Background(), 3, "invite_3")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, models.ReferralSelf, res.Referral.Outcome)
	assert.Zero(t, res.Account.InviteCount)
}

func TestStartResetsSessionToMenu(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, db, 1, 2)
	item := int64(1)
	_, err := e.Sessions.Apply(ctx, 5, models.EventOpenItem, &item)
	require.NoError(t, err)

	res, err := e.Start(ctx, 5, "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionMenu, res.Session.State)
	assert.Nil(t, res.Session.ItemID)
}

func TestStartFifthInviteRewardsInviter(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 0)

	var last *StartResult
	for invitee := int64(20); invitee < 25; invitee++ {
		res, err := e.Start(ctx, invitee, "invite_1")
		require.NoError(t, err)
		last = res
	}
	assert.True(t, last.Referral.Rewarded)
	acct := account(t, db, 1)
	assert.Equal(t, int64(1), acct.CoinBalance)
	assert.Zero(t, acct.InviteCount)
}

func TestGrantRejectsUnknownAccount(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Grant(context.Background(), 8, 5, "")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestStartWithoutPayloadRecordsNoReferralMetric(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	before := referralsProcessed(t, string(models.ReferralNone))

	_, err := e.Start(ctx, 30, "")
	require.NoError(t, err)
	_, err = e.Start(ctx, 30, "")
	require.NoError(t, err)
	assert.Equal(t, before, referralsProcessed(t, string(models.ReferralNone)))

	selfBefore := referralsProcessed(t, string(models.ReferralSelf))
	_, err = e.Start(ctx, 31, "invite_31")
	require.NoError(t, err)
	assert.Equal(t, selfBefore+1, referralsProcessed(t, string(models.ReferralSelf)))
}
