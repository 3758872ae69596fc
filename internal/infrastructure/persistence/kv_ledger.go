package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

// kvReader/kvWriter минимальный интерфейс ключ-значение, поверх которого
// работают in-memory и pebble реализации леджера.
type kvReader interface {
	get(key string) ([]byte, bool, error)
	// scan обходит ключи с префиксом в лексикографическом порядке.
	scan(prefix string, fn func(key string, value []byte) error) error
}

type kvWriter interface {
	kvReader
	set(key string, value []byte) error
}

const (
	prefixListing        = "listing/"
	prefixOrder          = "order/"
	prefixEscrow         = "escrow/"
	prefixDispute        = "dispute/"
	prefixMilestone      = "milestone/"
	prefixMilestoneOrder = "milestone-order/"
	prefixReview         = "review/"
	prefixProfile        = "profile/"
	prefixAccount        = "account/"
)

func listingKey(id uuid.UUID) string  { return prefixListing + id.String() }
func orderKey(id uuid.UUID) string    { return prefixOrder + id.String() }
func escrowKey(orderID uuid.UUID) string {
	return prefixEscrow + orderID.String()
}
func disputeKey(orderID uuid.UUID) string { return prefixDispute + orderID.String() }
func milestoneKey(orderID uuid.UUID, position int, id uuid.UUID) string {
	return fmt.Sprintf("%s%s/%04d/%s", prefixMilestone, orderID, position, id)
}
func reviewKey(orderID, reviewer uuid.UUID) string {
	return prefixReview + orderID.String() + "/" + reviewer.String()
}
func profileKey(userID uuid.UUID) string  { return prefixProfile + userID.String() }
func accountKey(account uuid.UUID) string { return prefixAccount + account.String() }

type versioned struct {
	Version int64
}

func getRecord[T any](r kvReader, key string, notFound error) (*T, error) {
	raw, ok, err := r.get(key)
	if err != nil {
		return nil, fmt.Errorf("kv: чтение %s: %w", key, err)
	}
	if !ok {
		return nil, notFound
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("kv: декодирование %s: %w", key, err)
	}
	return &v, nil
}

func putRecord(w kvWriter, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: кодирование %s: %w", key, err)
	}
	if err := w.set(key, raw); err != nil {
		return fmt.Errorf("kv: запись %s: %w", key, err)
	}
	return nil
}

func insertRecord(w kvWriter, key string, v any, exists error) error {
	_, ok, err := w.get(key)
	if err != nil {
		return fmt.Errorf("kv: чтение %s: %w", key, err)
	}
	if ok {
		return exists
	}
	return putRecord(w, key, v)
}

// updateRecord сверяет версию с сохранённой и записывает запись со следующей версией.
func updateRecord(w kvWriter, key string, version *int64, v any, notFound error) error {
	current, err := getRecord[versioned](w, key, notFound)
	if err != nil {
		return err
	}
	if current.Version != *version {
		return apperror.ErrVersionConflict
	}
	*version++
	if err := putRecord(w, key, v); err != nil {
		*version--
		return err
	}
	return nil
}

type kvTx struct {
	store kvWriter
}

var _ repository.LedgerTx = (*kvTx)(nil)

func (t *kvTx) GetListing(ctx context.Context, id uuid.UUID) (*entity.Listing, error) {
	return getRecord[entity.Listing](t.store, listingKey(id), apperror.ErrListingNotFound)
}

func (t *kvTx) InsertListing(ctx context.Context, listing *entity.Listing) error {
	listing.Version = 1
	return insertRecord(t.store, listingKey(listing.ID), listing, apperror.New(apperror.ErrCodeConflict, "объявление уже существует"))
}

func (t *kvTx) UpdateListing(ctx context.Context, listing *entity.Listing) error {
	return updateRecord(t.store, listingKey(listing.ID), &listing.Version, listing, apperror.ErrListingNotFound)
}

func (t *kvTx) ListListingsByOwner(ctx context.Context, owner uuid.UUID, page repository.Page) ([]*entity.Listing, error) {
	var out []*entity.Listing
	err := t.store.scan(prefixListing, func(key string, value []byte) error {
		var l entity.Listing
		if err := json.Unmarshal(value, &l); err != nil {
			return fmt.Errorf("kv: декодирование %s: %w", key, err)
		}
		if l.Owner == owner {
			out = append(out, &l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (t *kvTx) GetOrder(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return getRecord[entity.Order](t.store, orderKey(id), apperror.ErrOrderNotFound)
}

func (t *kvTx) InsertOrder(ctx context.Context, order *entity.Order) error {
	order.Version = 1
	return insertRecord(t.store, orderKey(order.ID), order, apperror.New(apperror.ErrCodeConflict, "заказ уже существует"))
}

func (t *kvTx) UpdateOrder(ctx context.Context, order *entity.Order) error {
	return updateRecord(t.store, orderKey(order.ID), &order.Version, order, apperror.ErrOrderNotFound)
}

func (t *kvTx) ListOrdersByParty(ctx context.Context, party uuid.UUID, page repository.Page) ([]*entity.Order, error) {
	var out []*entity.Order
	err := t.store.scan(prefixOrder, func(key string, value []byte) error {
		var o entity.Order
		if err := json.Unmarshal(value, &o); err != nil {
			return fmt.Errorf("kv: декодирование %s: %w", key, err)
		}
		if o.IsParty(party) {
			out = append(out, &o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (t *kvTx) GetEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Escrow, error) {
	return getRecord[entity.Escrow](t.store, escrowKey(orderID), apperror.ErrEscrowNotFound)
}

func (t *kvTx) InsertEscrow(ctx context.Context, escrow *entity.Escrow) error {
	escrow.Version = 1
	return insertRecord(t.store, escrowKey(escrow.OrderID), escrow, apperror.New(apperror.ErrCodeConflict, "эскроу для заказа уже существует"))
}

func (t *kvTx) UpdateEscrow(ctx context.Context, escrow *entity.Escrow) error {
	return updateRecord(t.store, escrowKey(escrow.OrderID), &escrow.Version, escrow, apperror.ErrEscrowNotFound)
}

func (t *kvTx) GetDisputeByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	return getRecord[entity.Dispute](t.store, disputeKey(orderID), apperror.ErrDisputeNotFound)
}

func (t *kvTx) InsertDispute(ctx context.Context, dispute *entity.Dispute) error {
	dispute.Version = 1
	return insertRecord(t.store, disputeKey(dispute.OrderID), dispute, apperror.ErrDisputeAlreadyExists)
}

func (t *kvTx) UpdateDispute(ctx context.Context, dispute *entity.Dispute) error {
	return updateRecord(t.store, disputeKey(dispute.OrderID), &dispute.Version, dispute, apperror.ErrDisputeNotFound)
}

func (t *kvTx) GetMilestone(ctx context.Context, id uuid.UUID) (*entity.Milestone, error) {
	raw, ok, err := t.store.get(prefixMilestoneOrder + id.String())
	if err != nil {
		return nil, fmt.Errorf("kv: чтение индекса этапа: %w", err)
	}
	if !ok {
		return nil, apperror.ErrMilestoneNotFound
	}
	return getRecord[entity.Milestone](t.store, string(raw), apperror.ErrMilestoneNotFound)
}

func (t *kvTx) ListMilestones(ctx context.Context, orderID uuid.UUID) ([]*entity.Milestone, error) {
	var out []*entity.Milestone
	err := t.store.scan(prefixMilestone+orderID.String()+"/", func(key string, value []byte) error {
		var m entity.Milestone
		if err := json.Unmarshal(value, &m); err != nil {
			return fmt.Errorf("kv: декодирование %s: %w", key, err)
		}
		out = append(out, &m)
		return nil
	})
	return out, err
}

func (t *kvTx) InsertMilestone(ctx context.Context, milestone *entity.Milestone) error {
	key := milestoneKey(milestone.OrderID, milestone.Position, milestone.ID)
	milestone.Version = 1
	if err := insertRecord(t.store, key, milestone, apperror.New(apperror.ErrCodeConflict, "этап уже существует")); err != nil {
		return err
	}
	return t.store.set(prefixMilestoneOrder+milestone.ID.String(), []byte(key))
}

func (t *kvTx) UpdateMilestone(ctx context.Context, milestone *entity.Milestone) error {
	key := milestoneKey(milestone.OrderID, milestone.Position, milestone.ID)
	return updateRecord(t.store, key, &milestone.Version, milestone, apperror.ErrMilestoneNotFound)
}

func (t *kvTx) InsertReview(ctx context.Context, review *entity.Review) error {
	return insertRecord(t.store, reviewKey(review.OrderID, review.Reviewer), review, apperror.ErrReviewAlreadyExists)
}

func (t *kvTx) ListReviewsByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.Review, error) {
	var out []*entity.Review
	err := t.store.scan(prefixReview+orderID.String()+"/", func(key string, value []byte) error {
		var r entity.Review
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("kv: декодирование %s: %w", key, err)
		}
		out = append(out, &r)
		return nil
	})
	return out, err
}

func (t *kvTx) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	return getRecord[entity.Profile](t.store, profileKey(userID), apperror.ErrProfileNotFound)
}

func (t *kvTx) SaveProfile(ctx context.Context, profile *entity.Profile) error {
	if profile.Version == 0 {
		profile.Version = 1
		return insertRecord(t.store, profileKey(profile.UserID), profile, apperror.ErrVersionConflict)
	}
	return updateRecord(t.store, profileKey(profile.UserID), &profile.Version, profile, apperror.ErrProfileNotFound)
}

func (t *kvTx) Balance(ctx context.Context, account uuid.UUID) (valueobject.Amount, error) {
	raw, ok, err := t.store.get(accountKey(account))
	if err != nil {
		return 0, fmt.Errorf("kv: чтение счёта: %w", err)
	}
	if !ok {
		return 0, nil
	}
	var balance valueobject.Amount
	if err := json.Unmarshal(raw, &balance); err != nil {
		return 0, fmt.Errorf("kv: декодирование счёта: %w", err)
	}
	return balance, nil
}

func (t *kvTx) setBalance(account uuid.UUID, balance valueobject.Amount) error {
	return putRecord(t.store, accountKey(account), balance)
}

func (t *kvTx) Credit(ctx context.Context, account uuid.UUID, amount valueobject.Amount) error {
	if amount == 0 {
		return apperror.Validation("сумма пополнения должна быть положительной")
	}
	balance, err := t.Balance(ctx, account)
	if err != nil {
		return err
	}
	next, err := valueobject.CheckedAdd(balance, amount)
	if err != nil {
		return err
	}
	return t.setBalance(account, next)
}

func (t *kvTx) Deposit(ctx context.Context, source, escrowID uuid.UUID, amount valueobject.Amount) error {
	return t.move(ctx, source, escrowID, amount)
}

func (t *kvTx) Transfer(ctx context.Context, escrowID, destination uuid.UUID, amount valueobject.Amount) error {
	return t.move(ctx, escrowID, destination, amount)
}

func (t *kvTx) move(ctx context.Context, from, to uuid.UUID, amount valueobject.Amount) error {
	if amount == 0 {
		return nil
	}
	fromBalance, err := t.Balance(ctx, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return apperror.ErrInsufficientFunds
	}
	toBalance, err := t.Balance(ctx, to)
	if err != nil {
		return err
	}
	nextTo, err := valueobject.CheckedAdd(toBalance, amount)
	if err != nil {
		return err
	}
	if err := t.setBalance(from, fromBalance-amount); err != nil {
		return err
	}
	return t.setBalance(to, nextTo)
}

// autoReleaseCandidates общий для kv-леджеров отбор эскроу для автовыплаты.
func autoReleaseCandidates(r kvReader, now time.Time, limit int) ([]uuid.UUID, error) {
	var out []uuid.UUID
	errStop := errors.New("stop")

	err := r.scan(prefixEscrow, func(key string, value []byte) error {
		var e entity.Escrow
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("kv: декодирование %s: %w", key, err)
		}
		if !e.CanAutoRelease(now) {
			return nil
		}
		o, err := getRecord[entity.Order](r, orderKey(e.OrderID), apperror.ErrOrderNotFound)
		if err != nil {
			return err
		}
		if !o.Status.IsActive() {
			return nil
		}
		out = append(out, e.OrderID)
		if limit > 0 && len(out) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return out, nil
}

func paginate[T any](items []T, page repository.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

// prefixEnd верхняя граница для итерации по префиксу.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

func hasPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}
