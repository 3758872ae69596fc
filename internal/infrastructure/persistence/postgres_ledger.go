package persistence

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/repository/common"
)

// PostgresLedger леджер на PostgreSQL. Записи читаются внутри транзакции
// с FOR UPDATE, обновления сверяют version.
type PostgresLedger struct {
	db *sqlx.DB
}

var _ repository.Ledger = (*PostgresLedger)(nil)

func NewPostgresLedger(db *sqlx.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	return common.WithTransaction(ctx, l.db, func(tx *sqlx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (l *PostgresLedger) ListAutoReleaseCandidates(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT e.order_id
		FROM escrows e
		JOIN orders o ON o.id = e.order_id
		WHERE e.status = 'funded'
		  AND e.auto_release_enabled
		  AND NOT e.locked
		  AND e.funded_at IS NOT NULL
		  AND e.released_at IS NULL
		  AND e.refunded_at IS NULL
		  AND e.dispute_deadline < $1
		  AND o.status IN ('accepted', 'in_progress', 'delivered')
		ORDER BY e.dispute_deadline
		LIMIT $2
	`
	if limit <= 0 {
		limit = 100
	}
	var ids []uuid.UUID
	if err := l.db.SelectContext(ctx, &ids, query, now, limit); err != nil {
		return nil, fmt.Errorf("ledger: auto release candidates: %w", err)
	}
	return ids, nil
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

type pgTx struct {
	tx *sqlx.Tx
}

var _ repository.LedgerTx = (*pgTx)(nil)

const listingColumns = `id, owner_id, title, description, price, delivery_time_seconds, max_revisions, active,
	total_orders, completed_orders, rating_sum, rating_count, created_at, updated_at, version`

func (t *pgTx) GetListing(ctx context.Context, id uuid.UUID) (*entity.Listing, error) {
	row, err := common.GetOne[listingRow](ctx, t.tx, apperror.ErrListingNotFound,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (t *pgTx) InsertListing(ctx context.Context, listing *entity.Listing) error {
	listing.Version = 1
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES (:id, :owner_id, :title, :description, :price, :delivery_time_seconds, :max_revisions, :active,
		        :total_orders, :completed_orders, :rating_sum, :rating_count, :created_at, :updated_at, :version)
	`
	if _, err := t.tx.NamedExecContext(ctx, query, newListingRow(listing)); err != nil {
		return fmt.Errorf("ledger: insert listing: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateListing(ctx context.Context, listing *entity.Listing) error {
	query := `
		UPDATE listings SET
			title = :title, description = :description, price = :price,
			delivery_time_seconds = :delivery_time_seconds, max_revisions = :max_revisions, active = :active,
			total_orders = :total_orders, completed_orders = :completed_orders,
			rating_sum = :rating_sum, rating_count = :rating_count,
			updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`
	return t.namedUpdate(ctx, query, newListingRow(listing), &listing.Version)
}

func (t *pgTx) ListListingsByOwner(ctx context.Context, owner uuid.UUID, page repository.Page) ([]*entity.Listing, error) {
	page = page.Normalize()
	var rows []listingRow
	query := `SELECT ` + listingColumns + ` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := t.tx.SelectContext(ctx, &rows, query, owner, page.Limit, page.Offset); err != nil {
		return nil, fmt.Errorf("ledger: list listings: %w", err)
	}
	out := make([]*entity.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

const orderColumns = `id, listing_id, buyer_id, seller_id, amount, status, requirements, delivery_notes, delivery_files,
	deadline, revision_count, max_revisions, milestone_count, completed_milestones,
	buyer_rating, buyer_review, seller_rating, seller_review, arbiter_id, pre_dispute_status,
	created_at, accepted_at, started_at, delivered_at, completed_at, cancelled_at, disputed_at, resolved_at,
	updated_at, version`

func (t *pgTx) GetOrder(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	row, err := common.GetOne[orderRow](ctx, t.tx, apperror.ErrOrderNotFound,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order *entity.Order) error {
	order.Version = 1
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (:id, :listing_id, :buyer_id, :seller_id, :amount, :status, :requirements, :delivery_notes, :delivery_files,
		        :deadline, :revision_count, :max_revisions, :milestone_count, :completed_milestones,
		        :buyer_rating, :buyer_review, :seller_rating, :seller_review, :arbiter_id, :pre_dispute_status,
		        :created_at, :accepted_at, :started_at, :delivered_at, :completed_at, :cancelled_at, :disputed_at, :resolved_at,
		        :updated_at, :version)
	`
	if _, err := t.tx.NamedExecContext(ctx, query, newOrderRow(order)); err != nil {
		return fmt.Errorf("ledger: insert order: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, order *entity.Order) error {
	query := `
		UPDATE orders SET
			status = :status, delivery_notes = :delivery_notes, delivery_files = :delivery_files,
			revision_count = :revision_count, completed_milestones = :completed_milestones,
			buyer_rating = :buyer_rating, buyer_review = :buyer_review,
			seller_rating = :seller_rating, seller_review = :seller_review,
			arbiter_id = :arbiter_id, pre_dispute_status = :pre_dispute_status,
			accepted_at = :accepted_at, started_at = :started_at, delivered_at = :delivered_at,
			completed_at = :completed_at, cancelled_at = :cancelled_at, disputed_at = :disputed_at,
			resolved_at = :resolved_at, updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`
	return t.namedUpdate(ctx, query, newOrderRow(order), &order.Version)
}

func (t *pgTx) ListOrdersByParty(ctx context.Context, party uuid.UUID, page repository.Page) ([]*entity.Order, error) {
	page = page.Normalize()
	var rows []orderRow
	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := t.tx.SelectContext(ctx, &rows, query, party, page.Limit, page.Offset); err != nil {
		return nil, fmt.Errorf("ledger: list orders: %w", err)
	}
	out := make([]*entity.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

const escrowColumns = `id, order_id, buyer_id, seller_id, status, gross_amount, amount, fee_rate_bps,
	platform_fee, seller_net, buyer_refunded, released_amount, dispute_deadline, auto_release_enabled, locked,
	funded_at, released_at, refunded_at, updated_at, version`

func (t *pgTx) GetEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Escrow, error) {
	row, err := common.GetOne[escrowRow](ctx, t.tx, apperror.ErrEscrowNotFound,
		`SELECT `+escrowColumns+` FROM escrows WHERE order_id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (t *pgTx) InsertEscrow(ctx context.Context, escrow *entity.Escrow) error {
	escrow.Version = 1
	query := `
		INSERT INTO escrows (` + escrowColumns + `)
		VALUES (:id, :order_id, :buyer_id, :seller_id, :status, :gross_amount, :amount, :fee_rate_bps,
		        :platform_fee, :seller_net, :buyer_refunded, :released_amount, :dispute_deadline, :auto_release_enabled, :locked,
		        :funded_at, :released_at, :refunded_at, :updated_at, :version)
	`
	if _, err := t.tx.NamedExecContext(ctx, query, newEscrowRow(escrow)); err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.New(apperror.ErrCodeConflict, "эскроу для заказа уже существует")
		}
		return fmt.Errorf("ledger: insert escrow: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateEscrow(ctx context.Context, escrow *entity.Escrow) error {
	query := `
		UPDATE escrows SET
			status = :status, gross_amount = :gross_amount, amount = :amount, fee_rate_bps = :fee_rate_bps,
			platform_fee = :platform_fee, seller_net = :seller_net, buyer_refunded = :buyer_refunded,
			released_amount = :released_amount, dispute_deadline = :dispute_deadline,
			auto_release_enabled = :auto_release_enabled, locked = :locked,
			funded_at = :funded_at, released_at = :released_at, refunded_at = :refunded_at,
			updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`
	return t.namedUpdate(ctx, query, newEscrowRow(escrow), &escrow.Version)
}

const disputeColumns = `id, order_id, raised_by, reason, description, evidence, status, arbiter_id, resolution,
	refund_percentage, buyer_refund, seller_payout, platform_fee_refund,
	opened_at, review_started_at, resolved_at, updated_at, version`

func (t *pgTx) GetDisputeByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error) {
	row, err := common.GetOne[disputeRow](ctx, t.tx, apperror.ErrDisputeNotFound,
		`SELECT `+disputeColumns+` FROM disputes WHERE order_id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (t *pgTx) InsertDispute(ctx context.Context, dispute *entity.Dispute) error {
	dispute.Version = 1
	query := `
		INSERT INTO disputes (` + disputeColumns + `)
		VALUES (:id, :order_id, :raised_by, :reason, :description, :evidence, :status, :arbiter_id, :resolution,
		        :refund_percentage, :buyer_refund, :seller_payout, :platform_fee_refund,
		        :opened_at, :review_started_at, :resolved_at, :updated_at, :version)
	`
	if _, err := t.tx.NamedExecContext(ctx, query, newDisputeRow(dispute)); err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.ErrDisputeAlreadyExists
		}
		return fmt.Errorf("ledger: insert dispute: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateDispute(ctx context.Context, dispute *entity.Dispute) error {
	query := `
		UPDATE disputes SET
			status = :status, arbiter_id = :arbiter_id, resolution = :resolution,
			refund_percentage = :refund_percentage, buyer_refund = :buyer_refund,
			seller_payout = :seller_payout, platform_fee_refund = :platform_fee_refund,
			review_started_at = :review_started_at, resolved_at = :resolved_at,
			updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`
	return t.namedUpdate(ctx, query, newDisputeRow(dispute), &dispute.Version)
}

const milestoneColumns = `id, order_id, position, title, description, amount, status, due_date,
	deliverable, rejection_reason, started_at, submitted_at, approved_at, created_at, updated_at, version`

func (t *pgTx) GetMilestone(ctx context.Context, id uuid.UUID) (*entity.Milestone, error) {
	row, err := common.GetOne[milestoneRow](ctx, t.tx, apperror.ErrMilestoneNotFound,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (t *pgTx) ListMilestones(ctx context.Context, orderID uuid.UUID) ([]*entity.Milestone, error) {
	var rows []milestoneRow
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE order_id = $1 ORDER BY position`
	if err := t.tx.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("ledger: list milestones: %w", err)
	}
	out := make([]*entity.Milestone, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

func (t *pgTx) InsertMilestone(ctx context.Context, milestone *entity.Milestone) error {
	milestone.Version = 1
	query := `
		INSERT INTO milestones (` + milestoneColumns + `)
		VALUES (:id, :order_id, :position, :title, :description, :amount, :status, :due_date,
		        :deliverable, :rejection_reason, :started_at, :submitted_at, :approved_at, :created_at, :updated_at, :version)
	`
	if _, err := t.tx.NamedExecContext(ctx, query, newMilestoneRow(milestone)); err != nil {
		return fmt.Errorf("ledger: insert milestone: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateMilestone(ctx context.Context, milestone *entity.Milestone) error {
	query := `
		UPDATE milestones SET
			status = :status, deliverable = :deliverable, rejection_reason = :rejection_reason,
			started_at = :started_at, submitted_at = :submitted_at, approved_at = :approved_at,
			updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`
	return t.namedUpdate(ctx, query, newMilestoneRow(milestone), &milestone.Version)
}

func (t *pgTx) InsertReview(ctx context.Context, review *entity.Review) error {
	query := `
		INSERT INTO reviews (id, order_id, reviewer_id, reviewee_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.ExecContext(ctx, query, review.ID, review.OrderID, review.Reviewer, review.Reviewee,
		review.Rating, review.Comment, review.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.ErrReviewAlreadyExists
		}
		return fmt.Errorf("ledger: insert review: %w", err)
	}
	return nil
}

func (t *pgTx) ListReviewsByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.Review, error) {
	var rows []reviewRow
	query := `
		SELECT id, order_id, reviewer_id, reviewee_id, rating, comment, created_at
		FROM reviews WHERE order_id = $1 ORDER BY created_at
	`
	if err := t.tx.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("ledger: list reviews: %w", err)
	}
	out := make([]*entity.Review, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

const profileColumns = `user_id, completed_orders, total_reviews, rating_sum, average_rating, total_earnings, updated_at, version`

func (t *pgTx) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	row, err := common.GetOne[profileRow](ctx, t.tx, apperror.ErrProfileNotFound,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (t *pgTx) SaveProfile(ctx context.Context, profile *entity.Profile) error {
	if profile.Version == 0 {
		profile.Version = 1
		query := `
			INSERT INTO profiles (` + profileColumns + `)
			VALUES (:user_id, :completed_orders, :total_reviews, :rating_sum, :average_rating, :total_earnings, :updated_at, :version)
		`
		if _, err := t.tx.NamedExecContext(ctx, query, newProfileRow(profile)); err != nil {
			profile.Version = 0
			if common.IsUniqueViolation(err) {
				return apperror.ErrVersionConflict
			}
			return fmt.Errorf("ledger: insert profile: %w", err)
		}
		return nil
	}

	query := `
		UPDATE profiles SET
			completed_orders = :completed_orders, total_reviews = :total_reviews, rating_sum = :rating_sum,
			average_rating = :average_rating, total_earnings = :total_earnings,
			updated_at = :updated_at, version = version + 1
		WHERE user_id = :user_id AND version = :version
	`
	return t.namedUpdate(ctx, query, newProfileRow(profile), &profile.Version)
}

// namedUpdate выполняет UPDATE со сверкой версии. Ноль затронутых строк
// означает, что запись изменили параллельно.
func (t *pgTx) namedUpdate(ctx context.Context, query string, row any, version *int64) error {
	res, err := t.tx.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("ledger: update: %w", err)
	}
	if err := common.ExpectOneRow(res, apperror.ErrVersionConflict); err != nil {
		return err
	}
	*version++
	return nil
}

func (t *pgTx) Balance(ctx context.Context, account uuid.UUID) (valueobject.Amount, error) {
	var balance numeric
	err := t.tx.GetContext(ctx, &balance,
		`SELECT COALESCE((SELECT balance FROM custody_accounts WHERE id = $1), 0)`, account)
	if err != nil {
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return valueobject.Amount(balance), nil
}

func (t *pgTx) Credit(ctx context.Context, account uuid.UUID, amount valueobject.Amount) error {
	if amount == 0 {
		return apperror.Validation("сумма пополнения должна быть положительной")
	}
	balances, err := t.lockAccounts(ctx, account)
	if err != nil {
		return err
	}
	next, err := valueobject.CheckedAdd(balances[account], amount)
	if err != nil {
		return err
	}
	if err := t.setBalance(ctx, account, next); err != nil {
		return err
	}
	return t.journal(ctx, "credit", nil, account, amount)
}

func (t *pgTx) Deposit(ctx context.Context, source, escrowID uuid.UUID, amount valueobject.Amount) error {
	return t.move(ctx, "deposit", source, escrowID, amount)
}

func (t *pgTx) Transfer(ctx context.Context, escrowID, destination uuid.UUID, amount valueobject.Amount) error {
	return t.move(ctx, "transfer", escrowID, destination, amount)
}

func (t *pgTx) move(ctx context.Context, kind string, from, to uuid.UUID, amount valueobject.Amount) error {
	if amount == 0 {
		return nil
	}
	balances, err := t.lockAccounts(ctx, from, to)
	if err != nil {
		return err
	}
	if balances[from] < amount {
		return apperror.ErrInsufficientFunds
	}
	nextTo, err := valueobject.CheckedAdd(balances[to], amount)
	if err != nil {
		return err
	}
	if err := t.setBalance(ctx, from, balances[from]-amount); err != nil {
		return err
	}
	if err := t.setBalance(ctx, to, nextTo); err != nil {
		return err
	}
	return t.journal(ctx, kind, &from, to, amount)
}

// lockAccounts создаёт недостающие счета и блокирует их в порядке id,
// чтобы встречные переводы не взаимоблокировались.
func (t *pgTx) lockAccounts(ctx context.Context, accounts ...uuid.UUID) (map[uuid.UUID]valueobject.Amount, error) {
	if len(accounts) == 2 && bytes.Compare(accounts[0][:], accounts[1][:]) > 0 {
		accounts[0], accounts[1] = accounts[1], accounts[0]
	}
	balances := make(map[uuid.UUID]valueobject.Amount, len(accounts))
	for _, id := range accounts {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO custody_accounts (id, balance) VALUES ($1, 0) ON CONFLICT (id) DO NOTHING`, id); err != nil {
			return nil, fmt.Errorf("ledger: ensure account: %w", err)
		}
		var balance numeric
		if err := t.tx.GetContext(ctx, &balance,
			`SELECT balance FROM custody_accounts WHERE id = $1 FOR UPDATE`, id); err != nil {
			return nil, fmt.Errorf("ledger: lock account: %w", err)
		}
		balances[id] = valueobject.Amount(balance)
	}
	return balances, nil
}

func (t *pgTx) setBalance(ctx context.Context, account uuid.UUID, balance valueobject.Amount) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE custody_accounts SET balance = $2, updated_at = NOW() WHERE id = $1`, account, numeric(balance))
	if err != nil {
		return fmt.Errorf("ledger: set balance: %w", err)
	}
	return nil
}

func (t *pgTx) journal(ctx context.Context, kind string, from *uuid.UUID, to uuid.UUID, amount valueobject.Amount) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO custody_entries (kind, from_account, to_account, amount) VALUES ($1, $2, $3, $4)`,
		kind, from, to, numeric(amount))
	if err != nil {
		return fmt.Errorf("ledger: journal: %w", err)
	}
	return nil
}
