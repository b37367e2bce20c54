// Package storage implements the publication and routing stores on
// Postgres. Compare-and-swap status updates and conditional
// delete-on-pull run as single guarded statements; multi-row units run
// in one database transaction. See schema.sql for the tables.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"EditorialPlanner/internal/domain"
	"EditorialPlanner/internal/ports"
)

const (
	uniqueViolation        = "23505"
	slotInstanceConstraint = "idea_routings_slot_instance_idx"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore satisfies both configuration and routing store ports.
type PostgresStore struct {
	db    *sql.DB
	clock ports.Clock
}

var (
	_ ports.RoutingStore     = (*PostgresStore)(nil)
	_ ports.PublicationStore = (*PostgresStore)(nil)
)

// Open connects and pings the database.
func Open(dsn string, clk ports.Clock) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db, clock: clk}, nil
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB, clk ports.Clock) *PostgresStore {
	return &PostgresStore{db: db, clock: clk}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetPublication(ctx context.Context, slug string) (*domain.Publication, error) {
	query, args, err := psql.
		Select("id", "slug", "name", "type", "weekly_target", "unified_with", "is_active").
		From("publications").
		Where(sq.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build publication query: %w", err)
	}

	var p domain.Publication
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&p.ID, &p.Slug, &p.Name, &p.Type, &p.WeeklyTarget, &p.UnifiedWith, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get publication %s: %w", slug, err)
	}
	return &p, nil
}

func (s *PostgresStore) ListActivePublications(ctx context.Context) ([]domain.Publication, error) {
	query, args, err := psql.
		Select("id", "slug", "name", "type", "weekly_target", "unified_with", "is_active").
		From("publications").
		Where(sq.Eq{"is_active": true}).
		OrderBy("slug").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build publications query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()

	var out []domain.Publication
	for rows.Next() {
		var p domain.Publication
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Type, &p.WeeklyTarget, &p.UnifiedWith, &p.IsActive); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListSlots(ctx context.Context, publicationID string) ([]domain.CalendarSlot, error) {
	query, args, err := psql.
		Select("id", "publication_id", "day_of_week", "is_fixed", "fixed_format",
			"fixed_format_name", "preferred_tier", "tier_priority", "is_active").
		From("calendar_slots").
		Where(sq.Eq{"publication_id": publicationID}).
		OrderBy("day_of_week", "tier_priority", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slots query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []domain.CalendarSlot
	for rows.Next() {
		var slot domain.CalendarSlot
		var dow int
		if err := rows.Scan(&slot.ID, &slot.PublicationID, &dow, &slot.IsFixed, &slot.FixedFormat,
			&slot.FixedFormatName, &slot.PreferredTier, &slot.TierPriority, &slot.IsActive); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slot.DayOfWeek = time.Weekday(dow)
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRouting(ctx context.Context, r *domain.IdeaRouting) error {
	if err := r.Validate(); err != nil {
		return err
	}
	now := s.clock.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	scores, err := marshalScores(r.Scores)
	if err != nil {
		return err
	}
	query, args, err := psql.
		Insert("idea_routings").
		Columns("id", "idea_id", "status", "routed_to", "youtube_version", "scores", "tier",
			"calendar_date", "slot_id", "kill_reason", "audience", "time_sensitivity",
			"resource", "estimated_length", "is_foundational", "has_contrarian_angle",
			"created_at", "updated_at").
		Values(r.ID, r.IdeaID, r.Status, r.RoutedTo, r.YouTubeVersion, scores, r.Tier,
			r.CalendarDate, r.SlotID, r.KillReason, r.Audience, r.TimeSensitivity,
			r.Resource, r.EstimatedLength, r.IsFoundational, r.HasContrarianAngle,
			r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build routing insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return translateError(fmt.Sprintf("create routing %s", r.ID), err)
	}
	return nil
}

func (s *PostgresStore) GetRouting(ctx context.Context, id string) (*domain.IdeaRouting, error) {
	return getRouting(ctx, s.db, sq.Eq{"id": id})
}

func (s *PostgresStore) GetRoutingByIdea(ctx context.Context, ideaID string) (*domain.IdeaRouting, error) {
	return getRouting(ctx, s.db, sq.Eq{"idea_id": ideaID})
}

func (s *PostgresStore) TransitionRouting(ctx context.Context, id string, from domain.Status, patch domain.RoutingPatch) error {
	return transitionRouting(ctx, s.db, s.clock.Now(), id, from, patch)
}

func (s *PostgresStore) CreateQueueEntry(ctx context.Context, entry *domain.EvergreenQueueEntry) error {
	return createQueueEntry(ctx, s.db, entry)
}

func (s *PostgresStore) PullQueueEntry(ctx context.Context, entryID string, pulledAt time.Time, forDate *time.Time, reason string) error {
	return pullQueueEntry(ctx, s.db, entryID, pulledAt, forDate, reason)
}

func (s *PostgresStore) PullQueueEntryForRouting(ctx context.Context, routingID string, pulledAt time.Time, reason string) error {
	return pullQueueEntryForRouting(ctx, s.db, routingID, pulledAt, reason)
}

func (s *PostgresStore) ListQueue(ctx context.Context, publicationID string) ([]domain.EvergreenQueueEntry, error) {
	query, args, err := psql.
		Select("id", "idea_routing_id", "publication_id", "tier", "score", "added_at").
		From("evergreen_queue").
		Where(sq.Eq{"publication_id": publicationID}).
		Where("pulled_at IS NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build queue query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var out []domain.EvergreenQueueEntry
	for rows.Next() {
		var e domain.EvergreenQueueEntry
		if err := rows.Scan(&e.ID, &e.IdeaRoutingID, &e.PublicationID, &e.Tier, &e.Score, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListAssignments(ctx context.Context, start, end time.Time) ([]domain.SlotAssignment, error) {
	query, args, err := psql.
		Select("slot_id", "calendar_date", "id").
		From("idea_routings").
		Where("calendar_date IS NOT NULL").
		Where("slot_id <> ''").
		Where(sq.GtOrEq{"calendar_date": domain.Midnight(start)}).
		Where(sq.LtOrEq{"calendar_date": domain.Midnight(end)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build assignments query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.SlotAssignment
	for rows.Next() {
		var a domain.SlotAssignment
		if err := rows.Scan(&a.SlotID, &a.Date, &a.RoutingID); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.Date = domain.Midnight(a.Date)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Atomically runs fn inside one database transaction.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(tx ports.RoutingTx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&pgTx{tx: dbTx, clock: s.clock}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgTx routes the shared statement helpers through one sql.Tx.
type pgTx struct {
	tx    *sql.Tx
	clock ports.Clock
}

func (t *pgTx) GetRouting(ctx context.Context, id string) (*domain.IdeaRouting, error) {
	return getRouting(ctx, t.tx, sq.Eq{"id": id})
}

func (t *pgTx) TransitionRouting(ctx context.Context, id string, from domain.Status, patch domain.RoutingPatch) error {
	return transitionRouting(ctx, t.tx, t.clock.Now(), id, from, patch)
}

func (t *pgTx) CreateQueueEntry(ctx context.Context, entry *domain.EvergreenQueueEntry) error {
	return createQueueEntry(ctx, t.tx, entry)
}

func (t *pgTx) PullQueueEntry(ctx context.Context, entryID string, pulledAt time.Time, forDate *time.Time, reason string) error {
	return pullQueueEntry(ctx, t.tx, entryID, pulledAt, forDate, reason)
}

func (t *pgTx) PullQueueEntryForRouting(ctx context.Context, routingID string, pulledAt time.Time, reason string) error {
	return pullQueueEntryForRouting(ctx, t.tx, routingID, pulledAt, reason)
}

// runner is the common surface of *sql.DB and *sql.Tx the helpers need.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRouting(ctx context.Context, r runner, where sq.Eq) (*domain.IdeaRouting, error) {
	query, args, err := psql.
		Select("id", "idea_id", "status", "routed_to", "youtube_version", "scores", "tier",
			"calendar_date", "slot_id", "kill_reason", "audience", "time_sensitivity",
			"resource", "estimated_length", "is_foundational", "has_contrarian_angle",
			"created_at", "updated_at").
		From("idea_routings").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build routing query: %w", err)
	}

	var (
		out     domain.IdeaRouting
		scores  []byte
		calDate sql.NullTime
	)
	err = r.QueryRowContext(ctx, query, args...).Scan(
		&out.ID, &out.IdeaID, &out.Status, &out.RoutedTo, &out.YouTubeVersion, &scores, &out.Tier,
		&calDate, &out.SlotID, &out.KillReason, &out.Audience, &out.TimeSensitivity,
		&out.Resource, &out.EstimatedLength, &out.IsFoundational, &out.HasContrarianAngle,
		&out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("routing %v: %w", where, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get routing: %w", err)
	}
	if calDate.Valid {
		d := domain.Midnight(calDate.Time)
		out.CalendarDate = &d
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &out.Scores); err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", out.ID, err)
		}
	}
	return &out, nil
}

// transitionRouting is the compare-and-swap: the update is guarded on
// the expected status, so a routing that moved on affects zero rows.
// The domain contract is checked against a pre-read of the row; the
// guarded update alone decides the race.
func transitionRouting(ctx context.Context, r runner, now time.Time, id string, from domain.Status, patch domain.RoutingPatch) error {
	current, err := getRouting(ctx, r, sq.Eq{"id": id})
	if err != nil {
		return err
	}
	if current.Status != from {
		return &domain.TransitionError{From: current.Status, To: patch.Status}
	}
	if !domain.CanTransition(from, patch.Status) {
		return &domain.TransitionError{From: from, To: patch.Status}
	}
	next := current.Clone()
	patch.Apply(next, now)
	if err := next.Validate(); err != nil {
		return err
	}

	update := psql.Update("idea_routings").
		Set("status", patch.Status).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": from})

	if patch.RoutedTo != nil {
		update = update.Set("routed_to", *patch.RoutedTo)
	}
	if patch.Scores != nil {
		scores, err := marshalScores(patch.Scores)
		if err != nil {
			return err
		}
		update = update.Set("scores", scores)
	}
	if patch.Tier != nil {
		update = update.Set("tier", *patch.Tier)
	}
	if patch.CalendarDate != nil {
		update = update.Set("calendar_date", domain.Midnight(*patch.CalendarDate))
	}
	if patch.ClearCalendarDate {
		update = update.Set("calendar_date", nil)
	}
	if patch.SlotID != nil {
		update = update.Set("slot_id", *patch.SlotID)
	}
	if patch.ClearSlotID {
		update = update.Set("slot_id", "")
	}
	if patch.KillReason != nil {
		update = update.Set("kill_reason", *patch.KillReason)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build transition update: %w", err)
	}
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(fmt.Sprintf("transition routing %s", id), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition routing %s: %w", id, err)
	}
	if affected == 0 {
		current, getErr := getRouting(ctx, r, sq.Eq{"id": id})
		if getErr != nil {
			return getErr
		}
		return &domain.TransitionError{From: current.Status, To: patch.Status}
	}
	return nil
}

func createQueueEntry(ctx context.Context, r runner, entry *domain.EvergreenQueueEntry) error {
	if !entry.Tier.Schedulable() {
		return fmt.Errorf("queue entry for %s: tier %q is not schedulable", entry.IdeaRoutingID, entry.Tier)
	}
	query, args, err := psql.
		Insert("evergreen_queue").
		Columns("id", "idea_routing_id", "publication_id", "tier", "score", "added_at", "pulled_reason").
		Values(entry.ID, entry.IdeaRoutingID, entry.PublicationID, entry.Tier, entry.Score, entry.AddedAt, "").
		ToSql()
	if err != nil {
		return fmt.Errorf("build queue insert: %w", err)
	}
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return translateError(fmt.Sprintf("create queue entry %s", entry.ID), err)
	}
	return nil
}

// pullQueueEntry is the conditional delete-on-pull: guarding on
// pulled_at IS NULL means exactly one concurrent puller wins.
func pullQueueEntry(ctx context.Context, r runner, entryID string, pulledAt time.Time, forDate *time.Time, reason string) error {
	update := psql.Update("evergreen_queue").
		Set("pulled_at", pulledAt).
		Set("pulled_reason", reason).
		Where(sq.Eq{"id": entryID}).
		Where("pulled_at IS NULL")
	if forDate != nil {
		update = update.Set("pulled_for_date", domain.Midnight(*forDate))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build pull update: %w", err)
	}
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pull queue entry %s: %w", entryID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pull queue entry %s: %w", entryID, err)
	}
	if affected == 0 {
		var exists bool
		probe, probeArgs, buildErr := psql.
			Select("TRUE").From("evergreen_queue").Where(sq.Eq{"id": entryID}).ToSql()
		if buildErr != nil {
			return fmt.Errorf("build pull probe: %w", buildErr)
		}
		err := r.QueryRowContext(ctx, probe, probeArgs...).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("queue entry %s: %w", entryID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("pull queue entry %s: %w", entryID, err)
		}
		return fmt.Errorf("queue entry %s already pulled: %w", entryID, domain.ErrConflict)
	}
	return nil
}

func pullQueueEntryForRouting(ctx context.Context, r runner, routingID string, pulledAt time.Time, reason string) error {
	query, args, err := psql.Update("evergreen_queue").
		Set("pulled_at", pulledAt).
		Set("pulled_reason", reason).
		Where(sq.Eq{"idea_routing_id": routingID}).
		Where("pulled_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build pull update: %w", err)
	}
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pull queue entry for routing %s: %w", routingID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pull queue entry for routing %s: %w", routingID, err)
	}
	if affected == 0 {
		return fmt.Errorf("no active queue entry for routing %s: %w", routingID, domain.ErrNotFound)
	}
	return nil
}

func marshalScores(scores domain.ScoreSet) ([]byte, error) {
	if scores == nil {
		return nil, nil
	}
	out, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	return out, nil
}

func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		if pqErr.Constraint == slotInstanceConstraint {
			return fmt.Errorf("%s: %w", op, domain.ErrSlotAlreadyFilled)
		}
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
