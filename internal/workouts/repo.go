package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/ironlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrSetNotFound = errors.New("workout set not found")

// SetParams filter the sets returned by the repo. OwnerID is mandatory,
// everything else is optional. Soft-deleted rows are never returned.
type SetParams struct {
	OwnerID     string
	Exercise    string
	MuscleGroup string
	From        *time.Time
	To          *time.Time
}

type ListParams struct {
	SetParams
	Page int
	Size int
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, set Set) (_ *Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO workout_set
				(owner_id, exercise, muscle_group, weight, reps, timestamp, deleted)
				VALUES ($1, $2, $3, $4, $5, $6, FALSE)
			RETURNING id;`,
		set.OwnerID, set.Exercise, set.MuscleGroup, set.Weight, set.Reps, set.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("set.id", id))

	set.ID = id
	return &set, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, owner_id, exercise, muscle_group, weight, reps, timestamp, deleted
			FROM workout_set
			WHERE id = $1 AND deleted IS FALSE;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sets, err := r.rows2sets(rows)
	if err != nil {
		return nil, err
	}

	if len(sets) != 1 {
		return nil, ErrSetNotFound
	}

	return &sets[0], nil
}

func (r *Repo) Update(ctx context.Context, set *Set) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", set.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout_set
			SET exercise = $1, muscle_group = $2, weight = $3, reps = $4, timestamp = $5
			WHERE id = $6 AND owner_id = $7 AND deleted IS FALSE;`,
		set.Exercise, set.MuscleGroup, set.Weight, set.Reps, set.Timestamp, set.ID, set.OwnerID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrSetNotFound
	}

	return nil
}

// Delete marks a set as deleted. The row stays in storage, but no query of
// this repo returns it anymore.
func (r *Repo) Delete(ctx context.Context, id int, ownerID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout_set SET deleted = TRUE WHERE id = $1 AND owner_id = $2 AND deleted IS FALSE;`,
		id, ownerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSetNotFound
	}
	return nil
}

// ListAll returns all live sets of an owner matching the given filters,
// newest first.
func (r *Repo) ListAll(ctx context.Context, params SetParams) (_ []Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("owner_id", params.OwnerID))
	span.SetAttributes(attribute.String("exercise", params.Exercise))
	span.SetAttributes(attribute.String("muscle_group", params.MuscleGroup))
	if params.From != nil {
		span.SetAttributes(attribute.String("from", params.From.String()))
	}
	if params.To != nil {
		span.SetAttributes(attribute.String("to", params.To.String()))
	}

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, owner_id, exercise, muscle_group, weight, reps, timestamp, deleted
			FROM workout_set
				WHERE owner_id = $1
				AND deleted IS FALSE
				AND ($2::text = '' OR exercise = $2)
				AND ($3::text = '' OR muscle_group = $3)
				AND ($4::timestamptz IS NULL OR timestamp >= $4)
				AND ($5::timestamptz IS NULL OR timestamp <= $5)
			ORDER BY timestamp DESC;`,
		params.OwnerID, params.Exercise, params.MuscleGroup,
		params.From, params.To,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	sets, err := r.rows2sets(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2sets: %w", err)
	}
	return sets, nil
}

// List is like ListAll, but returns the specific PAGE of the owner's sets,
// i.e. is used for pagination.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Set, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))
	span.SetAttributes(attribute.String("owner_id", params.OwnerID))

	if params.Page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if params.Size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	limit := params.Size
	offset := (params.Page - 1) * params.Size
	countAll, err := r.SetsCount(ctx, params.SetParams)
	if err != nil {
		return nil, -1, err
	}

	if countAll <= limit {
		limit = countAll
		offset = 0
	}

	if countAll-offset < limit {
		offset = countAll - limit
	}

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, owner_id, exercise, muscle_group, weight, reps, timestamp, deleted
			FROM workout_set
				WHERE owner_id = $1
				AND deleted IS FALSE
				AND ($2::text = '' OR exercise = $2)
				AND ($3::text = '' OR muscle_group = $3)
			ORDER BY timestamp DESC
			LIMIT $4
			OFFSET $5;`,
		params.OwnerID, params.Exercise, params.MuscleGroup,
		limit, offset,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	sets, err := r.rows2sets(rows)
	if err != nil {
		return nil, -1, err
	}
	return sets, countAll, nil
}

func (r *Repo) SetsCount(ctx context.Context, params SetParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT COUNT(*) FROM workout_set
			WHERE owner_id = $1
			AND deleted IS FALSE
			AND ($2::text = '' OR exercise = $2)
			AND ($3::text = '' OR muscle_group = $3)
			AND ($4::timestamptz IS NULL OR timestamp >= $4)
			AND ($5::timestamptz IS NULL OR timestamp <= $5);
	`,
		params.OwnerID, params.Exercise, params.MuscleGroup,
		params.From, params.To,
	)
	if err != nil {
		return -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to get sets count")
}

// ListPairs returns the distinct (muscle group, exercise) pairs the owner has
// live sets for, sorted by muscle group then exercise.
func (r *Repo) ListPairs(ctx context.Context, ownerID string) (_ []Pair, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listpairs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT muscle_group, exercise FROM workout_set
			WHERE owner_id = $1 AND deleted IS FALSE
		ORDER BY muscle_group, exercise;
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0)
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.MuscleGroup, &p.Exercise); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}

	return pairs, nil
}

// PurgeAll permanently removes all sets of an owner, including soft-deleted
// ones. Returns the number of removed rows.
func (r *Repo) PurgeAll(ctx context.Context, ownerID string) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.purgeall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	tag, err := r.db.Exec(ctx, `DELETE FROM workout_set WHERE owner_id = $1;`, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeExercise permanently removes all of an owner's sets for one exercise.
func (r *Repo) PurgeExercise(ctx context.Context, ownerID, exercise string) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.purgeexercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("owner_id", ownerID))
	span.SetAttributes(attribute.String("exercise", exercise))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout_set WHERE owner_id = $1 AND exercise = $2;`,
		ownerID, exercise,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) rows2sets(rows pgx.Rows) ([]Set, error) {
	var sets []Set
	for rows.Next() {
		var s Set
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.Exercise, &s.MuscleGroup,
			&s.Weight, &s.Reps, &s.Timestamp, &s.Deleted,
		); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}

	if sets == nil {
		sets = make([]Set, 0)
	}

	return sets, nil
}
