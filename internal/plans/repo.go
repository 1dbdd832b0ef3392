package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/ironlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrPlanNotFound = errors.New("day plan not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Upsert stores the plan for (owner, day), replacing a previous one.
func (r *Repo) Upsert(ctx context.Context, plan Plan) (_ *Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("day", plan.Day))

	routinesJson, err := json.Marshal(plan.Routines)
	if err != nil {
		return nil, fmt.Errorf("marshal routines: %w", err)
	}

	plan.UpdatedAt = time.Now()
	rows, err := r.db.Query(
		ctx,
		`INSERT INTO day_plan
				(owner_id, day, description, routines, updated_at)
				VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (owner_id, day) DO UPDATE
				SET description = EXCLUDED.description,
					routines = EXCLUDED.routines,
					updated_at = EXCLUDED.updated_at
			RETURNING id;`,
		plan.OwnerID, plan.Day, plan.Description, routinesJson, plan.UpdatedAt,
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

	span.SetAttributes(attribute.Int("plan.id", id))

	plan.ID = id
	return &plan, nil
}

func (r *Repo) GetByDay(ctx context.Context, ownerID, day string) (_ *Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.getbyday")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("day", day))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, owner_id, day, description, routines, updated_at
			FROM day_plan
			WHERE owner_id = $1 AND day = $2;`,
		ownerID, day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	plans, err := r.rows2plans(rows)
	if err != nil {
		return nil, err
	}

	if len(plans) != 1 {
		return nil, ErrPlanNotFound
	}

	return &plans[0], nil
}

// List returns all day plans of the owner, in week order.
func (r *Repo) List(ctx context.Context, ownerID string) (_ []Plan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, owner_id, day, description, routines, updated_at
			FROM day_plan
			WHERE owner_id = $1
			ORDER BY
				CASE day
					WHEN 'monday' THEN 1
					WHEN 'tuesday' THEN 2
					WHEN 'wednesday' THEN 3
					WHEN 'thursday' THEN 4
					WHEN 'friday' THEN 5
					WHEN 'saturday' THEN 6
					WHEN 'sunday' THEN 7
				END;`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2plans(rows)
}

func (r *Repo) Delete(ctx context.Context, ownerID, day string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("day", day))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM day_plan WHERE owner_id = $1 AND day = $2;`,
		ownerID, day,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (r *Repo) rows2plans(rows pgx.Rows) ([]Plan, error) {
	plans := make([]Plan, 0)
	for rows.Next() {
		var p Plan
		var routinesJson []byte
		if err := rows.Scan(
			&p.ID, &p.OwnerID, &p.Day, &p.Description, &routinesJson, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(routinesJson, &p.Routines); err != nil {
			return nil, fmt.Errorf("unmarshal routines: %w", err)
		}
		plans = append(plans, p)
	}

	return plans, nil
}
