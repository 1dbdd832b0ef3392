package plans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/ironlog/internal/auth"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=plans_mocks_test.go -package=plans_test

type plansRepo interface {
	Upsert(ctx context.Context, plan Plan) (*Plan, error)
	GetByDay(ctx context.Context, ownerID, day string) (*Plan, error)
	List(ctx context.Context, ownerID string) ([]Plan, error)
	Delete(ctx context.Context, ownerID, day string) error
}

type ListPlansResponse struct {
	Plans []Plan `json:"plans"`
}

type DeletePlanResponse struct {
	DeletedDay string `json:"deletedDay"`
}

type Handler struct {
	repo plansRepo
}

func NewHandler(repo plansRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

// HandleUpsert stores the plan for a weekday, overwriting the previous one.
func (handler *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.upsert")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var plan Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		log.Tracef("upsert plan, unmarshal json params: %s", err)
		http.Error(w, "upsert plan failed", http.StatusBadRequest)
		return
	}

	plan.Day = strings.ToLower(plan.Day)
	if !Weekdays[plan.Day] {
		http.Error(w, "error, invalid day", http.StatusBadRequest)
		return
	}
	for _, routine := range plan.Routines {
		if routine.Exercise == "" || routine.MuscleGroup == "" {
			http.Error(w, "error, routine exercise or muscle group empty", http.StatusBadRequest)
			return
		}
	}

	plan.OwnerID = auth.OwnerFromContext(ctx)

	upsertedPlan, err := handler.repo.Upsert(ctx, plan)
	if err != nil {
		log.Errorf("failed to upsert plan [%s]: %s", plan.Day, err)
		http.Error(w, "error, failed to upsert plan", http.StatusInternalServerError)
		return
	}

	planJson, err := json.Marshal(upsertedPlan)
	if err != nil {
		log.Errorf("failed to marshal plan: %s", err)
		http.Error(w, "error, failed to upsert plan", http.StatusInternalServerError)
		return
	}

	log.Debugf("day plan stored: %s", planJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, planJson, http.StatusCreated)
}

func (handler *Handler) HandleGetByDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.get")
	defer span.End()

	day := strings.ToLower(mux.Vars(r)["day"])
	if !Weekdays[day] {
		http.Error(w, "error, invalid day", http.StatusBadRequest)
		return
	}

	plan, err := handler.repo.GetByDay(ctx, auth.OwnerFromContext(ctx), day)
	if errors.Is(err, ErrPlanNotFound) {
		http.Error(w, "plan not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Errorf("failed to get plan [%s]: %s", day, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	planJson, err := json.Marshal(plan)
	if err != nil {
		log.Errorf("failed to marshal plan: %s", err)
		http.Error(w, "failed to marshal plan", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, planJson, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.list")
	defer span.End()

	dayPlans, err := handler.repo.List(ctx, auth.OwnerFromContext(ctx))
	if err != nil {
		log.Errorf("list plans error: %s", err)
		http.Error(w, "failed to get plans", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListPlansResponse{Plans: dayPlans})
	if err != nil {
		log.Errorf("marshal plans error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.delete")
	defer span.End()

	day := strings.ToLower(mux.Vars(r)["day"])
	if !Weekdays[day] {
		http.Error(w, "error, invalid day", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, auth.OwnerFromContext(ctx), day); err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete plan [%s]: %s", day, err)
		http.Error(w, "plan not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeletePlanResponse{DeletedDay: day})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}
