package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/ironlog/internal/auth"
	"github.com/2beens/ironlog/internal/telemetry/metrics"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=workouts_mocks_test.go -package=workouts_test

type setsRepo interface {
	Add(ctx context.Context, set Set) (*Set, error)
	Get(ctx context.Context, id int) (*Set, error)
	Update(ctx context.Context, set *Set) error
	Delete(ctx context.Context, id int, ownerID string) error
	ListAll(ctx context.Context, params SetParams) (_ []Set, err error)
	List(ctx context.Context, params ListParams) (_ []Set, total int, err error)
	SetsCount(ctx context.Context, params SetParams) (int, error)
	ListPairs(ctx context.Context, ownerID string) ([]Pair, error)
	PurgeAll(ctx context.Context, ownerID string) (int64, error)
	PurgeExercise(ctx context.Context, ownerID, exercise string) (int64, error)
}

type AddSetResponse struct {
	Set
	CountToday int `json:"countToday"`
}

type UpdateSetResponse struct {
	UpdatedID int `json:"updatedId"`
}

type DeleteSetResponse struct {
	DeletedID int `json:"deletedId"`
}

type ListResponse struct {
	Sets  []Set `json:"sets"`
	Total int   `json:"total"`
}

type DayResponse struct {
	Day  string `json:"day"`
	Sets []Set  `json:"sets"`
}

type HistoryResponse struct {
	Summaries []DaySummary `json:"summaries"`
}

type LatestResponse struct {
	Latest   *DaySummary `json:"latest"`
	Previous *DaySummary `json:"previous,omitempty"`
}

type ChartPoint struct {
	Day             time.Time `json:"day"`
	WeightedAverage float64   `json:"weightedAverage"`
}

type ChartResponse struct {
	Points []ChartPoint `json:"points"`
}

type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

type Handler struct {
	repo           setsRepo
	summariesCache *SummariesCache
	metrics        *metrics.Manager
}

func NewHandler(repo setsRepo, summariesCache *SummariesCache, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		summariesCache: summariesCache,
		metrics:        metricsManager,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var set Set
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		log.Tracef("new set, unmarshal json params: %s", err)
		http.Error(w, "add set failed", http.StatusBadRequest)
		return
	}

	if set.Exercise == "" || set.MuscleGroup == "" {
		http.Error(w, "error, exercise or muscle group empty", http.StatusBadRequest)
		return
	}

	set.OwnerID = auth.OwnerFromContext(ctx)
	if set.Timestamp.IsZero() {
		set.Timestamp = time.Now()
	}

	addedSet, err := handler.repo.Add(ctx, set)
	if err != nil {
		log.Errorf("failed to add new set [%s], [%s]: %s", set.MuscleGroup, set.Exercise, err)
		http.Error(w, "error, failed to add new set", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSetsAdded.Inc()
	handler.summariesCache.Invalidate(addedSet.OwnerID, addedSet.Exercise, addedSet.MuscleGroup)

	todayMidnight := time.Now().Truncate(24 * time.Hour)
	tomorrowMidnight := todayMidnight.Add(24 * time.Hour)
	countToday, err := handler.repo.SetsCount(ctx, SetParams{
		OwnerID:     addedSet.OwnerID,
		Exercise:    addedSet.Exercise,
		MuscleGroup: addedSet.MuscleGroup,
		From:        &todayMidnight,
		To:          &tomorrowMidnight,
	})
	if err != nil {
		// just log the error, no need to return error to the client
		log.Errorf("failed to count sets today [%s] [%s]: %s", addedSet.Exercise, addedSet.MuscleGroup, err)
		countToday = 0
	}

	addSetResponse := AddSetResponse{
		Set:        *addedSet,
		CountToday: countToday,
	}

	addedSetJson, err := json.Marshal(addSetResponse)
	if err != nil {
		log.Errorf("failed to marshal new set: %s", err)
		http.Error(w, "error, failed to add new set", http.StatusInternalServerError)
		return
	}

	log.Debugf("new set added: %s", addedSetJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedSetJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
	defer span.End()

	id, err := idFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	set, err := handler.ownedSet(ctx, id)
	if errors.Is(err, ErrSetNotFound) {
		http.Error(w, "set not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Errorf("failed to get set %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	setJson, err := json.Marshal(set)
	if err != nil {
		log.Errorf("failed to marshal set: %s", err)
		http.Error(w, "failed to marshal set", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, setJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var set Set
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		log.Errorf("update set, unmarshal json params: %s", err)
		http.Error(w, "update set failed", http.StatusBadRequest)
		return
	}

	if set.Exercise == "" || set.MuscleGroup == "" {
		http.Error(w, "error, exercise or muscle group empty", http.StatusBadRequest)
		return
	}

	set.OwnerID = auth.OwnerFromContext(ctx)

	currentSet, err := handler.ownedSet(ctx, set.ID)
	if errors.Is(err, ErrSetNotFound) {
		log.Debugf("set %d not found", set.ID)
		http.Error(w, "set not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Errorf("failed to get set %d: %s", set.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	log.Debugf("update set %+v -> %+v", currentSet, set)

	if err := handler.repo.Update(ctx, &set); err != nil {
		log.Errorf("failed to update set [%d], [%s]: %s", set.ID, set.Exercise, err)
		http.Error(w, "error, failed to update set", http.StatusInternalServerError)
		return
	}

	// the set might have moved to another pair
	handler.summariesCache.Invalidate(currentSet.OwnerID, currentSet.Exercise, currentSet.MuscleGroup)
	handler.summariesCache.Invalidate(set.OwnerID, set.Exercise, set.MuscleGroup)

	updateRespJson, err := json.Marshal(UpdateSetResponse{
		UpdatedID: set.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	log.Debugf("set updated: [%s] [%s]: %d", set.MuscleGroup, set.Exercise, set.ID)
	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	id, err := idFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	set, err := handler.ownedSet(ctx, id)
	if errors.Is(err, ErrSetNotFound) {
		log.Debugf("set %d not found", id)
		http.Error(w, "set not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Errorf("failed to get set %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Debugf("deleting set %+v", set)

	if err := handler.repo.Delete(ctx, id, set.OwnerID); err != nil {
		log.Errorf("failed to delete set %d: %s", id, err)
		http.Error(w, "set not deleted", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSetsDeleted.Inc()
	handler.summariesCache.Invalidate(set.OwnerID, set.Exercise, set.MuscleGroup)

	deleteRespJson, err := json.Marshal(DeleteSetResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		log.Tracef("handle list sets page, from <page> param: %s", err)
		http.Error(w, "parse form error, parameter <page>", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil {
		log.Tracef("handle list sets page, from <size> param: %s", err)
		http.Error(w, "parse form error, parameter <size>", http.StatusBadRequest)
		return
	}

	if page < 1 {
		http.Error(w, "invalid page (has to be non-zero value)", http.StatusBadRequest)
		return
	}
	if size < 1 {
		http.Error(w, "invalid size (has to be non-zero value)", http.StatusBadRequest)
		return
	}

	listParams := ListParams{
		SetParams: SetParams{
			OwnerID:     auth.OwnerFromContext(ctx),
			Exercise:    r.URL.Query().Get("exercise"),
			MuscleGroup: r.URL.Query().Get("group"),
		},
		Page: page,
		Size: size,
	}

	sets, total, err := handler.repo.List(ctx, listParams)
	if err != nil {
		log.Errorf("list sets error: %s", err)
		http.Error(w, "failed to get sets", http.StatusInternalServerError)
		return
	}

	listRespJson, err := json.Marshal(ListResponse{
		Sets:  sets,
		Total: total,
	})
	if err != nil {
		log.Errorf("marshal sets error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listRespJson, http.StatusOK)
}

// HandleDay returns all sets logged on one calendar day, oldest first.
func (handler *Handler) HandleDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.day")
	defer span.End()

	loc, err := locationFromRequest(r)
	if err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	day, err := time.ParseInLocation("2006-01-02", vars["date"], loc)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	nextDay := day.AddDate(0, 0, 1)

	sets, err := handler.repo.ListAll(ctx, SetParams{
		OwnerID: auth.OwnerFromContext(ctx),
		From:    &day,
		To:      &nextDay,
	})
	if err != nil {
		log.Errorf("day sets error: %s", err)
		http.Error(w, "failed to get sets", http.StatusInternalServerError)
		return
	}

	// repo returns newest first and treats To as inclusive, the day view
	// wants the session in order and the next midnight excluded
	daySets := make([]Set, 0, len(sets))
	for i := len(sets) - 1; i >= 0; i-- {
		if sets[i].Timestamp.Before(nextDay) {
			daySets = append(daySets, sets[i])
		}
	}

	dayRespJson, err := json.Marshal(DayResponse{
		Day:  day.Format("2006-01-02"),
		Sets: daySets,
	})
	if err != nil {
		log.Errorf("marshal day sets error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, dayRespJson, http.StatusOK)
}

// HandleHistory returns the per-day summaries of one
// (muscle group, exercise) pair, oldest day first.
func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.history")
	defer span.End()

	summaries, _, errStatus := handler.pairSummaries(ctx, w, r)
	if errStatus {
		return
	}

	historyRespJson, err := json.Marshal(HistoryResponse{Summaries: summaries})
	if err != nil {
		log.Errorf("failed to marshal history: %s", err)
		http.Error(w, "failed to marshal history", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, historyRespJson, http.StatusOK)
}

// HandleLatest returns the most recent day summary of a pair together with
// the day before it. The latest day carries the comparison against the best
// older day of the pair.
func (handler *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.latest")
	defer span.End()

	summaries, _, errStatus := handler.pairSummaries(ctx, w, r)
	if errStatus {
		return
	}

	var latestResp LatestResponse
	if len(summaries) > 0 {
		latestResp.Latest = &summaries[len(summaries)-1]
	}
	if len(summaries) > 1 {
		latestResp.Previous = &summaries[len(summaries)-2]
	}

	latestRespJson, err := json.Marshal(latestResp)
	if err != nil {
		log.Errorf("failed to marshal latest summary: %s", err)
		http.Error(w, "failed to marshal latest summary", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, latestRespJson, http.StatusOK)
}

// HandleChart returns the weighted average weight per day, oldest first, for
// the progress chart. Days without a usable weight are left out.
func (handler *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.chart")
	defer span.End()

	summaries, _, errStatus := handler.pairSummaries(ctx, w, r)
	if errStatus {
		return
	}

	points := make([]ChartPoint, 0, len(summaries))
	for _, s := range summaries {
		if s.WeightedAverage == nil {
			continue
		}
		points = append(points, ChartPoint{
			Day:             s.Day,
			WeightedAverage: *s.WeightedAverage,
		})
	}

	chartRespJson, err := json.Marshal(ChartResponse{Points: points})
	if err != nil {
		log.Errorf("failed to marshal chart points: %s", err)
		http.Error(w, "failed to marshal chart points", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, chartRespJson, http.StatusOK)
}

func (handler *Handler) HandlePairs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.pairs")
	defer span.End()

	pairs, err := handler.repo.ListPairs(ctx, auth.OwnerFromContext(ctx))
	if err != nil {
		log.Errorf("list pairs error: %s", err)
		http.Error(w, "failed to get pairs", http.StatusInternalServerError)
		return
	}

	pairsJson, err := json.Marshal(pairs)
	if err != nil {
		log.Errorf("marshal pairs error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, pairsJson, http.StatusOK)
}

// HandlePurge permanently removes the owner's sets, either all of them or,
// with the <exercise> query parameter, only one exercise's. There is no undo.
func (handler *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.purge")
	defer span.End()

	ownerID := auth.OwnerFromContext(ctx)
	exercise := r.URL.Query().Get("exercise")

	var purged int64
	var err error
	if exercise == "" {
		purged, err = handler.repo.PurgeAll(ctx, ownerID)
	} else {
		purged, err = handler.repo.PurgeExercise(ctx, ownerID, exercise)
	}
	if err != nil {
		log.Errorf("purge sets [owner %s] [exercise %q]: %s", ownerID, exercise, err)
		http.Error(w, "failed to purge sets", http.StatusInternalServerError)
		return
	}

	// purged pairs are unknown at this point, so all cached summaries of the
	// owner could be stale; versions are per pair, bump via the wildcard entry
	handler.summariesCache.InvalidateOwner(ownerID)

	log.Warnf("purged %d sets [owner %s] [exercise %q]", purged, ownerID, exercise)

	purgeRespJson, err := json.Marshal(PurgeResponse{Purged: purged})
	if err != nil {
		log.Errorf("failed to marshal purge response: %s", err)
		http.Error(w, "failed to marshal purge response", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, purgeRespJson, http.StatusOK)
}

// pairSummaries resolves the pair and timezone from the request and returns
// the per-day summaries, serving from the cache when possible. When it
// returns errStatus true, the error response is already written.
func (handler *Handler) pairSummaries(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
) (_ []DaySummary, loc *time.Location, errStatus bool) {
	vars := mux.Vars(r)
	muscleGroup := vars["mgroup"]
	if muscleGroup == "" {
		http.Error(w, "error, muscle group empty", http.StatusBadRequest)
		return nil, nil, true
	}
	exercise := vars["exercise"]
	if exercise == "" {
		http.Error(w, "error, exercise empty", http.StatusBadRequest)
		return nil, nil, true
	}

	loc, err := locationFromRequest(r)
	if err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return nil, nil, true
	}

	ownerID := auth.OwnerFromContext(ctx)
	if summaries, ok := handler.summariesCache.Get(ownerID, exercise, muscleGroup, loc); ok {
		handler.metrics.CounterSummariesCacheHits.Inc()
		return summaries, loc, false
	}

	sets, err := handler.repo.ListAll(ctx, SetParams{
		OwnerID:     ownerID,
		Exercise:    exercise,
		MuscleGroup: muscleGroup,
	})
	if err != nil {
		log.Errorf("failed to get sets [%s] [%s]: %s", exercise, muscleGroup, err)
		http.Error(w, "failed to get sets", http.StatusInternalServerError)
		return nil, nil, true
	}

	summaries := BuildSummaries(sets, loc)
	handler.summariesCache.Set(ownerID, exercise, muscleGroup, loc, summaries)
	return summaries, loc, false
}

// ownedSet fetches a set and makes sure it belongs to the request's owner.
// Foreign sets are indistinguishable from missing ones.
func (handler *Handler) ownedSet(ctx context.Context, id int) (*Set, error) {
	set, err := handler.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if set.OwnerID != auth.OwnerFromContext(ctx) {
		return nil, ErrSetNotFound
	}
	return set, nil
}

func idFromRequest(r *http.Request) (int, error) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		return 0, errors.New("error, id empty")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, errors.New("error, id NaN")
	}
	return id, nil
}

// locationFromRequest reads the optional <tz> query parameter, an IANA
// timezone name. Day bucketing follows this location; UTC when absent.
func locationFromRequest(r *http.Request) (*time.Location, error) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}
