package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattsre/poeledger/internal/history"
)

// QueryRunner is the subset of *history.Engine the handler needs.
type QueryRunner interface {
	Query(ctx context.Context, q history.Query) ([]history.Bucket, error)
}

func newHistoryHandler(engine QueryRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := parseRawQuery(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		q, err := history.BuildQuery(raw, time.Now())
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		buckets, err := engine.Query(r.Context(), q)
		if err != nil {
			log.Error().Err(err).Str("item", q.Item).Msg("httpapi: history query failed")
			writeJSONError(w, http.StatusInternalServerError, "query failed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(buckets); err != nil {
			log.Error().Err(err).Msg("httpapi: failed encoding history response")
		}
	}
}

func parseRawQuery(r *http.Request) (history.RawQuery, error) {
	q := r.URL.Query()

	item := q.Get("item")
	if item == "" {
		return history.RawQuery{}, errMissingItem
	}

	raw := history.RawQuery{Item: item}

	if league := q.Get("league"); league != "" {
		raw.League = &league
	}

	if amountStr := q.Get("intervalAmount"); amountStr != "" {
		amount, err := strconv.Atoi(amountStr)
		if err != nil {
			return history.RawQuery{}, errInvalidIntervalAmount
		}
		raw.IntervalAmount = &amount
	}

	if unit := q.Get("intervalUnit"); unit != "" {
		raw.IntervalUnit = &unit
	}

	if quantileStrs := q["quantiles"]; len(quantileStrs) > 0 {
		quantiles := make([]float64, 0, len(quantileStrs))
		for _, qs := range quantileStrs {
			v, err := strconv.ParseFloat(qs, 64)
			if err != nil {
				return history.RawQuery{}, errInvalidQuantile
			}
			quantiles = append(quantiles, v)
		}
		raw.Quantiles = quantiles
	}

	if startStr := q.Get("startTime"); startStr != "" {
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return history.RawQuery{}, errInvalidTimeframe
		}
		raw.StartTime = &start
	}

	if endStr := q.Get("endTime"); endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return history.RawQuery{}, errInvalidTimeframe
		}
		raw.EndTime = &end
	}

	return raw, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
