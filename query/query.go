// Package query translates raw, caller-supplied listing parameters into a
// validated plan the document store can execute.
package query

import (
	"encoding/json"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"task-tracker-service/apperrors"
)

// Raw holds the query parameters exactly as they arrived on the wire. Empty
// string means the parameter was not supplied.
type Raw struct {
	Where  string
	Sort   string
	Select string
	Skip   string
	Limit  string
	Count  string
}

// Plan is the validated form of a listing request. Filter, Sort and
// Projection are passed to the store verbatim; the store is trusted to
// reject operators it does not support.
type Plan struct {
	Filter     bson.M
	Sort       bson.M
	Projection bson.M
	Skip       *int64
	Limit      *int64
	Count      bool
}

// Translate parses raw parameters into a Plan. defaultLimit, when positive,
// is applied if the caller supplied no explicit limit; task listings cap at
// 100 this way while user listings pass 0 and stay uncapped.
func Translate(raw Raw, defaultLimit int64) (*Plan, error) {
	plan := &Plan{Filter: bson.M{}}

	if raw.Where != "" {
		if err := json.Unmarshal([]byte(raw.Where), &plan.Filter); err != nil {
			return nil, apperrors.BadRequest("Invalid JSON in where parameter")
		}
	}

	if raw.Sort != "" {
		if err := json.Unmarshal([]byte(raw.Sort), &plan.Sort); err != nil {
			return nil, apperrors.BadRequest("Invalid JSON in sort parameter")
		}
	}

	if raw.Select != "" {
		projection, err := ParseProjection(raw.Select)
		if err != nil {
			return nil, err
		}
		plan.Projection = projection
	}

	if raw.Skip != "" {
		skip, err := strconv.ParseInt(raw.Skip, 10, 64)
		if err != nil {
			return nil, apperrors.BadRequest("Invalid skip parameter")
		}
		plan.Skip = &skip
	}

	if raw.Limit != "" {
		limit, err := strconv.ParseInt(raw.Limit, 10, 64)
		if err != nil {
			return nil, apperrors.BadRequest("Invalid limit parameter")
		}
		plan.Limit = &limit
	} else if defaultLimit > 0 {
		limit := defaultLimit
		plan.Limit = &limit
	}

	plan.Count = raw.Count == "true"

	return plan, nil
}

// ParseProjection parses a select parameter on its own; the by-id read
// endpoints accept a projection without the rest of the listing parameters.
func ParseProjection(raw string) (bson.M, error) {
	var projection bson.M
	if err := json.Unmarshal([]byte(raw), &projection); err != nil {
		return nil, apperrors.BadRequest("Invalid JSON in select parameter")
	}
	return projection, nil
}
