package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
)

const maxAuditLimit = 500

// searchAudit lists audit events of the organization. Query parameters:
// subject_type, subject_id, actor_id, event_type (repeatable), since and
// until (RFC 3339), limit and offset.
func (s *Server) searchAudit(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteProblem(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	filter.OrganizationID = &orgID

	events, err := s.audit.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list(events))
}

func parseAuditFilter(r *http.Request) (audit.SearchFilter, error) {
	q := r.URL.Query()
	filter := audit.SearchFilter{
		SubjectType: audit.SubjectType(q.Get("subject_type")),
		Limit:       100,
	}
	for _, t := range q["event_type"] {
		filter.EventTypes = append(filter.EventTypes, audit.EventType(t))
	}

	var err error
	if filter.SubjectID, err = optionalInt64(q.Get("subject_id"), "subject_id"); err != nil {
		return filter, err
	}
	if filter.ActorID, err = optionalInt64(q.Get("actor_id"), "actor_id"); err != nil {
		return filter, err
	}
	if filter.Since, err = optionalTime(q.Get("since"), "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = optionalTime(q.Get("until"), "until"); err != nil {
		return filter, err
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, &paramError{name: "limit", value: v}
		}
		filter.Limit = min(n, maxAuditLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, &paramError{name: "offset", value: v}
		}
		filter.Offset = n
	}
	return filter, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid value for " + e.name + ": " + strconv.Quote(e.value)
}

func optionalInt64(v, name string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, &paramError{name: name, value: v}
	}
	return &n, nil
}

func optionalTime(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, &paramError{name: name, value: v}
	}
	return &t, nil
}
