package api

import (
	"errors"
	"net/http"

	"github.com/vincentdavis/league-gotta-bike/pkg/httputil"
	"github.com/vincentdavis/league-gotta-bike/pkg/importer"
)

// importMembers applies already-parsed rows to the organization. A rejected
// import answers 422 with the report so the caller can fix the listed rows.
func (s *Server) importMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	var req ImportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	rows := make([]importer.Row, len(req.Rows))
	for i, row := range req.Rows {
		line := row.Line
		if line == 0 {
			line = i + 1
		}
		rows[i] = importer.Row{
			Line:            line,
			UserID:          row.UserID,
			PermissionLevel: row.PermissionLevel,
			Status:          row.Status,
			Roles:           row.Roles,
			PrimaryRole:     row.PrimaryRole,
		}
	}

	report, err := s.importer.Import(r.Context(), actorID(r), orgID, rows)
	switch {
	case errors.Is(err, importer.ErrImportFailed):
		_ = httputil.WriteJSON(w, http.StatusUnprocessableEntity, report)
	case err != nil:
		writeError(w, r, err)
	default:
		_ = httputil.WriteSuccess(w, report)
	}
}

func (s *Server) exportMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}
	rows, err := importer.Export(r.Context(), s.store, orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list(rows))
}
