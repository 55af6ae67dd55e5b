// Package debugui serves read-only admin pages on the debug listener.
package debugui

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"territory-admin/aggregate"
	"territory-admin/dblayer"
	"territory-admin/dbtypes"

	"go.opentelemetry.io/otel"
)

type Server struct {
	roster *dblayer.UserRoster
}

func New(roster *dblayer.UserRoster) *Server {
	return &Server{
		roster: roster,
	}
}

func (s *Server) RegisterDebugHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/admin/users", s.handleUsers)
}

const usersHTML = `
<!DOCTYPE html>
<head>
	<title>Users</title>
</head>

<h1>Users ({{len .Users}})</h1>
<p><a href="?reload=1">Reload</a></p>
<table>
<tr><th>ID</th><th>Name</th><th>Email</th><th>Level</th><th>XP</th><th>Last rank</th><th>Joined</th></tr>
{{range .Users}}
<tr><td>{{.ID}}</td><td>{{.DisplayName}}</td><td>{{.Email}}</td><td>{{.Level}}</td><td>{{.XP}}</td><td>{{.PreviousRank}}</td><td>{{.JoinedAt}}</td></tr>
{{end}}
</table>
`

var usersTemplate = template.Must(template.New("users").Parse(usersHTML))

type UserRow struct {
	ID           string
	DisplayName  string
	Email        string
	Level        int64
	XP           int64
	PreviousRank string
	JoinedAt     string
}

type UsersData struct {
	Users []UserRow
}

func usersData(users []*dbtypes.User) *UsersData {
	sorted := make([]*dbtypes.User, len(users))
	copy(sorted, users)
	aggregate.SortUsers(sorted)

	data := &UsersData{Users: []UserRow{}}
	for _, u := range sorted {
		row := UserRow{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Level:       u.Level,
			XP:          u.XP,
			JoinedAt:    u.JoinedAt.Format(time.RFC3339),
		}
		if u.Email != nil {
			row.Email = *u.Email
		}
		if u.PreviousRank != nil {
			row.PreviousRank = "#" + strconv.FormatInt(*u.PreviousRank, 10)
		}
		data.Users = append(data.Users, row)
	}
	return data
}

func (s *Server) handleUsers(w http.ResponseWriter, req *http.Request) {
	tracer := otel.Tracer("territory-admin/debugui")
	ctx, span := tracer.Start(req.Context(), "Server.handleUsers")
	defer span.End()

	if req.URL.Query().Get("reload") != "" {
		if err := s.roster.Reload(ctx); err != nil {
			slog.ErrorContext(ctx, "Error while reloading user roster", slog.Any("err", err))
			http.Error(w, "error reloading users", http.StatusInternalServerError)
			return
		}
	}

	users, loaded := s.roster.Users()
	if !loaded {
		http.Error(w, "users not loaded yet", http.StatusServiceUnavailable)
		return
	}

	if err := usersTemplate.Execute(w, usersData(users)); err != nil {
		slog.ErrorContext(ctx, "Error while executing template", slog.Any("err", err))
		return
	}
}
