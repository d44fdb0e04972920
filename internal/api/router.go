package api

import (
	"net/http"
	"strings"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/health/deps", onlyGet(h.HandleDepsHealth))
	mux.HandleFunc("/incidents", onlyGet(h.HandleListIncidents))

	mux.HandleFunc("/forms", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.HandleCreateForm(w, r)
		case http.MethodGet:
			h.HandleListForms(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/forms/", func(w http.ResponseWriter, r *http.Request) {
		// /forms/{id} | /forms/{id}/sessions
		id, tail, ok := splitPath(r.URL.Path, "/forms/")
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch tail {
		case "":
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.HandleGetForm(w, r, id)
		case "sessions":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.HandleCreateSession(w, r, id)
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/sessions", onlyGet(h.HandleListSessions))

	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		// /sessions/{id}/events | /answers
		id, tail, ok := splitPath(r.URL.Path, "/sessions/")
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch tail {
		case "events":
			h.HandleListEvents(w, r, id)
		case "answers":
			h.HandleListAnswers(w, r, id)
		default:
			http.NotFound(w, r)
		}
	})

	return mux
}

func onlyGet(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// splitPath turns "/prefix/{id}/{tail}" into id and tail.
func splitPath(p, prefix string) (id, tail string, ok bool) {
	p = strings.TrimSuffix(p, "/")
	if !strings.HasPrefix(p, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(p, prefix), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		return "", "", false
	}
	id = parts[0]
	if len(parts) > 1 {
		tail = parts[1]
	}
	return id, tail, true
}
