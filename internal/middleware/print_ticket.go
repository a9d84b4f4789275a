package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"badge-kiosk-backend/internal/printing"

	"github.com/rs/zerolog/log"
)

type contextKey string

const printJobKey contextKey = "print_job"

// TicketParser validates print tickets
type TicketParser interface {
	ParseTicket(ticket string) (*printing.Job, error)
}

// PrintTicket creates a middleware that admits requests carrying a valid
// ?ticket= and stores the decoded print job in the request context
func PrintTicket(parser TicketParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ticket := r.URL.Query().Get("ticket")
			if ticket == "" {
				respondError(w, "Print ticket required", http.StatusUnauthorized)
				return
			}

			job, err := parser.ParseTicket(ticket)
			if err != nil {
				log.Warn().Err(err).Msg("Rejected print ticket")
				respondError(w, "Invalid print ticket", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), printJobKey, job)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrintJob extracts the print job from context
func GetPrintJob(ctx context.Context) *printing.Job {
	job, ok := ctx.Value(printJobKey).(*printing.Job)
	if !ok {
		return nil
	}
	return job
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
