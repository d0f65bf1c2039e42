package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/solutionstwo/voicebridge/pkg/calendar"
	"github.com/solutionstwo/voicebridge/pkg/knowledge"
)

// ragSearchArgs are the arguments of the rag_search tool.
type ragSearchArgs struct {
	// Query is the caller's question, reformulated for retrieval.
	Query string `json:"query"`

	// Resource selects the knowledge category, "services" or "products".
	Resource string `json:"resource,omitempty"`

	// TopK bounds the number of retrieved documents.
	TopK int `json:"top_k,omitempty"`
}

const ragDefaultTopK = 5

// NewRAGSearch builds the rag_search tool over a knowledge provider. The
// result is prefixed with "Context from Database:" so the model treats it
// as grounding material rather than caller speech.
func NewRAGSearch(provider knowledge.Provider) *Tool {
	return MustNew("rag_search",
		"Search the business knowledge base for services or products matching the caller's question.",
		func(ctx context.Context, args ragSearchArgs) (string, error) {
			if args.Query == "" {
				return "", fmt.Errorf("rag_search: query is required")
			}
			category := args.Resource
			if category == "" {
				category = knowledge.CategoryServices
			}
			topK := args.TopK
			if topK <= 0 {
				topK = ragDefaultTopK
			}

			text, err := provider.RetrieveSimilar(ctx, args.Query, category, topK)
			if err != nil {
				return "", fmt.Errorf("rag_search: %w", err)
			}
			return "Context from Database:\n" + text, nil
		})
}

// scheduleArgs are the arguments of the schedule_appointment tool.
type scheduleArgs struct {
	// AccountID selects the calendar account to book against.
	AccountID string `json:"account_id"`

	// StartTime is the appointment start, RFC 3339.
	StartTime string `json:"start_time"`

	// EndTime is the appointment end, RFC 3339. Empty means start plus
	// the configured default duration.
	EndTime string `json:"end_time,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// NewScheduleAppointment builds the schedule_appointment tool over a
// scheduling provider. defaultDuration fills in the end time when the
// model leaves it out.
func NewScheduleAppointment(provider calendar.Provider, defaultDuration time.Duration) *Tool {
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return MustNew("schedule_appointment",
		"Book an appointment on the business calendar once the caller has confirmed a time.",
		func(ctx context.Context, args scheduleArgs) (string, error) {
			if args.AccountID == "" || args.StartTime == "" || args.Title == "" {
				return "", fmt.Errorf("schedule_appointment: account_id, start_time and title are required")
			}

			start, err := time.Parse(time.RFC3339, args.StartTime)
			if err != nil {
				return "", fmt.Errorf("schedule_appointment: start_time: %w", err)
			}
			var end time.Time
			if args.EndTime != "" {
				end, err = time.Parse(time.RFC3339, args.EndTime)
				if err != nil {
					return "", fmt.Errorf("schedule_appointment: end_time: %w", err)
				}
			} else {
				end = start.Add(defaultDuration)
			}

			event, err := provider.Schedule(ctx, calendar.Appointment{
				AccountID:   args.AccountID,
				Title:       args.Title,
				Description: args.Description,
				Location:    args.Location,
				Start:       start,
				End:         end,
			})
			if err != nil {
				return "", fmt.Errorf("schedule_appointment: %w", err)
			}
			return fmt.Sprintf("Appointment confirmed. Confirmation ID: %s, from %s to %s.",
				event.ID, event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339)), nil
		})
}
