// Package writer runs the ADK agent that produces follow-up message copy.
package writer

import (
	"context"
	"fmt"
	"strings"

	"outreach_backend/platform/ai/kimi"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// Request carries the generation context for one touch.
type Request struct {
	ProspectID   uuid.UUID
	FullName     string
	Headline     string
	Company      string
	Scenario     string
	Tone         string
	Channel      string
	TouchNumber  int
	DaysSinceLastContact int
	PriorMessages []string
}

// Result is the model's output split into its labeled sections.
type Result struct {
	Subject   string
	Text      string
	Reasoning string
}

// Writer generates follow-up copy through the ADK runner.
type Writer struct {
	runner         *runner.Runner
	sessionService session.Service
	appName        string
	log            *logger.Logger
}

func New(cfg config.AIConfig, log *logger.Logger) (*Writer, error) {
	model := kimi.NewModel(kimi.Config{
		APIKey:  cfg.GetMoonshotAPIKey(),
		BaseURL: cfg.GetMoonshotBaseURL(),
		Model:   cfg.GetMoonshotModel(),
	})

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "FollowUpWriter",
		Model:       model,
		Description: "Writes short, natural follow-up messages for B2B outreach sequences.",
		Instruction: systemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create writer agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        "follow_up_writer",
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create writer runner: %w", err)
	}

	return &Writer{
		runner:         r,
		sessionService: sessionService,
		appName:        "follow_up_writer",
		log:            log,
	}, nil
}

// Write produces one draft. Each call runs in a throwaway session; the
// sequence history the model needs travels in the prompt, not in session
// state.
func (w *Writer) Write(ctx context.Context, req Request) (Result, error) {
	userID := "writer-" + req.ProspectID.String()
	sessionID := uuid.New().String()

	if _, err := w.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   w.appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return Result{}, fmt.Errorf("failed to create writer session: %w", err)
	}
	defer func() {
		deleteReq := &session.DeleteRequest{
			AppName:   w.appName,
			UserID:    userID,
			SessionID: sessionID,
		}
		if err := w.sessionService.Delete(context.WithoutCancel(ctx), deleteReq); err != nil {
			w.log.Warn("failed to delete writer session", "session_id", sessionID, "error", err.Error())
		}
	}()

	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(buildPrompt(req))},
	}

	var output strings.Builder
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for event, err := range w.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return Result{}, fmt.Errorf("writer run failed: %w", err)
		}
		if event.Content != nil {
			for _, part := range event.Content.Parts {
				output.WriteString(part.Text)
			}
		}
	}

	result, err := parseOutput(output.String())
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
