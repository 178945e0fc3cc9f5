// Package agent orchestrates the conversational allocation flow: intent
// classification, task extraction, the optimization pipeline, persistence
// and the streamed summary response.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/events"
	"github.com/quantfold/allocator-bot/internal/modules/allocation"
	"github.com/quantfold/allocator-bot/internal/modules/optimization"
	"github.com/quantfold/allocator-bot/internal/modules/prices"
	"github.com/quantfold/allocator-bot/internal/store"
)

// maxLLMAttempts bounds retries on classification and extraction calls.
const maxLLMAttempts = 5

// Emitter delivers one SSE event to the client. It returns an error once
// the client is gone, which stops further emission.
type Emitter func(data events.EventData) error

// Agent wires the conversational layer to the allocation pipeline.
type Agent struct {
	llm       *LLMClient
	builder   *prices.Builder
	optimizer *optimization.Service
	composer  *allocation.Composer
	store     store.Store
	validate  *validator.Validate
	log       zerolog.Logger
}

// New creates a new agent.
func New(
	llm *LLMClient,
	builder *prices.Builder,
	optimizer *optimization.Service,
	composer *allocation.Composer,
	st store.Store,
	log zerolog.Logger,
) *Agent {
	return &Agent{
		llm:       llm,
		builder:   builder,
		optimizer: optimizer,
		composer:  composer,
		store:     st,
		validate:  validator.New(),
		log:       log.With().Str("component", "agent").Logger(),
	}
}

// Execute processes one query: when the latest human message asks for an
// allocation, it runs the pipeline while emitting status events, persists
// the result, and emits the table artifact; it always finishes by streaming
// the LLM summary as message chunks.
func (a *Agent) Execute(ctx context.Context, request QueryRequest, emit Emitter) error {
	var chat []ChatMessage
	for i, message := range request.Messages {
		switch message.Role {
		case RoleAI:
			chat = append(chat, ChatMessage{Role: "assistant", Content: SanitizeMessage(message.Content)})
		case RoleHuman:
			chat = append(chat, ChatMessage{Role: "user", Content: SanitizeMessage(message.Content)})
			if IsLastHumanMessage(i, request.Messages) {
				followup, err := a.handleAllocationIntent(ctx, chat, emit)
				if err != nil {
					return err
				}
				chat = append(chat, followup...)
			}
		}
	}

	return a.streamSummary(ctx, chat, emit)
}

// handleAllocationIntent runs the allocation pipeline when the conversation
// asks for one, returning follow-up messages for the summary prompt.
func (a *Agent) handleAllocationIntent(ctx context.Context, chat []ChatMessage, emit Emitter) ([]ChatMessage, error) {
	needed, err := a.needsAllocation(ctx, chat)
	if err != nil {
		return nil, err
	}
	if !needed {
		return nil, nil
	}

	if err := emit(events.Info("Starting asset basket allocation...\nFetching task structure...")); err != nil {
		return nil, err
	}

	task, err := a.extractTask(ctx, chat)
	if err != nil {
		a.log.Error().Err(err).Msg("Task extraction failed")
		if emitErr := emit(events.Error(fmt.Sprintf("Error understanding the allocation task. %v", err))); emitErr != nil {
			return nil, emitErr
		}
		return []ChatMessage{
			{Role: "assistant", Content: fmt.Sprintf("Error understanding the allocation task. %v", err)},
			{Role: "user", Content: "What should I do?"},
		}, nil
	}

	if err := emit(&events.StatusUpdateData{
		Level:   events.StatusInfo,
		Message: "Task structure:",
		Details: []map[string]any{task.PrettyDetails()},
	}); err != nil {
		return nil, err
	}
	if err := emit(events.Info("Fetching historical prices...")); err != nil {
		return nil, err
	}

	rows, err := a.runPipeline(ctx, task)
	if err != nil {
		a.log.Error().Err(err).Msg("Allocation pipeline failed")
		if emitErr := emit(events.Error(fmt.Sprintf("Error preparing allocation. %v", err))); emitErr != nil {
			return nil, emitErr
		}
		return []ChatMessage{
			{Role: "assistant", Content: fmt.Sprintf("Error preparing allocation. %v", err)},
			{Role: "user", Content: "What should I do?"},
		}, nil
	}

	if err := emit(events.Info("Basket weights optimized. Saving allocation...")); err != nil {
		return nil, err
	}

	allocationID, err := a.persist(ctx, task, rows)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to save allocation")
		if emitErr := emit(events.Error(fmt.Sprintf("Error saving allocation. %v", err))); emitErr != nil {
			return nil, emitErr
		}
		return []ChatMessage{
			{Role: "assistant", Content: fmt.Sprintf("Error saving allocation. %v", err)},
			{Role: "user", Content: "What should I do?"},
		}, nil
	}

	if err := emit(events.Info("Allocation saved successfully.")); err != nil {
		return nil, err
	}
	if err := emit(&events.ArtifactData{
		Type:        "table",
		Name:        "Allocation",
		Description: "Allocation of assets in the basket.",
		UUID:        uuid.New(),
		Content:     rows,
	}); err != nil {
		return nil, err
	}

	return []ChatMessage{
		{
			Role: "assistant",
			Content: SanitizeMessage(fmt.Sprintf(
				"Allocation created. Allocation id is `%s`. Allocation data is %s",
				allocationID, renderMarkdownTable(rows),
			)),
		},
		{
			Role: "user",
			Content: "Write short sub-paragraph summary reports on the allocation for each of the risk models. " +
				"At the end of your message include the allocation id formatted as an inline code block.",
		},
	}, nil
}

// runPipeline executes fetch -> optimize -> compose for one task.
func (a *Agent) runPipeline(ctx context.Context, task *TaskStructure) ([]allocation.Row, error) {
	matrix, err := a.builder.Build(ctx, task.AssetSymbols, task.StartDate, task.EndDate)
	if err != nil {
		return nil, err
	}

	results, notes := a.optimizer.Run(matrix, optimization.Constraints{
		RiskFreeRate:     task.RiskFreeRate,
		TargetReturn:     task.TargetReturn,
		TargetVolatility: task.TargetVolatility,
	})

	return a.composer.Compose(results, notes, task.AssetSymbols, matrix.LatestPrices(), task.TotalInvestment)
}

// persist saves the allocation rows and the originating task under a fresh
// id. A failed save is reported, never swallowed.
func (a *Agent) persist(ctx context.Context, task *TaskStructure, rows []allocation.Row) (string, error) {
	allocationID := store.NewID()

	if err := a.store.SaveAllocation(ctx, allocationID, rows); err != nil {
		return "", err
	}

	record := store.TaskRecord{
		AssetSymbols:     task.AssetSymbols,
		TotalInvestment:  task.TotalInvestment,
		StartDate:        task.StartDate,
		EndDate:          task.EndDate,
		RiskFreeRate:     task.RiskFreeRate,
		TargetReturn:     task.TargetReturn,
		TargetVolatility: task.TargetVolatility,
		Date:             time.Now().UTC().Format(time.RFC3339),
	}
	if err := a.store.SaveTask(ctx, allocationID, record); err != nil {
		return "", err
	}

	return allocationID, nil
}

// needsAllocation asks the classifier whether to run an allocation now,
// retrying while the model answers something that is not a boolean.
func (a *Agent) needsAllocation(ctx context.Context, chat []ChatMessage) (bool, error) {
	prompt := fmt.Sprintf(needAllocationPrompt, renderConversation(chat))

	var lastErr error
	for attempt := 0; attempt < maxLLMAttempts; attempt++ {
		answer, err := a.llm.Complete(ctx, []ChatMessage{{Role: "user", Content: prompt}}, 0.0)
		if err != nil {
			lastErr = err
			continue
		}
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(strings.Trim(answer, ".!"))))
		if err != nil {
			lastErr = fmt.Errorf("classifier returned a non-boolean answer %q", answer)
			continue
		}
		return parsed, nil
	}

	return false, fmt.Errorf("failed to classify allocation intent after %d attempts: %w", maxLLMAttempts, lastErr)
}

// extractTask asks the extraction model for a structured task, retrying on
// malformed or invalid responses.
func (a *Agent) extractTask(ctx context.Context, chat []ChatMessage) (*TaskStructure, error) {
	prompt := fmt.Sprintf(extractTaskPrompt, renderConversation(chat))

	var lastErr error
	for attempt := 0; attempt < maxLLMAttempts; attempt++ {
		answer, err := a.llm.Complete(ctx, []ChatMessage{{Role: "user", Content: prompt}}, 0.0)
		if err != nil {
			lastErr = err
			continue
		}

		var task TaskStructure
		if err := json.Unmarshal([]byte(extractJSON(answer)), &task); err != nil {
			lastErr = fmt.Errorf("extraction returned malformed JSON: %w", err)
			continue
		}
		task.ApplyDefaults()
		if err := task.Validate(a.validate); err != nil {
			lastErr = err
			continue
		}
		return &task, nil
	}

	return nil, fmt.Errorf("failed to extract task structure after %d attempts: %w", maxLLMAttempts, lastErr)
}

// streamSummary streams the final assistant response as message chunks.
func (a *Agent) streamSummary(ctx context.Context, chat []ChatMessage, emit Emitter) error {
	messages := append([]ChatMessage{{Role: "system", Content: systemPrompt}}, chat...)

	return a.llm.StreamCompletion(ctx, messages, 0.7, func(delta string) error {
		return emit(&events.MessageChunkData{Delta: delta})
	})
}

// extractJSON strips a markdown code fence if the model wrapped its JSON.
func extractJSON(answer string) string {
	trimmed := strings.TrimSpace(answer)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed)
}

// renderMarkdownTable renders allocation rows for the summary prompt.
func renderMarkdownTable(rows []allocation.Row) string {
	var b strings.Builder
	b.WriteString("\n| Risk Model | Ticker | Weight | Quantity | Note |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, row := range rows {
		note := ""
		if row.Note != nil {
			note = *row.Note
		}
		fmt.Fprintf(&b, "| %s | %s | %.4f | %d | %s |\n", row.RiskModel, row.Ticker, row.Weight, row.Quantity, note)
	}
	return b.String()
}
