package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const DefaultTopK = 3

// AnswerUseCase runs the query pipeline: receive, embed, retrieve, compose,
// call the model. It holds no per-request state and is safe for concurrent use.
type AnswerUseCase struct {
	retriever port.Retriever
	llm       port.LLM
	topK      int
	logger    *slog.Logger
}

func NewAnswerUseCase(retriever port.Retriever, llm port.LLM, topK int, logger *slog.Logger) *AnswerUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		retriever: retriever,
		llm:       llm,
		topK:      topK,
		logger:    logger,
	}
}

// Answer returns the model's answer to question. The returned Answer echoes
// question exactly as given; retrieval and the prompt use it trimmed. Errors
// are *domain.StageError wrapping the domain sentinel of the failing stage.
func (u *AnswerUseCase) Answer(ctx context.Context, question string) (domain.Answer, error) {
	start := time.Now()

	query := strings.TrimSpace(question)
	if query == "" {
		return domain.Answer{}, u.fail(ctx, domain.StageReceive,
			fmt.Errorf("%w: question must not be empty", domain.ErrInvalidInput))
	}
	u.logger.DebugContext(ctx, "stage", "stage", domain.StageReceive, "question_len", len(query))

	// the retriever embeds the query, so its error decides which stage failed
	u.logger.DebugContext(ctx, "stage", "stage", domain.StageEmbed)
	chunks, err := u.retriever.Search(ctx, query, u.topK)
	if err != nil {
		stage := domain.StageRetrieve
		if errors.Is(err, domain.ErrEmbedding) {
			stage = domain.StageEmbed
		}
		return domain.Answer{}, u.fail(ctx, stage, err)
	}
	u.logger.DebugContext(ctx, "stage", "stage", domain.StageRetrieve, "chunks", len(chunks))

	prompt := ComposePrompt(query, chunks)
	u.logger.DebugContext(ctx, "stage", "stage", domain.StageCompose, "prompt_len", len(prompt))

	answer, err := u.llm.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		if !errors.Is(err, domain.ErrLLMService) {
			err = &domain.LLMError{Reason: domain.LLMReasonNetwork, Err: err}
		}
		return domain.Answer{}, u.fail(ctx, domain.StageLLM, err)
	}
	u.logger.DebugContext(ctx, "stage", "stage", domain.StageLLM, "answer_len", len(answer))

	u.logger.InfoContext(ctx, "answered question",
		"chunks", len(chunks),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return domain.Answer{Question: question, Answer: answer}, nil
}

func (u *AnswerUseCase) fail(ctx context.Context, stage domain.Stage, err error) error {
	u.logger.WarnContext(ctx, "query failed", "stage", stage, "error", err)
	return &domain.StageError{Stage: stage, Err: err}
}

// WarnOnModelMismatch logs when the query embedder differs from the model
// recorded at ingestion time. Distances are meaningless across models, but
// nothing stops the query.
func WarnOnModelMismatch(manifest domain.Manifest, embedder port.Embedder, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if manifest.EmbeddingModel != "" && manifest.EmbeddingModel != embedder.ModelName() {
		logger.Warn("embedding model differs from the one used at ingestion",
			"indexed_with", manifest.EmbeddingModel,
			"querying_with", embedder.ModelName(),
		)
	}
	if manifest.Dimension != embedder.Dimension() {
		logger.Warn("embedding dimension differs from the index",
			"index", manifest.Dimension,
			"embedder", embedder.Dimension(),
		)
	}
}
