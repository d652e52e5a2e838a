package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/metrics"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/hyperjump/tanya/internal/search")

// State is a step of the answer flow.
type State string

const (
	StateReceived   State = "received"
	StateEmbedding  State = "embedding"
	StateRetrieving State = "retrieving"
	StateNoEvidence State = "no_evidence"
	StateSelecting  State = "selecting"
	StateGenerating State = "generating"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Engine answers questions against the vector store and records the exchange.
type Engine struct {
	store         vector.Store
	embedder      embedding.Embedder
	generator     llm.Generator
	conversations storage.ConversationStore
	config        *config.RetrievalConfig
	logger        *zap.Logger
	metrics       *metrics.Metrics
	intn          func(n int) int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records answer outcomes on m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithRandom replaces the source used to pick a fallback answer. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) EngineOption {
	return func(e *Engine) { e.intn = intn }
}

// NewEngine creates an answer engine with the given dependencies.
func NewEngine(
	store vector.Store,
	embedder embedding.Embedder,
	generator llm.Generator,
	conversations storage.ConversationStore,
	cfg *config.RetrievalConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		store:         store,
		embedder:      embedder,
		generator:     generator,
		conversations: conversations,
		config:        cfg,
		logger:        zap.NewNop(),
		intn:          rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer runs the full question flow for q. The user turn is recorded before retrieval and
// the assistant turn after generation, or the fallback reply when no evidence is found.
// Conversation store failures are logged and never returned.
func (e *Engine) Answer(ctx context.Context, q *models.Question) (*models.Answer, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "search.Answer",
		trace.WithAttributes(attribute.String("mode", q.Mode.String())))
	defer span.End()

	ans, outcome, err := e.answer(ctx, span, q)
	e.metrics.ObserveAnswer(q.Mode.String(), outcome, time.Since(start))
	if err != nil {
		e.transition(span, StateFailed, zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	e.transition(span, StateDone, zap.Bool("fallback", ans.Fallback))
	return ans, nil
}

func (e *Engine) answer(ctx context.Context, span trace.Span, q *models.Question) (*models.Answer, string, error) {
	if err := q.Validate(); err != nil {
		return nil, "invalid", err
	}
	convNS := q.ConversationNamespace()
	e.transition(span, StateReceived, zap.String("namespace", convNS))
	e.persist(ctx, convNS, models.SenderUser, q.Text, nil)

	text := q.Text
	if q.Mode == models.ModeGlobal && e.config.GlobalQuestionSuffix != "" {
		text += " " + e.config.GlobalQuestionSuffix
	}

	e.transition(span, StateEmbedding)
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, "retrieval_failed", fmt.Errorf("%w: embed question: %w", models.ErrRetrievalFailed, err)
	}

	e.transition(span, StateRetrieving)
	matches, err := e.retrieve(ctx, q, vec)
	if err != nil {
		return nil, "retrieval_failed", fmt.Errorf("%w: %w", models.ErrRetrievalFailed, err)
	}

	maxSources := e.config.MaxSources
	if q.Mode == models.ModeGlobal {
		maxSources = e.config.GlobalMaxSources
	}
	ev, err := Select(matches, SelectOptions{Mode: q.Mode, MaxSources: maxSources, CharBudget: e.config.CharBudget})
	if errors.Is(err, models.ErrNoEvidence) {
		e.transition(span, StateNoEvidence, zap.Int("matches", len(matches)))
		reply := e.pickFallback()
		e.persist(ctx, convNS, models.SenderAssistant, reply, nil)
		return &models.Answer{Text: reply, Sources: []string{}, Fallback: true}, "fallback", nil
	}
	if err != nil {
		return nil, "retrieval_failed", fmt.Errorf("%w: %w", models.ErrRetrievalFailed, err)
	}
	e.transition(span, StateSelecting,
		zap.Strings("sources", ev.Keys),
		zap.Int("evidence_chars", len([]rune(ev.Text))),
	)

	e.transition(span, StateGenerating)
	reply, err := e.generator.Complete(ctx, systemPrompt(q.Mode), userPrompt(q.Mode, text, ev.Text))
	if err != nil {
		return nil, "generation_failed", fmt.Errorf("%w: %w", models.ErrGenerationFailed, err)
	}

	e.transition(span, StatePersisting)
	e.persist(ctx, convNS, models.SenderAssistant, reply, ev.Keys)
	return &models.Answer{Text: reply, Sources: ev.Keys}, "answered", nil
}

func (e *Engine) retrieve(ctx context.Context, q *models.Question, vec []float32) ([]models.Match, error) {
	if q.Mode == models.ModeNamespace {
		return e.store.Query(ctx, q.Namespace, vec, e.config.TopK)
	}
	res, err := vector.QueryFederated(ctx, e.store, vec, e.config.GlobalTopK, vector.FederatedOptions{
		Timeout:     e.config.FederatedTimeout,
		Concurrency: e.config.FederatedConcurrency,
		Logger:      e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveFanout(len(res.Namespaces))
	return res.Matches, nil
}

func (e *Engine) persist(ctx context.Context, namespace string, sender models.Sender, message string, sources []string) {
	turn := &models.ConversationTurn{
		Namespace: namespace,
		Sender:    sender,
		Message:   message,
		Sources:   sources,
	}
	if err := e.conversations.Append(ctx, turn); err != nil {
		e.logger.Warn("failed to record conversation turn",
			zap.String("namespace", namespace),
			zap.String("sender", string(sender)),
			zap.Error(err),
		)
	}
}

func (e *Engine) transition(span trace.Span, st State, fields ...zap.Field) {
	span.AddEvent(string(st))
	if ce := e.logger.Check(zap.DebugLevel, "answer state"); ce != nil {
		ce.Write(append([]zap.Field{zap.String("state", string(st))}, fields...)...)
	}
}

// History returns the conversation turns recorded under namespace, oldest first.
func (e *Engine) History(ctx context.Context, namespace string) ([]models.ConversationTurn, error) {
	return e.conversations.ReadAll(ctx, namespace)
}

// Namespaces lists the namespaces that currently hold chunks.
func (e *Engine) Namespaces(ctx context.Context) ([]string, error) {
	return e.store.ListNamespaces(ctx)
}

// DeleteNamespace removes every chunk of namespace from the vector store. Conversation
// history is kept.
func (e *Engine) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := models.ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := e.store.DeleteNamespace(ctx, namespace); err != nil {
		return err
	}
	e.logger.Info("namespace deleted", zap.String("namespace", namespace))
	return nil
}
