package sequencer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

const defaultInitTimeout = 5 * time.Second

// Option настраивает Sequencer.
type Option func(*Sequencer)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// WithMetrics задаёт метрики инициализации.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

// WithInitTimeout ограничивает время чтения последнего номера из хранилища.
func WithInitTimeout(timeout time.Duration) Option {
	return func(s *Sequencer) {
		if timeout > 0 {
			s.initTimeout = timeout
		}
	}
}

// Sequencer выдаёт монотонно растущие порядковые номера заказов.
// Счётчик восстанавливается из последнего сохранённого номера один раз за жизнь процесса.
type Sequencer struct {
	repo        domain.OrderRepository
	logger      *log.Entry
	metrics     *metrics.OrderMetrics
	initTimeout time.Duration

	mu          sync.Mutex
	initialized atomic.Bool
	next        atomic.Int64
}

// New создаёт генератор поверх репозитория заказов.
func New(repo domain.OrderRepository, options ...Option) *Sequencer {
	s := &Sequencer{
		repo:        repo,
		initTimeout: defaultInitTimeout,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "order-sequencer")
	}
	return s
}

// Init восстанавливает счётчик из хранилища. Повторные вызовы ничего не делают.
// Ошибки чтения и разбора не возвращаются: счётчик начинает с 1.
func (s *Sequencer) Init(ctx context.Context) {
	if s.initialized.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized.Load() {
		return
	}

	s.next.Store(s.loadStart(ctx))
	s.initialized.Store(true)
}

// Next возвращает следующий порядковый номер. При первом вызове выполняет Init.
func (s *Sequencer) Next(ctx context.Context) int64 {
	s.Init(ctx)
	return s.next.Add(1) - 1
}

// Initialized сообщает, был ли счётчик восстановлен.
func (s *Sequencer) Initialized() bool {
	return s.initialized.Load()
}

func (s *Sequencer) loadStart(ctx context.Context) int64 {
	if s.repo == nil {
		s.metrics.RecordSequencerInit(metrics.SequencerSourceEmpty)
		return 1
	}

	// Инициализация не должна обрываться вместе с запросом, который её вызвал.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.initTimeout)
	defer cancel()

	last, ok, err := s.repo.FindLastOrderNumber(loadCtx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load last order number, starting sequence from 1")
		s.metrics.RecordSequencerInit(metrics.SequencerSourceFallback)
		return 1
	}
	if !ok {
		s.logger.Info("no orders found, starting sequence from 1")
		s.metrics.RecordSequencerInit(metrics.SequencerSourceEmpty)
		return 1
	}

	seq, err := domain.ParseOrderSequence(last)
	if err != nil {
		s.logger.WithError(err).WithField("order_number", last).Warn("failed to parse last order number, starting sequence from 1")
		s.metrics.RecordSequencerInit(metrics.SequencerSourceFallback)
		return 1
	}

	s.logger.WithFields(log.Fields{
		"last_order_number": last,
		"next_sequence":     seq + 1,
	}).Info("order sequence restored")
	s.metrics.RecordSequencerInit(metrics.SequencerSourceStore)
	return seq + 1
}
