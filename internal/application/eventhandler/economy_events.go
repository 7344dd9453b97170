// Package eventhandler содержит обработчики доменных событий экономики.
package eventhandler

import (
	"fmt"

	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ECONOMY EVENTS HANDLER
// Подписывается на все события экономики и превращает их в метрики
// и структурированные записи журнала.
//
// Обработчик вызывается уже после сохранения записи, поэтому его ошибки
// никогда не влияют на результат операции.
// ═══════════════════════════════════════════════════════════════════════════

// EconomyMetrics: счётчики, которые обновляет обработчик.
// Реализуется пакетом monitoring.
type EconomyMetrics interface {
	RecordProvisioned()
	RecordHeartsSpent(amount int)
	RecordHeartRefill()
	RecordPurchase(powerUp string, cost int)
	RecordQuestCompleted(questID string, rewardGems int)
	RecordLesson()
	RecordStreakUpdate(protectedBy string)
	RecordStreakBroken()
	RecordWagerSettled(result string, payout int)
}

// EconomyEventsHandler обрабатывает события экономики.
type EconomyEventsHandler struct {
	metrics EconomyMetrics
	log     *logger.Logger
}

// NewEconomyEventsHandler создаёт обработчик. metrics может быть nil,
// тогда события только журналируются.
func NewEconomyEventsHandler(metrics EconomyMetrics, log *logger.Logger) *EconomyEventsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EconomyEventsHandler{
		metrics: metrics,
		log:     log.With(logger.Component("economy_events")),
	}
}

// Register подписывает обработчик на все события шины.
func (h *EconomyEventsHandler) Register(bus shared.EventSubscriber) error {
	if err := bus.SubscribeAll(h.Handle); err != nil {
		return fmt.Errorf("register economy events handler: %w", err)
	}
	return nil
}

// Handle обрабатывает одно событие.
func (h *EconomyEventsHandler) Handle(event shared.Event) error {
	log := h.log.With(
		logger.EventType(string(event.EventType())),
		logger.UserID(event.AggregateID()),
	)

	switch e := event.(type) {
	case shared.EconomyProvisionedEvent:
		h.record(func(m EconomyMetrics) { m.RecordProvisioned() })
		log.Info("economy provisioned", logger.Gems(e.Gems), logger.Hearts(e.Hearts))

	case shared.HeartsSpentEvent:
		h.record(func(m EconomyMetrics) { m.RecordHeartsSpent(e.Amount) })
		log.Debug("hearts spent", logger.Int("amount", e.Amount), logger.Hearts(e.Remaining))

	case shared.HeartsRefilledEvent:
		h.record(func(m EconomyMetrics) { m.RecordHeartRefill() })
		log.Debug("hearts refilled", logger.Hearts(e.Hearts))

	case shared.PowerUpPurchasedEvent:
		h.record(func(m EconomyMetrics) { m.RecordPurchase(e.PowerUp, e.Cost) })
		log.Info("power-up purchased",
			logger.PowerUp(e.PowerUp),
			logger.Int("cost", e.Cost),
			logger.Gems(e.GemsAfter),
		)

	case shared.QuestCompletedEvent:
		h.record(func(m EconomyMetrics) { m.RecordQuestCompleted(e.QuestID, e.RewardGems) })
		log.Info("quest completed", logger.QuestID(e.QuestID), logger.Gems(e.RewardGems))

	case shared.LessonRecordedEvent:
		h.record(func(m EconomyMetrics) { m.RecordLesson() })
		log.Debug("lesson recorded",
			logger.Int("xp", e.XPEarned),
			logger.Int("seconds", e.TimeSpentSeconds),
		)

	case shared.StreakUpdatedEvent:
		h.record(func(m EconomyMetrics) { m.RecordStreakUpdate(e.ProtectedBy) })
		log.Debug("streak updated",
			logger.Streak(e.CurrentStreak),
			logger.Int("longest", e.LongestStreak),
			logger.String("protected_by", e.ProtectedBy),
		)

	case shared.StreakBrokenEvent:
		h.record(func(m EconomyMetrics) { m.RecordStreakBroken() })
		log.Info("streak broken",
			logger.Int("previous_streak", e.PreviousStreak),
			logger.Int("days_missed", e.DaysMissed),
		)

	case shared.WagerSettledEvent:
		h.record(func(m EconomyMetrics) { m.RecordWagerSettled(e.Result, e.Payout) })
		log.Info("wager settled", logger.String("result", e.Result), logger.Gems(e.Payout))

	default:
		// Неизвестные события не ошибка: шина общая.
		log.Debug("event ignored")
	}

	return nil
}

func (h *EconomyEventsHandler) record(fn func(EconomyMetrics)) {
	if h.metrics != nil {
		fn(h.metrics)
	}
}
