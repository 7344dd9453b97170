// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents a committed change of an
// economy record; events are published only after the record was saved.
const (
	EventEconomyProvisioned EventType = "economy.provisioned"

	EventHeartsSpent    EventType = "hearts.spent"
	EventHeartsRefilled EventType = "hearts.refilled"

	EventPowerUpPurchased EventType = "powerup.purchased"
	EventWagerSettled     EventType = "powerup.wager_settled"

	EventQuestCompleted EventType = "quest.completed"
	EventLessonRecorded EventType = "lesson.recorded"

	EventStreakUpdated EventType = "streak.updated"
	EventStreakBroken  EventType = "streak.broken"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Economy Events
// ═══════════════════════════════════════════════════════════════════════════

// EconomyProvisionedEvent is emitted when a user's economy record is created.
type EconomyProvisionedEvent struct {
	BaseEvent
	Gems   int `json:"gems"`
	Hearts int `json:"hearts"`
}

// Payload implements Event interface.
func (e EconomyProvisionedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"gems":   e.Gems,
		"hearts": e.Hearts,
	}
}

// NewEconomyProvisionedEvent creates a new EconomyProvisionedEvent.
func NewEconomyProvisionedEvent(userID string, gems, hearts int, at time.Time) EconomyProvisionedEvent {
	return EconomyProvisionedEvent{
		BaseEvent: NewBaseEvent(EventEconomyProvisioned, userID, at),
		Gems:      gems,
		Hearts:    hearts,
	}
}

// HeartsSpentEvent is emitted when hearts are deducted.
type HeartsSpentEvent struct {
	BaseEvent
	Amount    int `json:"amount"`
	Remaining int `json:"remaining"`
}

// Payload implements Event interface.
func (e HeartsSpentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":    e.Amount,
		"remaining": e.Remaining,
	}
}

// NewHeartsSpentEvent creates a new HeartsSpentEvent.
func NewHeartsSpentEvent(userID string, amount, remaining int, at time.Time) HeartsSpentEvent {
	return HeartsSpentEvent{
		BaseEvent: NewBaseEvent(EventHeartsSpent, userID, at),
		Amount:    amount,
		Remaining: remaining,
	}
}

// HeartsRefilledEvent is emitted when hearts are refilled for gems.
type HeartsRefilledEvent struct {
	BaseEvent
	Cost   int `json:"cost"`
	Hearts int `json:"hearts"`
}

// Payload implements Event interface.
func (e HeartsRefilledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cost":   e.Cost,
		"hearts": e.Hearts,
	}
}

// NewHeartsRefilledEvent creates a new HeartsRefilledEvent.
func NewHeartsRefilledEvent(userID string, cost, hearts int, at time.Time) HeartsRefilledEvent {
	return HeartsRefilledEvent{
		BaseEvent: NewBaseEvent(EventHeartsRefilled, userID, at),
		Cost:      cost,
		Hearts:    hearts,
	}
}

// PowerUpPurchasedEvent is emitted after a successful power-up purchase.
type PowerUpPurchasedEvent struct {
	BaseEvent
	PowerUp   string `json:"power_up"`
	Cost      int    `json:"cost"`
	GemsAfter int    `json:"gems_after"`
}

// Payload implements Event interface.
func (e PowerUpPurchasedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"power_up":   e.PowerUp,
		"cost":       e.Cost,
		"gems_after": e.GemsAfter,
	}
}

// NewPowerUpPurchasedEvent creates a new PowerUpPurchasedEvent.
func NewPowerUpPurchasedEvent(userID, powerUp string, cost, gemsAfter int, at time.Time) PowerUpPurchasedEvent {
	return PowerUpPurchasedEvent{
		BaseEvent: NewBaseEvent(EventPowerUpPurchased, userID, at),
		PowerUp:   powerUp,
		Cost:      cost,
		GemsAfter: gemsAfter,
	}
}

// WagerSettledEvent is emitted when a double-or-nothing wager is won or lost.
type WagerSettledEvent struct {
	BaseEvent
	Result string `json:"result"`
	Payout int    `json:"payout"`
}

// Payload implements Event interface.
func (e WagerSettledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"result": e.Result,
		"payout": e.Payout,
	}
}

// NewWagerSettledEvent creates a new WagerSettledEvent.
func NewWagerSettledEvent(userID, result string, payout int, at time.Time) WagerSettledEvent {
	return WagerSettledEvent{
		BaseEvent: NewBaseEvent(EventWagerSettled, userID, at),
		Result:    result,
		Payout:    payout,
	}
}

// QuestCompletedEvent is emitted once per quest per day when its reward is granted.
type QuestCompletedEvent struct {
	BaseEvent
	QuestID    string `json:"quest_id"`
	RewardGems int    `json:"reward_gems"`
}

// Payload implements Event interface.
func (e QuestCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"quest_id":    e.QuestID,
		"reward_gems": e.RewardGems,
	}
}

// NewQuestCompletedEvent creates a new QuestCompletedEvent.
func NewQuestCompletedEvent(userID, questID string, rewardGems int, at time.Time) QuestCompletedEvent {
	return QuestCompletedEvent{
		BaseEvent:  NewBaseEvent(EventQuestCompleted, userID, at),
		QuestID:    questID,
		RewardGems: rewardGems,
	}
}

// LessonRecordedEvent is emitted for every recorded lesson completion.
type LessonRecordedEvent struct {
	BaseEvent
	XPEarned         int `json:"xp_earned"`
	TimeSpentSeconds int `json:"time_spent_seconds"`
}

// Payload implements Event interface.
func (e LessonRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"xp_earned":          e.XPEarned,
		"time_spent_seconds": e.TimeSpentSeconds,
	}
}

// NewLessonRecordedEvent creates a new LessonRecordedEvent.
func NewLessonRecordedEvent(userID string, xpEarned, timeSpentSeconds int, at time.Time) LessonRecordedEvent {
	return LessonRecordedEvent{
		BaseEvent:        NewBaseEvent(EventLessonRecorded, userID, at),
		XPEarned:         xpEarned,
		TimeSpentSeconds: timeSpentSeconds,
	}
}

// StreakUpdatedEvent is emitted when the streak counter moves.
type StreakUpdatedEvent struct {
	BaseEvent
	PreviousStreak int    `json:"previous_streak"`
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	ProtectedBy    string `json:"protected_by,omitempty"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
		"current_streak":  e.CurrentStreak,
		"longest_streak":  e.LongestStreak,
		"protected_by":    e.ProtectedBy,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, previous, current, longest int, protectedBy string, at time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:      NewBaseEvent(EventStreakUpdated, userID, at),
		PreviousStreak: previous,
		CurrentStreak:  current,
		LongestStreak:  longest,
		ProtectedBy:    protectedBy,
	}
}

// StreakBrokenEvent is emitted when a gap resets the streak to 1.
type StreakBrokenEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
	DaysMissed     int `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak, daysMissed int, at time.Time) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID, at),
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
