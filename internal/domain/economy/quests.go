package economy

import (
	"time"

	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY QUESTS
// ══════════════════════════════════════════════════════════════════════════════

// QuestType - дневной счётчик, к которому привязано задание.
type QuestType string

const (
	QuestXP      QuestType = "xp"
	QuestLessons QuestType = "lessons"
	QuestTime    QuestType = "time"
)

// Quest - запись каталога ежедневных заданий.
type Quest struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Type       QuestType `json:"type"`
	Target     int       `json:"target"`
	RewardGems int       `json:"rewardGems"`
}

// Идентификаторы заданий.
const (
	QuestDailyXP        = "daily_xp"
	QuestDailyLessons   = "daily_lessons"
	QuestDailyStudyTime = "daily_study_time"
)

var questCatalog = []Quest{
	{ID: QuestDailyXP, Title: "Earn 50 XP", Type: QuestXP, Target: 50, RewardGems: 20},
	{ID: QuestDailyLessons, Title: "Complete 3 lessons", Type: QuestLessons, Target: 3, RewardGems: 30},
	{ID: QuestDailyStudyTime, Title: "Study for 10 minutes", Type: QuestTime, Target: 600, RewardGems: 25},
}

// Catalog возвращает копию каталога заданий.
func Catalog() []Quest {
	out := make([]Quest, len(questCatalog))
	copy(out, questCatalog)
	return out
}

// QuestState - задание с прогрессом пользователя на сегодня.
type QuestState struct {
	Quest
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
}

// QuestRewards - награда за задания, выполненные одной активностью.
type QuestRewards struct {
	Gems   int     `json:"gems"`
	Quests []Quest `json:"quests"`
}

// EnsureDailyStats сбрасывает дневные счётчики, если они относятся не к
// сегодняшнему дню. Повторный вызов в тот же день ничего не меняет.
func EnsureDailyStats(r *Record, now time.Time) bool {
	loc := now.Location()
	if r.DailyLessonDate != nil && timeutil.SameDay(*r.DailyLessonDate, now, loc) {
		return false
	}

	today := timeutil.StartOfDay(now, loc)
	r.DailyLessonDate = &today
	r.DailyXP = 0
	r.DailyLessonCount = 0
	r.DailyStudySeconds = 0
	r.DailyQuestCompletions = nil
	return true
}

// RecordLesson добавляет урок к дневным счётчикам.
// Счётчики должны быть актуальны (EnsureDailyStats).
func RecordLesson(r *Record, xpEarned, timeSpentSeconds int) {
	r.DailyXP += xpEarned
	r.DailyLessonCount++
	r.DailyStudySeconds += timeSpentSeconds
}

// Progress возвращает значение счётчика, соответствующего типу задания.
func Progress(r Record, q Quest) int {
	switch q.Type {
	case QuestXP:
		return r.DailyXP
	case QuestLessons:
		return r.DailyLessonCount
	case QuestTime:
		return r.DailyStudySeconds
	default:
		return 0
	}
}

// CompletedToday сообщает, отмечено ли задание выполненным в день now.
func CompletedToday(r Record, questID string, now time.Time) bool {
	loc := now.Location()
	for _, c := range r.DailyQuestCompletions {
		if c.QuestID == questID && timeutil.SameDay(c.CompletedAt, now, loc) {
			return true
		}
	}
	return false
}

// ApplyRewards выдаёт награды за задания, достигшие цели и ещё не отмеченные
// сегодня. Кристаллы зачисляются на баланс. Идемпотентность обеспечивает
// журнал выполнений: повторный вызов в тот же день ничего не выдаёт.
func ApplyRewards(r *Record, now time.Time) QuestRewards {
	var rewards QuestRewards
	for _, q := range questCatalog {
		if Progress(*r, q) < q.Target || CompletedToday(*r, q.ID, now) {
			continue
		}
		r.DailyQuestCompletions = append(r.DailyQuestCompletions, QuestCompletion{
			QuestID:     q.ID,
			CompletedAt: now,
		})
		rewards.Gems += q.RewardGems
		rewards.Quests = append(rewards.Quests, q)
	}
	r.Gems += rewards.Gems
	return rewards
}

// QuestStates возвращает прогресс по всему каталогу.
func QuestStates(r Record, now time.Time) []QuestState {
	states := make([]QuestState, 0, len(questCatalog))
	for _, q := range questCatalog {
		states = append(states, QuestState{
			Quest:     q,
			Progress:  Progress(r, q),
			Completed: CompletedToday(r, q.ID, now),
		})
	}
	return states
}

// ResetInSeconds - секунды до следующей локальной полуночи.
func ResetInSeconds(now time.Time) int64 {
	return timeutil.SecondsUntilMidnight(now)
}
