// Package economy содержит доменную модель прогрессии ученика: сердца (жизни),
// кристаллы (валюта), серии дней, ежедневные задания и усилители.
//
// Пакет определяет:
//
//   - Запись экономики (Record) и её нормализацию из частично заполненной
//     сохранённой записи (RawRecord)
//   - Ленивое восстановление сердец (RegenerateHearts, HeartRegenInfo)
//   - Учёт серии дней (UpdateStreak) с заморозками и щитами
//   - Ежедневные задания (EnsureDailyStats, ApplyRewards, QuestStates)
//   - Покупку усилителей (Purchase, RefillHearts) и ставку "всё или ничего"
//   - Интерфейсы хранилища (Repository) и пользовательской блокировки (Locker)
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Чистые функции над (запись, now) - никаких таймеров и фоновых задач
//  3. Ошибки обнаруживаются до любой мутации: неудачная операция не меняет запись
//
// # Время
//
// Все расчёты календарных дней ведутся в локации значения now, которое
// передаёт вызывающий код (обычно timeutil.Clock). Дата хранится как полночь
// этого дня.
//
// # Пример
//
//	rec, changed := economy.Normalize(raw, now, cfg)
//	economy.RegenerateHearts(&rec, now, cfg.RegenInterval)
//	if _, err := economy.Purchase(&rec, economy.PowerUpStreakShield, now); err != nil {
//	    return err
//	}
package economy
