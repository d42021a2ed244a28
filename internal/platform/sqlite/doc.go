// Package sqlite реализует архив истории журнала задач на SQLite.
//
// Схема встроена в бинарник и применяется golang-migrate при открытии:
//
//	a, err := sqlite.NewArchive(ctx, "data/history.db", logger)
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
// Archive подходит как приёмник logstore.WithSink, Recent читает историю
// новыми записями вперёд.
package sqlite
