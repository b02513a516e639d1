package state

// Manager stores one conversation record per chat. A chat without a record is idle.
type Manager[T any] interface {
	Get(chatID int64) (T, bool)
	Set(chatID int64, record T)
	Clear(chatID int64)
	InProgress(chatID int64) bool
	Len() int
}
