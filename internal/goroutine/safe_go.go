package goroutine

import (
	"runtime/debug"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go rh.Run(fn)
}

// Run выполняет fn в текущей горутине и гасит panic с записью стека.
func (rh *RecoveryHandler) Run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rh.logger.Errorf("panic: %v\nstack:\n%s", r, debug.Stack())
		}
	}()
	fn()
}
