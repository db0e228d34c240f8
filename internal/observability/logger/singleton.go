package logger

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance atomic.Pointer[zap.Logger]
)

// Init inicializa el logger singleton con la configuración dada.
// Es idempotente: solo la primera llamada (o el primer L()) tiene efecto.
// Debe llamarse al inicio de la aplicación (main.go).
func Init(cfg Config) {
	once.Do(func() {
		instance.Store(build(cfg))
	})
}

// L retorna el logger singleton.
// Si Init() no fue llamado, crea un logger por defecto (dev, info).
func L() *zap.Logger {
	once.Do(func() {
		instance.Store(build(Config{Env: "dev", Level: "info"}))
	})
	return instance.Load()
}

// Replace cambia el singleton y devuelve una función que restaura el anterior.
// Pensado para tests y para el CLI (que loguea a stderr sin caller).
func Replace(l *zap.Logger) (restore func()) {
	prev := L()
	instance.Store(l)
	return func() { instance.Store(prev) }
}

// Sync flushea cualquier buffer pendiente.
// Debe llamarse con defer en main.go.
func Sync() error {
	if l := instance.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
