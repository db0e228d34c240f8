// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: Una sola instancia global inicializada con Init().
//   - Context Scoping: Cada request puede tener su propio logger "scoped" con campos
//     adicionales (request_id, client_id, grant_type) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via AUTHCORE_LOG_LEVEL).
//   - Secretos: nunca se loguean secrets, passwords ni tokens completos; para
//     tokens se usa JTI().
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,      // "dev" o "prod"
//	    Level: cfg.App.LogLevel, // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En handlers/services (con contexto):
//
//	log := logger.From(ctx)
//	log.Info("token issued", logger.ClientID(clientID), logger.JTI(jti))
//
// Sin contexto (fallback a singleton):
//
//	logger.L().Info("application started")
package logger
