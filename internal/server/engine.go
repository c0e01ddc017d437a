package server

import (
	"strings"
	"sync"
	"time"

	"github.com/eternalApril/moonbeam/internal/config"
	"github.com/eternalApril/moonbeam/internal/resp"
	"github.com/eternalApril/moonbeam/internal/storage"
	"go.uber.org/zap"
)

// Engine coordinates the execution of commands and manages the background
// tasks of the keyspace
type Engine struct {
	commands map[string]command // Registry of available commands (the key is the command name in uppercase)
	storage  storage.Storage    // Interface to the underlying KV storage
	cfg      *config.Config     // Configuration engine
	limits   resp.Limits        // Wire limits handed to every connection
	stopGC   chan struct{}      // Channel for the background GC stop signal
	stopOnce sync.Once          // Ensures that the stop happens only once
	logger   *zap.Logger
}

// NewEngine initializes the engine, registers the basic commands, and
// if enabled in the config, starts background cleanup of outdated keys
func NewEngine(s storage.Storage, cfg *config.Config, logger *zap.Logger) *Engine {
	engine := &Engine{
		commands: make(map[string]command),
		storage:  s,
		cfg:      cfg,
		limits:   limitsFromConfig(cfg),
		stopGC:   make(chan struct{}),
		logger:   logger,
	}
	engine.registerBasicCommand()

	if cfg.GC.Enabled {
		go engine.startGCLoop()
	}

	return engine
}

func limitsFromConfig(cfg *config.Config) resp.Limits {
	limits := resp.DefaultLimits()
	if cfg.Limits.MaxBulkLen > 0 {
		limits.MaxBulkLen = cfg.Limits.MaxBulkLen
	}
	if cfg.Limits.MaxArrayLen > 0 {
		limits.MaxArrayLen = cfg.Limits.MaxArrayLen
	}
	if cfg.Limits.MaxDepth > 0 {
		limits.MaxDepth = cfg.Limits.MaxDepth
	}
	return limits
}

// Limits returns the wire limits each connection must enforce
func (e *Engine) Limits() resp.Limits {
	return e.limits
}

// startGCLoop triggers the active expiration mechanism
func (e *Engine) startGCLoop() {
	interval := e.cfg.GC.Interval
	if interval <= 0 {
		// a ticker panics on a non-positive interval
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				stats := e.storage.DeleteExpired(e.cfg.GC.SamplesPerCheck)

				if stats > 0 {
					e.logger.Debug("GC delete expired", zap.Float64("expired_ratio", stats))
				}

				// a hot sample means many more expired keys are likely
				// waiting, repeat without waiting for the next tick
				if stats == 0 || stats < e.cfg.GC.MatchThreshold {
					break
				}
			}
		case <-e.stopGC:
			e.logger.Info("GC stopped")
			return
		}
	}
}

// register adds a new command to the engine. The command name is uppercase
func (e *Engine) register(name string, cmd command) {
	e.commands[strings.ToUpper(name)] = cmd
}

// registerBasicCommand fills the registry with standard commands
func (e *Engine) registerBasicCommand() {
	e.register("PING", commandFunc(ping))
	e.register("ECHO", commandFunc(echo))
	e.register("GET", commandFunc(get))
	e.register("SET", commandFunc(set))
	e.register("DEL", commandFunc(del))
	e.register("EXISTS", commandFunc(exists))
	e.register("TTL", commandFunc(ttl))
	e.register("PTTL", commandFunc(pttl))
	e.register("PERSIST", commandFunc(persist))
	e.register("TYPE", commandFunc(typeOf))
	e.register("KEYS", commandFunc(keys))
	e.register("DBSIZE", commandFunc(dbsize))
	e.register("COMMAND", commandFunc(commandInfo))
	e.register("CONFIG", commandFunc(configInfo))
}

// Dispatch validates the shape of a decoded client request and executes it.
// A request must be a non-empty array of bulk strings; anything else is
// answered with an error reply, the connection stays usable.
func (e *Engine) Dispatch(req resp.Value) resp.Value {
	if req.Type != resp.TypeArray || req.IsNull || len(req.Array) == 0 {
		return resp.MakeError("ERR protocol error: expected a non-empty array of bulk strings")
	}

	for _, el := range req.Array {
		if el.Type != resp.TypeBulkString || el.IsNull {
			return resp.MakeError("ERR protocol error: command arguments must be bulk strings")
		}
	}

	name := strings.ToUpper(string(req.Array[0].String))

	return e.Execute(name, req.Array[1:])
}

// Execute finds the command by name and executes it with the passed arguments.
// If the command is not found, returns an error in the RESP format
func (e *Engine) Execute(name string, args []resp.Value) resp.Value {
	if e.logger.Core().Enabled(zap.DebugLevel) {
		// Log the command name and number of args
		e.logger.Debug("executing command",
			zap.String("cmd", name),
			zap.Int("args_count", len(args)),
		)
	}

	cmd, ok := e.commands[name]
	if !ok {
		return resp.MakeErrorUnknownCommand(name, args)
	}

	ctx := &context{
		args:    args,
		storage: e.storage,
		cfg:     e.cfg,
	}

	return cmd.execute(ctx)
}

// Shutdown shuts down the engine and its background services correctly
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		if e.cfg.GC.Enabled {
			close(e.stopGC)
		}
		e.logger.Info("GC background process stopped")
	})
}
