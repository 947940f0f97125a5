package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "user:lock:%d"

	// turnLockTTL bounds how long one turn may hold a session. Network
	// calls inside a turn (quote, receipt wait) make turns slow, so
	// this is generous; an expired lock only risks a lost update, not
	// corruption, because a turn rewrites the whole state blob.
	turnLockTTL = 3 * time.Minute
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that another turn for the same session is in flight.
	ErrStateLocked = errors.New("a previous action is still processing, try again in a moment")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// TurnFunc mutates the session state during one serialized turn. The
// mutated state is persisted after the function returns nil.
type TurnFunc func(ctx context.Context, userState *UserState) error

// StateMachine describes the operations supported by the FSM controller.
type StateMachine interface {
	GetState(ctx context.Context, userID int64) (*UserState, error)
	SetState(ctx context.Context, userID int64, st State, flow *FlowData) error
	ClearState(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
	// WithTurn serializes one complete turn for the user: it acquires
	// the per-session lock, loads the state (idle when absent), runs
	// fn, persists the result, and releases the lock. A second turn
	// arriving while the lock is held fails with ErrStateLocked
	// instead of racing on flow data.
	WithTurn(ctx context.Context, userID int64, fn TurnFunc) error
}

// machine is a concrete implementation of StateMachine backed by Storage and Redis locking.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
}

// NewStateMachine creates a FSM controller using the provided storage backend and redis client for locking.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
	}
}

// GetState proxies to the underlying storage implementation.
func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	return m.storage.GetState(ctx, userID)
}

// GetAllStates returns every persisted user state.
func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	type allStater interface {
		GetAllStates(ctx context.Context) ([]*UserState, error)
	}

	if s, ok := m.storage.(allStater); ok {
		return s.GetAllStates(ctx)
	}

	return nil, nil
}

// SetState validates the transition against the table and persists the
// new state together with its flow data, guarded by the session lock.
func (m *machine) SetState(ctx context.Context, userID int64, st State, flow *FlowData) error {
	if err := m.lock(ctx, userID); err != nil {
		return err
	}
	defer m.unlock(ctx, userID)

	current := StateIdle
	stored, err := m.storage.GetState(ctx, userID)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if stored != nil {
		current = stored.CurrentState
	}

	if !IsTransitionAllowed(current, st) {
		m.log.Warn("invalid state transition", "user_id", userID, "from", current, "to", st)
		return ErrInvalidTransition
	}

	transitionRecorder(string(current), string(st))

	return m.storage.SetState(ctx, userID, &UserState{
		UserID:       userID,
		CurrentState: st,
		Flow:         flow,
	})
}

// ClearState removes the stored state via the backing storage while holding the lock.
func (m *machine) ClearState(ctx context.Context, userID int64) error {
	if err := m.lock(ctx, userID); err != nil {
		return err
	}
	defer m.unlock(ctx, userID)

	return m.storage.ClearState(ctx, userID)
}

// WithTurn implements the per-session serialization contract.
func (m *machine) WithTurn(ctx context.Context, userID int64, fn TurnFunc) error {
	if fn == nil {
		return nil
	}

	if err := m.lock(ctx, userID); err != nil {
		return err
	}
	defer m.unlock(ctx, userID)

	userState, err := m.storage.GetState(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			return err
		}
		userState = &UserState{UserID: userID, CurrentState: StateIdle}
	}

	before := userState.CurrentState

	if err := fn(ctx, userState); err != nil {
		return err
	}

	if userState.CurrentState != before {
		transitionRecorder(string(before), string(userState.CurrentState))
	}

	return m.storage.SetState(ctx, userID, userState)
}

func (m *machine) lock(ctx context.Context, userID int64) error {
	if m.redisClient == nil {
		m.log.Warn("redis client not configured for state locks; skipping", "user_id", userID)
		return nil
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	acquired, err := m.redisClient.SetNX(ctx, key, 1, turnLockTTL).Result()
	if err != nil {
		m.log.Error("failed to acquire user state lock", "user_id", userID, "error", err)
		return err
	}

	if !acquired {
		m.log.Warn("user state lock already held", "user_id", userID)
		return ErrStateLocked
	}

	return nil
}

func (m *machine) unlock(ctx context.Context, userID int64) {
	if m.redisClient == nil {
		return
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	if err := m.redisClient.Del(ctx, key).Err(); err != nil {
		m.log.Error("failed to release user state lock", "user_id", userID, "error", err)
	}
}
