package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/metrics"
)

const (
	DefaultQuestionTime    = 20 * time.Second
	DefaultTickInterval    = time.Second
	DefaultCompletionDelay = 1500 * time.Millisecond
)

// RunPhase is the state of a QuizRun.
type RunPhase string

const (
	PhaseActive    RunPhase = "active"
	PhaseLocked    RunPhase = "locked"
	PhaseCompleted RunPhase = "completed"
)

// EventType names the messages a run emits to its presentation layer.
type EventType string

const (
	EventQuestion  EventType = "question"
	EventTick      EventType = "tick"
	EventStatus    EventType = "status"
	EventLocked    EventType = "locked"
	EventCompleted EventType = "completed"
)

// QuestionView is a question without its answer.
type QuestionView struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// RunEvent is emitted on every state change and countdown tick.
type RunEvent struct {
	Type        EventType     `json:"type"`
	Status      string        `json:"status,omitempty"`
	Question    *QuestionView `json:"question,omitempty"`
	TimeLeft    int           `json:"timeLeft"`
	Remaining   int           `json:"remaining"`
	LockedUntil *time.Time    `json:"lockedUntil,omitempty"`
}

// RunSummary is handed to the completion callback.
type RunSummary struct {
	QuizID  string
	UserID  string
	Title   string
	Correct int
	Total   int
}

// RunSnapshot is a point-in-time view of a run.
type RunSnapshot struct {
	Phase    RunPhase                `json:"phase"`
	Index    int                     `json:"index"`
	TimeLeft int                     `json:"timeLeft"`
	Correct  int                     `json:"correct"`
	Attempts domain.QuizAttemptState `json:"attempts"`
}

// RunConfig tunes a QuizRun. Zero durations fall back to defaults.
type RunConfig struct {
	QuestionTime    time.Duration
	TickInterval    time.Duration
	CompletionDelay time.Duration
	// ManualClock disables the countdown goroutine; Tick drives the countdown instead.
	ManualClock bool
	// OnEvent is called with the run lock held and must not call back into the run.
	OnEvent    func(RunEvent)
	OnComplete func(context.Context, RunSummary)
}

// QuizRun walks one player through a quiz: Active(i) -> Locked(until) | Completed.
// Wrong answers still advance to the next question unless they exhaust the attempt budget.
type QuizRun struct {
	gate   *AttemptGate
	quiz   domain.Quiz
	userID string
	cfg    RunConfig

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	phase     RunPhase
	index     int
	timeLeft  int
	correct   int
	gen       uint64
	stopTimer context.CancelFunc
	closed    bool
}

func NewQuizRun(gate *AttemptGate, quiz domain.Quiz, userID string, cfg RunConfig) *QuizRun {
	if cfg.QuestionTime <= 0 {
		cfg.QuestionTime = DefaultQuestionTime
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.CompletionDelay < 0 {
		cfg.CompletionDelay = 0
	}
	return &QuizRun{
		gate:   gate,
		quiz:   quiz,
		userID: userID,
		cfg:    cfg,
		ctx:    context.Background(),
		phase:  PhaseActive,
	}
}

// Start enters Active(0), or Locked when the quiz's lock is still in effect.
func (r *QuizRun) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)
	state, err := r.gate.Check(r.ctx, r.quiz.ID)
	if err != nil {
		r.enterLockLocked(state)
		return
	}
	r.showQuestionLocked(0, state)
}

// Answer submits option for the current question.
func (r *QuizRun) Answer(ctx context.Context, option int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseCompleted || r.closed {
		return domain.ErrRunFinished
	}
	if err := r.checkLockLocked(ctx); err != nil {
		return err
	}
	question := r.quiz.Questions[r.index]
	if option < 0 || option >= len(question.Options) {
		return domain.ErrOptionOutOfRange
	}
	r.submitLocked(ctx, option == question.Correct, false)
	return nil
}

// Tick advances the countdown by one step, as the timer goroutine does every TickInterval.
func (r *QuizRun) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickLocked()
}

// Purchase buys bonus attempts. A locked run resumes at the same question.
func (r *QuizRun) Purchase(ctx context.Context) domain.QuizAttemptState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.gate.Purchase(ctx, r.quiz.ID)
	r.emitLocked(RunEvent{
		Type:      EventStatus,
		Status:    fmt.Sprintf("Đã mua thêm %d lượt. Bạn còn %d lượt.", r.gate.bonus, state.Remaining()),
		TimeLeft:  r.timeLeft,
		Remaining: state.Remaining(),
	})
	if r.phase == PhaseLocked && !r.closed {
		r.showQuestionLocked(r.index, state)
	}
	return state
}

// Snapshot returns the current phase, position and attempt budget.
func (r *QuizRun) Snapshot(ctx context.Context) RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunSnapshot{
		Phase:    r.phase,
		Index:    r.index,
		TimeLeft: r.timeLeft,
		Correct:  r.correct,
		Attempts: r.gate.State(ctx, r.quiz.ID),
	}
}

// Close stops the countdown. A completion already scheduled still runs.
func (r *QuizRun) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.stopTimerLocked()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *QuizRun) checkLockLocked(ctx context.Context) error {
	state, err := r.gate.Check(ctx, r.quiz.ID)
	if err != nil {
		if r.phase != PhaseLocked {
			r.stopTimerLocked()
			r.phase = PhaseLocked
		}
		metrics.QuizAnswers.WithLabelValues("locked").Inc()
		return err
	}
	if r.phase == PhaseLocked {
		// The lock expired; carry on from the question it interrupted.
		r.showQuestionLocked(r.index, state)
	}
	return nil
}

func (r *QuizRun) submitLocked(ctx context.Context, correct, timeout bool) {
	r.stopTimerLocked()

	if correct {
		metrics.QuizAnswers.WithLabelValues("correct").Inc()
		state := r.gate.RecordCorrect(ctx, r.quiz.ID)
		r.correct++
		r.emitLocked(RunEvent{
			Type:      EventStatus,
			Status:    "Chính xác! Chuyển sang câu tiếp theo.",
			Remaining: state.Remaining(),
		})
		r.advanceLocked(ctx, state)
		return
	}

	outcome, prefix := "wrong", "Sai rồi!"
	if timeout {
		outcome, prefix = "timeout", "Hết giờ!"
	}
	metrics.QuizAnswers.WithLabelValues(outcome).Inc()

	state, locked := r.gate.RecordWrong(ctx, r.quiz.ID)
	if locked {
		r.enterLockLocked(state)
		return
	}
	r.emitLocked(RunEvent{
		Type:      EventStatus,
		Status:    fmt.Sprintf("%s Bạn còn %d lượt.", prefix, state.Remaining()),
		Remaining: state.Remaining(),
	})
	r.advanceLocked(ctx, state)
}

func (r *QuizRun) advanceLocked(ctx context.Context, state domain.QuizAttemptState) {
	if r.index+1 < len(r.quiz.Questions) {
		r.showQuestionLocked(r.index+1, state)
		return
	}
	r.completeLocked(ctx)
}

func (r *QuizRun) showQuestionLocked(index int, state domain.QuizAttemptState) {
	r.stopTimerLocked()
	r.phase = PhaseActive
	r.index = index
	r.timeLeft = int(r.cfg.QuestionTime / r.cfg.TickInterval)

	q := r.quiz.Questions[index]
	r.emitLocked(RunEvent{
		Type: EventQuestion,
		Question: &QuestionView{
			Index:   index,
			Total:   len(r.quiz.Questions),
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
		},
		TimeLeft:  r.timeLeft,
		Remaining: state.Remaining(),
	})
	r.startTimerLocked()
}

func (r *QuizRun) enterLockLocked(state domain.QuizAttemptState) {
	r.stopTimerLocked()
	r.phase = PhaseLocked
	r.emitLocked(RunEvent{
		Type:        EventLocked,
		Status:      fmt.Sprintf("Bạn đã hết lượt! Quiz bị khóa đến %s.", domain.FormatClock(*state.LockedUntil)),
		LockedUntil: state.LockedUntil,
	})
}

func (r *QuizRun) completeLocked(ctx context.Context) {
	r.stopTimerLocked()
	r.phase = PhaseCompleted
	summary := RunSummary{
		QuizID:  r.quiz.ID,
		UserID:  r.userID,
		Title:   r.quiz.Title,
		Correct: r.correct,
		Total:   len(r.quiz.Questions),
	}
	r.emitLocked(RunEvent{
		Type:   EventCompleted,
		Status: fmt.Sprintf("Hoàn thành! Bạn trả lời đúng %d/%d câu.", summary.Correct, summary.Total),
	})

	finishCtx := context.WithoutCancel(ctx)
	finish := func() {
		r.gate.ResetFailed(finishCtx, r.quiz.ID)
		if r.cfg.OnComplete != nil {
			r.cfg.OnComplete(finishCtx, summary)
		}
	}
	if r.cfg.CompletionDelay == 0 {
		// Run outside the lock: the callback may touch the ledger and its listeners.
		go finish()
		return
	}
	time.AfterFunc(r.cfg.CompletionDelay, finish)
}

func (r *QuizRun) tickLocked() {
	if r.phase != PhaseActive || r.closed {
		return
	}
	r.timeLeft--
	if r.timeLeft > 0 {
		r.emitLocked(RunEvent{Type: EventTick, TimeLeft: r.timeLeft})
		return
	}
	r.timeLeft = 0
	r.submitLocked(r.ctx, false, true)
}

func (r *QuizRun) startTimerLocked() {
	r.gen++
	if r.cfg.ManualClock || r.closed {
		return
	}
	gen := r.gen
	ctx, cancel := context.WithCancel(r.ctx)
	r.stopTimer = cancel
	go func() {
		ticker := time.NewTicker(r.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.mu.Lock()
				if gen == r.gen {
					r.tickLocked()
				}
				r.mu.Unlock()
			}
		}
	}()
}

// stopTimerLocked cancels the countdown and invalidates any tick already in flight.
func (r *QuizRun) stopTimerLocked() {
	r.gen++
	if r.stopTimer != nil {
		r.stopTimer()
		r.stopTimer = nil
	}
}

func (r *QuizRun) emitLocked(ev RunEvent) {
	if r.cfg.OnEvent != nil {
		r.cfg.OnEvent(ev)
	}
}
