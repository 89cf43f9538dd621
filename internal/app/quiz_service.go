package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"lichsu-rewards-service/internal/domain"
)

// QuizConfig tunes quiz runs started by a QuizService.
type QuizConfig struct {
	QuestionTime     time.Duration
	TickInterval     time.Duration
	CompletionDelay  time.Duration
	PointsPerCorrect int
	ManualClock      bool
}

// QuizService contains the quiz use cases: playing runs and managing the attempt budget.
type QuizService struct {
	quizzes QuizRepository
	gate    *AttemptGate
	ledger  *Ledger
	cfg     QuizConfig
}

func NewQuizService(quizzes QuizRepository, gate *AttemptGate, ledger *Ledger, cfg QuizConfig) *QuizService {
	return &QuizService{quizzes: quizzes, gate: gate, ledger: ledger, cfg: cfg}
}

// StartRun loads the quiz and starts a run for userID. userID may be empty for anonymous play,
// in which case completion awards nothing.
func (s *QuizService) StartRun(ctx context.Context, quizID, userID string, onEvent func(RunEvent)) (*QuizRun, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := quiz.Validate(); err != nil {
		return nil, fmt.Errorf("quiz %s: %w", quizID, err)
	}

	run := NewQuizRun(s.gate, quiz, userID, RunConfig{
		QuestionTime:    s.cfg.QuestionTime,
		TickInterval:    s.cfg.TickInterval,
		CompletionDelay: s.cfg.CompletionDelay,
		ManualClock:     s.cfg.ManualClock,
		OnEvent:         onEvent,
		OnComplete:      s.award,
	})
	run.Start(ctx)
	return run, nil
}

// Reload drops any cached copy of the quiz and loads it again from its source.
func (s *QuizService) Reload(ctx context.Context, quizID string) (domain.Quiz, error) {
	if cache, ok := s.quizzes.(QuizCache); ok {
		if err := cache.Invalidate(ctx, quizID); err != nil {
			return domain.Quiz{}, fmt.Errorf("invalidate quiz %s: %w", quizID, err)
		}
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, fmt.Errorf("quiz %s: %w", quizID, err)
	}
	log.WithFields(log.Fields{"quiz": quizID, "questions": len(quiz.Questions)}).Info("quiz reloaded")
	return quiz, nil
}

// Attempts returns the attempt budget of a quiz.
func (s *QuizService) Attempts(ctx context.Context, quizID string) domain.QuizAttemptState {
	return s.gate.State(ctx, quizID)
}

// Purchase grants bonus attempts outside of a running quiz.
func (s *QuizService) Purchase(ctx context.Context, quizID string) domain.QuizAttemptState {
	return s.gate.Purchase(ctx, quizID)
}

// award credits the player for every correct answer of a completed run.
func (s *QuizService) award(ctx context.Context, summary RunSummary) {
	if s.ledger == nil || summary.UserID == "" || summary.Correct == 0 || s.cfg.PointsPerCorrect <= 0 {
		return
	}
	title := summary.Title
	if title == "" {
		title = summary.QuizID
	}
	amount := summary.Correct * s.cfg.PointsPerCorrect
	description := fmt.Sprintf("Hoàn thành quiz %s (%d/%d câu đúng)", title, summary.Correct, summary.Total)
	if _, err := s.ledger.Earn(ctx, summary.UserID, amount, description); err != nil {
		log.WithError(err).WithField("user", summary.UserID).Warn("quiz reward not credited")
	}
}

// Now is the clock runs and lock checks are evaluated against.
func (s *QuizService) Now() time.Time {
	return s.gate.Now()
}
